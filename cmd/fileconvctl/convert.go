package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/local/fileconv/internal/pipeline"
)

func newResizeCmd() *cobra.Command {
	var p pipeline.Params
	cmd := &cobra.Command{
		Use:   "resize FILE",
		Short: "Resize and recompress an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, pipeline.OpResizeImage, args[0], p)
		},
	}
	cmd.Flags().StringVar(&p.Width, "width", "", "target width in pixels")
	cmd.Flags().StringVar(&p.Height, "height", "", "target height in pixels")
	cmd.Flags().StringVar(&p.Percentage, "percentage", "", "scale factor in percent, 0 < p <= 1000")
	cmd.Flags().StringVar(&p.QualityMode, "quality-mode", "", "lossless (PNG) or lossy (JPEG)")
	cmd.Flags().StringVar(&p.JPEGQuality, "jpeg-quality", "", "JPEG quality 1-95 for lossy output")
	return cmd
}

func newPDFToImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pdf-to-image FILE",
		Short: "Render every page of a PDF to PNG and bundle them in a zip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, pipeline.OpPDFToImage, args[0], pipeline.Params{})
		},
	}
}

func newImageToPDFCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image-to-pdf FILE",
		Short: "Convert an image to a single-page PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, pipeline.OpImageToPDF, args[0], pipeline.Params{})
		},
	}
}

func runOperation(cmd *cobra.Command, op, path string, params pipeline.Params) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	svc := pipeline.NewService(area, cfg.Transform)
	res := svc.Process(cmd.Context(), pipeline.Request{
		Operation: op,
		Filename:  filepath.Base(path),
		Body:      f,
		Params:    params,
	})
	if outputJSON {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(res); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), res)
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	if !res.Success {
		return
	}
	for _, a := range res.ProcessedFiles {
		line := filepath.Join(area.Outgoing, a.Filename) + "  " + a.FileSize
		if a.ProcessedSize != "" {
			line += "  " + a.OriginalSize + " -> " + a.ProcessedSize
		}
		if a.JPEGQuality > 0 {
			line += "  q=" + strconv.Itoa(a.JPEGQuality)
		}
		fmt.Fprintln(w, line)
	}
	if res.Archive != nil {
		fmt.Fprintln(w, filepath.Join(area.Outgoing, res.Archive.Filename)+"  "+res.Archive.FileSize)
	}
}
