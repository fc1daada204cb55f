package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/local/fileconv/internal/retention"
)

func newSweepCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploads and results older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				maxAge = cfg.Storage.Retention
			}
			st := retention.New(area.Dirs(), maxAge).Sweep(cmd.Context())
			if outputJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(st)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, removed %d, failed %d\n", st.Scanned, st.Removed, st.Failed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "override the retention window (default 20m)")
	return cmd
}
