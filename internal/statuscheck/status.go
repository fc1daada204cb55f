package statuscheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gen2brain/go-fitz"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates readiness checks for the storage area and optional
// dependencies.
type Checker struct {
	redis    RedisPinger
	incoming string
	outgoing string
	mupdf    func() error
}

// Options configures the Checker. A nil MuPDF check uses the embedded
// renderer on a one-page document held in memory.
type Options struct {
	Redis    RedisPinger
	Incoming string
	Outgoing string
	MuPDF    func() error
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Incoming Status `json:"incoming_storage"`
	Outgoing Status `json:"outgoing_storage"`
	Redis    Status `json:"redis"`
	MuPDF    Status `json:"mupdf"`
}

// Ready reports whether the service can accept work. Redis is optional and
// does not count.
func (s Summary) Ready() bool { return s.Incoming.OK && s.Outgoing.OK && s.MuPDF.OK }

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	c := &Checker{redis: opts.Redis, incoming: opts.Incoming, outgoing: opts.Outgoing, mupdf: opts.MuPDF}
	if c.mupdf == nil {
		c.mupdf = renderSamplePDF
	}
	return c
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Incoming: checkWritable(c.incoming),
		Outgoing: checkWritable(c.outgoing),
		Redis:    c.checkRedis(ctx),
		MuPDF:    c.checkMuPDF(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: true, Message: "Not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkMuPDF() Status {
	if err := c.mupdf(); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Available"}
}

// samplePDF is a blank 8x8pt single-page document with a valid xref table.
var samplePDF = func() []byte {
	objs := []string{
		"<</Type/Catalog/Pages 2 0 R>>",
		"<</Type/Pages/Kids[3 0 R]/Count 1>>",
		"<</Type/Page/Parent 2 0 R/MediaBox[0 0 8 8]>>",
	}
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}()

func renderSamplePDF() error {
	doc, err := fitz.NewFromMemory(samplePDF)
	if err != nil {
		return err
	}
	defer doc.Close()
	if n := doc.NumPage(); n != 1 {
		return fmt.Errorf("sample document has %d pages", n)
	}
	_, err = doc.ImageDPI(0, 9)
	return err
}

func checkWritable(dir string) Status {
	if dir == "" {
		return Status{OK: false, Message: "Not configured"}
	}
	f, err := os.CreateTemp(dir, ".statuscheck-*")
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return Status{OK: true, Message: "Writable"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
