package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/local/fileconv/internal/config"
)

const serviceName = "fileconv"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Axiom
	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

// OptionsFrom maps the logging and Axiom sections of cfg to Options.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}
}

var (
	global zerolog.Logger
	ax     *axiomShipper
)

// Init sets up the global logger: stdout, optional rotated file, optional
// Axiom forwarding.
func Init(opts Options) error {
	var writers []io.Writer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		client, err := newAxiomClient(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			// keep going without Axiom
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			ax = client
			writers = append(writers, &axiomWriter{shipper: client})
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}

	global = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = global
	return nil
}

// Close flushes any buffered external loggers.
func Close() {
	if ax != nil {
		_ = ax.Close()
	}
}

// Middleware writes one access-log line per request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			ev := log.Info()
			if ww.Status() >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// axiomWriter turns zerolog JSON lines into Axiom events. Debug lines stay
// local.
type axiomWriter struct{ shipper *axiomShipper }

func (w *axiomWriter) Write(p []byte) (int, error) {
	if ev := toEvent(p, time.Now()); ev != nil {
		w.shipper.Send(ev)
	}
	return len(p), nil
}

// toEvent maps one log line to an Axiom event. zerolog's time field becomes
// the ingest timestamp, and lines that carry an error kind are marked failed
// so failed conversions can be filtered without matching messages.
func toEvent(p []byte, now time.Time) axiom.Event {
	var ev axiom.Event
	if err := json.Unmarshal(p, &ev); err != nil {
		return axiom.Event{"message": string(p), "level": "info", ingest.TimestampField: now}
	}
	if ev[zerolog.LevelFieldName] == zerolog.LevelDebugValue {
		return nil
	}
	if ts, ok := ev[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ev[ingest.TimestampField] = t
			delete(ev, zerolog.TimestampFieldName)
		}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = now
	}
	if kind, ok := ev["kind"].(string); ok && kind != "" {
		ev["failed"] = true
	}
	return ev
}

type ingestFunc func(ctx context.Context, events []axiom.Event) error

// axiomShipper batches events and ingests them on a timer or when a batch is
// full. Events still queued at Close are flushed.
type axiomShipper struct {
	ingest    ingestFunc
	ch        chan axiom.Event
	batchSize int
	dropped   atomic.Int64
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newAxiomClient(token, orgID, dataset string, flushEvery time.Duration) (*axiomShipper, error) {
	if dataset == "" {
		dataset = "dev_" + serviceName
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	send := func(ctx context.Context, events []axiom.Event) error {
		_, err := c.IngestEvents(ctx, dataset, events)
		return err
	}
	return newAxiomShipper(send, flushEvery, 200), nil
}

func newAxiomShipper(send ingestFunc, flushEvery time.Duration, batchSize int) *axiomShipper {
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	a := &axiomShipper{
		ingest:    send,
		ch:        make(chan axiom.Event, 1000),
		batchSize: batchSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go a.loop(flushEvery)
	return a
}

// Send queues ev, dropping it when the buffer is full.
func (a *axiomShipper) Send(ev axiom.Event) {
	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *axiomShipper) loop(flushEvery time.Duration) {
	defer close(a.done)
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	batch := make([]axiom.Event, 0, a.batchSize)
	flush := func() {
		if n := a.dropped.Swap(0); n > 0 {
			batch = append(batch, axiom.Event{
				"level":               "warn",
				"message":             "axiom buffer full, events dropped",
				"dropped":             n,
				"service":             serviceName,
				ingest.TimestampField: time.Now(),
			})
		}
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.ingest(ctx, batch); err != nil {
			// the logger itself feeds this writer, so report on stderr
			fmt.Fprintf(os.Stderr, "axiom ingest of %d events failed: %v\n", len(batch), err)
		}
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case <-a.stop:
			for {
				select {
				case ev := <-a.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-a.ch:
			batch = append(batch, ev)
			if len(batch) >= a.batchSize {
				flush()
			}
		}
	}
}

// Close flushes queued events and stops the loop. It is safe to call twice.
func (a *axiomShipper) Close() error {
	a.closeOnce.Do(func() { close(a.stop) })
	<-a.done
	return nil
}
