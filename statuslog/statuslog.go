// Package statuslog periodically records mount health to a daily text log
// and optionally to InfluxDB.
package statuslog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"golang.org/x/sync/errgroup"

	"github.com/w1xm/slew_interface/recorder"
	"github.com/w1xm/slew_interface/rotator"
)

// Source supplies raw mount status fields.
type Source interface {
	Status(ctx context.Context) (map[string]string, error)
}

type Config struct {
	Interval time.Duration
	Dir      string
	// StatusFile is read on every tick and logged verbatim. Optional.
	StatusFile string
}

// Logger writes one line per tick. A failed tick is logged and never
// stops the loop.
type Logger struct {
	source Source
	config Config
	points recorder.PointWriter

	now func() time.Time
}

// New returns a Logger. points may be nil.
func New(source Source, config Config, points recorder.PointWriter) *Logger {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &Logger{source: source, config: config, points: points, now: time.Now}
}

// LogPath returns the daily log file for t.
func LogPath(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format("02Jan2006")+"MountStatus.log")
}

// FormatEntry formats one log line.
func FormatEntry(t time.Time, summary, fromFile string) string {
	return fmt.Sprintf("%s - Mount Status: %s From File: %s\n", t.Format("2006-01-02 15:04:05"), summary, fromFile)
}

// Summarize renders the connection state and position of a status payload.
func Summarize(fields map[string]string) string {
	connected := fields["mount.is_connected"]
	if connected == "" {
		connected = "unknown"
	}
	s, err := rotator.ParseSnapshot(fields, time.Time{})
	if err != nil {
		return fmt.Sprintf("connected=%s ERROR %v", connected, err)
	}
	return fmt.Sprintf("connected=%s %v", connected, s)
}

// Fields converts the numeric and boolean status values into point fields.
// Other values are dropped.
func Fields(status map[string]string) map[string]interface{} {
	fields := make(map[string]interface{})
	for k, v := range status {
		v = strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			fields[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			fields[k] = b
		}
	}
	return fields
}

// Run ticks until ctx is done. When the point writer reports delivery
// errors they are logged alongside.
func (l *Logger) Run(ctx context.Context) error {
	if err := os.MkdirAll(l.config.Dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	if e, ok := l.points.(interface{ Errors() <-chan error }); ok {
		errorsCh := e.Errors()
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-errorsCh:
					if !ok {
						return nil
					}
					log.Printf("write error: %v", err)
				}
			}
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(l.config.Interval)
		defer ticker.Stop()
		for {
			if err := l.Tick(ctx); err != nil {
				log.Print(err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

// Tick collects status once and appends it to the daily log.
func (l *Logger) Tick(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	status, err := l.source.Status(tctx)
	cancel()
	now := l.now()

	var summary string
	if err != nil {
		summary = fmt.Sprintf("ERROR %v", err)
	} else {
		summary = Summarize(status)
		if l.points != nil {
			if fields := Fields(status); len(fields) > 0 {
				l.points.WritePoint(influxdb2.NewPoint("mount.status", nil, fields, now))
			}
		}
	}

	fromFile := "ERROR no status file"
	if l.config.StatusFile != "" {
		data, err := os.ReadFile(l.config.StatusFile)
		if err != nil {
			fromFile = fmt.Sprintf("ERROR %v", err)
		} else {
			fromFile = strings.TrimSpace(string(data))
		}
	}

	f, err := os.OpenFile(LogPath(l.config.Dir, now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening status log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatEntry(now, summary, fromFile)); err != nil {
		return fmt.Errorf("writing status log: %w", err)
	}
	return nil
}
