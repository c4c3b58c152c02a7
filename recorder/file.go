// Package recorder stores completed slew test results.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/w1xm/slew_interface/slewtest"
)

const timeLayout = "2006-01-02 15:04:05"

// File appends one line per result to a text log. Each append opens the
// file in append mode and writes the whole line at once, so concurrent
// writers never interleave partial lines.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

// FormatLine renders r as a log line, including the trailing newline.
func FormatLine(r slewtest.Result) string {
	return fmt.Sprintf("%s | %s | Distance: %.4f deg | Time: %.4f sec | Speed: %.4f deg/sec\n",
		r.CompletedAt.Local().Format(timeLayout), r.Label, r.DistanceDeg, r.ElapsedSec, r.SpeedDegPerSec)
}

func (f *File) Record(r slewtest.Result) error {
	line := FormatLine(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fh.WriteString(line); err != nil {
		fh.Close()
		return fmt.Errorf("writing %q: %w", f.path, err)
	}
	return fh.Close()
}

// Entry is one parsed log line.
type Entry struct {
	Time        time.Time
	Label       string
	DistanceDeg float64
	ElapsedSec  float64
	Speed       float64
}

var errBadLine = errors.New("malformed log line")

func parseLabeled(field, prefix, suffix string) (float64, error) {
	field = strings.TrimSpace(field)
	if !strings.HasPrefix(field, prefix) || !strings.HasSuffix(field, suffix) {
		return 0, fmt.Errorf("%w: %q", errBadLine, field)
	}
	return strconv.ParseFloat(strings.TrimSpace(field[len(prefix):len(field)-len(suffix)]), 64)
}

// ParseLine parses a line written by FormatLine. Labels containing the
// field separator are not supported.
func ParseLine(line string) (Entry, error) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) != 5 {
		return Entry{}, fmt.Errorf("%w: %d fields", errBadLine, len(parts))
	}
	var e Entry
	var err error
	if e.Time, err = time.ParseInLocation(timeLayout, strings.TrimSpace(parts[0]), time.Local); err != nil {
		return Entry{}, err
	}
	e.Label = strings.TrimSpace(parts[1])
	if e.DistanceDeg, err = parseLabeled(parts[2], "Distance:", "deg"); err != nil {
		return Entry{}, err
	}
	if e.ElapsedSec, err = parseLabeled(parts[3], "Time:", "sec"); err != nil {
		return Entry{}, err
	}
	if e.Speed, err = parseLabeled(parts[4], "Speed:", "deg/sec"); err != nil {
		return Entry{}, err
	}
	return e, nil
}
