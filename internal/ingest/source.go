// Package ingest turns the append-only score file into sequentially applied
// trading signals, tracking progress with the persisted cursor.
package ingest

import (
	"bufio"
	"errors"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"exalted/internal/logger"
	"exalted/internal/trading"
)

// ParseSignals reads "id, ticker, score" lines. Blank lines are ignored and a
// line whose id does not parse is skipped; an unparseable score becomes NaN.
func ParseSignals(r io.Reader) []trading.ScoreSignal {
	var out []trading.ScoreSignal
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) < 3 {
			logger.Warnf("signals: line %d malformed, skipped: %q", line, text)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			logger.Warnf("signals: line %d bad id, skipped: %q", line, text)
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			score = math.NaN()
		}
		out = append(out, trading.ScoreSignal{
			ID:     id,
			Ticker: strings.TrimSpace(parts[1]),
			Score:  score,
		})
	}
	if err := sc.Err(); err != nil {
		logger.Warnf("signals: scan stopped at line %d: %v", line, err)
	}
	return out
}

// SignalFile is the read-only score source.
type SignalFile struct {
	path string
}

func NewSignalFile(path string) *SignalFile {
	return &SignalFile{path: strings.TrimSpace(path)}
}

func (f *SignalFile) Path() string { return f.path }

// After returns the signals with ID > cursor in ascending ID order. An
// unreadable file yields no signals.
func (f *SignalFile) After(cursor int64) []trading.ScoreSignal {
	fh, err := os.Open(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("signals: open %s: %v", f.path, err)
		}
		return nil
	}
	defer fh.Close()

	all := ParseSignals(fh)
	out := all[:0]
	for _, s := range all {
		if s.ID > cursor {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
