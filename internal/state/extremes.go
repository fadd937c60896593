package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"exalted/internal/logger"
	"exalted/internal/trading"
)

// Extremes is the trailing high/low memory of one held symbol.
type Extremes struct {
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

// ExtremesLog is an in-memory copy of the extremes document. It is not safe
// for concurrent use; each activity loads its own copy.
type ExtremesLog struct {
	entries map[string]Extremes
}

func NewExtremesLog() *ExtremesLog {
	return &ExtremesLog{entries: make(map[string]Extremes)}
}

func (l *ExtremesLog) Len() int { return len(l.entries) }

// Lookup returns the logged entry without defaulting.
func (l *ExtremesLog) Lookup(symbol string) (Extremes, bool) {
	e, ok := l.entries[trading.NormalizeSymbol(symbol)]
	return e, ok
}

// Get returns the logged entry, or {fallback, fallback} when absent.
func (l *ExtremesLog) Get(symbol string, fallback float64) Extremes {
	if e, ok := l.Lookup(symbol); ok {
		return e
	}
	return Extremes{Highest: fallback, Lowest: fallback}
}

// Update widens the entry to include avgEntryPrice and currentPrice and reports
// whether anything changed.
func (l *ExtremesLog) Update(symbol string, avgEntryPrice, currentPrice float64) (Extremes, bool) {
	sym := trading.NormalizeSymbol(symbol)
	prev, ok := l.entries[sym]
	next := Extremes{
		Highest: math.Max(avgEntryPrice, currentPrice),
		Lowest:  math.Min(avgEntryPrice, currentPrice),
	}
	if ok {
		next.Highest = math.Max(next.Highest, prev.Highest)
		next.Lowest = math.Min(next.Lowest, prev.Lowest)
	}
	if ok && next == prev {
		return prev, false
	}
	l.entries[sym] = next
	return next, true
}

// Prune drops every symbol not in held and returns the removed symbols sorted.
func (l *ExtremesLog) Prune(held []string) []string {
	keep := make(map[string]struct{}, len(held))
	for _, s := range held {
		keep[trading.NormalizeSymbol(s)] = struct{}{}
	}
	var removed []string
	for sym := range l.entries {
		if _, ok := keep[sym]; !ok {
			delete(l.entries, sym)
			removed = append(removed, sym)
		}
	}
	sort.Strings(removed)
	return removed
}

// Symbols lists the logged symbols sorted.
func (l *ExtremesLog) Symbols() []string {
	out := make([]string, 0, len(l.entries))
	for sym := range l.entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (l *ExtremesLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.entries)
}

func (l *ExtremesLog) UnmarshalJSON(data []byte) error {
	raw := make(map[string]Extremes)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(map[string]Extremes, len(raw))
	for sym, e := range raw {
		sym = trading.NormalizeSymbol(sym)
		if sym == "" || e.Highest < e.Lowest {
			logger.Warnf("extremes: dropping invalid entry %q %+v", sym, e)
			continue
		}
		entries[sym] = e
	}
	l.entries = entries
	return nil
}

// ExtremesFile is the persisted extremes document.
type ExtremesFile struct {
	path string
	mu   sync.Mutex
}

func NewExtremesFile(path string) *ExtremesFile {
	return &ExtremesFile{path: strings.TrimSpace(path)}
}

func (f *ExtremesFile) Path() string { return f.path }

// Load reads the whole document; an absent or corrupt file yields an empty log.
func (f *ExtremesFile) Load() *ExtremesLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	log := NewExtremesLog()
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("extremes: read %s failed, using empty log: %v", f.path, err)
		}
		return log
	}
	if strings.TrimSpace(string(raw)) == "" {
		return log
	}
	if err := json.Unmarshal(raw, log); err != nil {
		logger.Warnf("extremes: corrupt %s, using empty log: %v", f.path, err)
		return NewExtremesLog()
	}
	return log
}

// Save writes the whole document atomically.
func (f *ExtremesFile) Save(log *ExtremesLog) error {
	if log == nil {
		log = NewExtremesLog()
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encode extremes: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeFileAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write extremes %s: %w", f.path, err)
	}
	return nil
}
