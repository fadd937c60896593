package market

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"os"
	"strconv"
	"strings"

	"exalted/internal/logger"
	"exalted/internal/trading"
)

// AltPriceFile is the externally maintained "SYMBOL: price" file used to
// price positions outside the regular session.
type AltPriceFile struct {
	path string
}

func NewAltPriceFile(path string) *AltPriceFile {
	return &AltPriceFile{path: strings.TrimSpace(path)}
}

// Load returns every positive price in the file. A missing or unreadable
// file yields an empty map.
func (f *AltPriceFile) Load() map[string]float64 {
	prices := make(map[string]float64)
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("alt prices: read %s failed: %v", f.path, err)
		}
		return prices
	}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		sym, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		sym = trading.NormalizeSymbol(sym)
		p, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if sym == "" || err != nil || !(p > 0) || math.IsInf(p, 0) {
			continue
		}
		prices[sym] = p
	}
	return prices
}
