package market

import (
	"context"
	"fmt"
	"time"

	"exalted/internal/logger"
	"exalted/internal/pkg/retry"
	"exalted/internal/trading"
)

const defaultLookbackDays = 7

// DailyBarSource returns the volumes of the daily bars in [start, end].
type DailyBarSource interface {
	DailyVolumes(ctx context.Context, symbol string, start, end time.Time) ([]float64, error)
}

// VolumeService finds the volume of the most recent completed weekday session.
type VolumeService struct {
	clock    *Clock
	bars     DailyBarSource
	lookback int
}

func NewVolumeService(clock *Clock, bars DailyBarSource, lookbackDays int) *VolumeService {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	return &VolumeService{clock: clock, bars: bars, lookback: lookbackDays}
}

var _ trading.VolumeSource = (*VolumeService)(nil)

// PriorSessionVolume walks back one calendar day at a time, skipping
// weekends, and returns the first bar volume found.
func (s *VolumeService) PriorSessionVolume(ctx context.Context, symbol string) (float64, error) {
	symbol = trading.NormalizeSymbol(symbol)
	for _, day := range s.clock.PriorWeekdays(s.clock.Now(), s.lookback) {
		end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		vols, err := s.bars.DailyVolumes(ctx, symbol, day, end)
		if err != nil {
			if retry.Unavailable(err) {
				return 0, err
			}
			logger.Warnf("volume %s on %s: %v", symbol, day.Format(time.DateOnly), err)
			continue
		}
		if len(vols) == 0 {
			continue
		}
		if !(vols[0] > 0) {
			break
		}
		return vols[0], nil
	}
	return 0, fmt.Errorf("%w: no prior session volume for %s", trading.ErrNoLiquidity, symbol)
}
