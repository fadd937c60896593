package app

import (
	"fmt"

	"exalted/internal/config"
	"exalted/internal/gateway/altprice"
	brokergw "exalted/internal/gateway/broker"
	"exalted/internal/gateway/marketdata"
	"exalted/internal/gateway/notifier"
	"exalted/internal/housekeeping"
	"exalted/internal/ingest"
	"exalted/internal/logger"
	"exalted/internal/market"
	"exalted/internal/metrics"
	"exalted/internal/pkg/circuit"
	"exalted/internal/pkg/retry"
	"exalted/internal/risk"
	"exalted/internal/scheduler"
	"exalted/internal/state"
	"exalted/internal/trader"
	"exalted/internal/trading"
	statushttp "exalted/internal/transport/http/status"
)

// AppBuilder assembles the engine from configuration. The overrides replace
// the REST-backed collaborators, mainly for tests and dry runs.
type AppBuilder struct {
	cfg *config.Config

	brokerOverride   trading.Broker
	pricesOverride   trading.PriceSource
	volumeOverride   trading.VolumeSource
	notifierOverride notifier.TextNotifier
	clockOverride    *market.Clock
}

type AppBuilderOption func(*AppBuilder)

func WithBroker(b trading.Broker) AppBuilderOption {
	return func(ab *AppBuilder) { ab.brokerOverride = b }
}

func WithPriceSource(p trading.PriceSource) AppBuilderOption {
	return func(ab *AppBuilder) { ab.pricesOverride = p }
}

func WithVolumeSource(v trading.VolumeSource) AppBuilderOption {
	return func(ab *AppBuilder) { ab.volumeOverride = v }
}

func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(ab *AppBuilder) { ab.notifierOverride = n }
}

func WithClock(c *market.Clock) AppBuilderOption {
	return func(ab *AppBuilder) { ab.clockOverride = c }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build wires every component without starting anything.
func (b *AppBuilder) Build() (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	clock := b.clockOverride
	if clock == nil {
		c, err := market.NewClock(cfg.Session)
		if err != nil {
			return nil, err
		}
		clock = c
	}

	a := &App{
		cfg:     cfg,
		clock:   clock,
		board:   trading.NewBoard(),
		metrics: metrics.New(),
		tokens:  scheduler.NewTokens(),
		trigger: ingest.NewTrigger(),
	}
	a.tokens.OnSkip(a.metrics.SchedulerSkip)

	broker, prices, volume, err := b.collaborators(a)
	if err != nil {
		return nil, err
	}
	a.broker = broker

	pricer := market.NewPositionPricer(clock, market.NewAltPriceFile(cfg.Files.AltPrices))
	extremes := state.NewExtremesFile(cfg.Files.Extremes)
	a.extremes = extremes
	a.cursor = state.OpenCursor(cfg.Files.Cursor)
	a.metrics.SetCursor(a.cursor.Value())

	executor := trader.NewExecutor(trader.Deps{
		Broker: broker,
		Prices: prices,
		Volume: volume,
		Sizer:  trader.Sizer{EquityDivisor: cfg.Sizing.EquityDivisor, MinNotional: cfg.Sizing.MinNotional},
	})
	a.ingest = ingest.NewLoop(ingest.Deps{
		Source:   ingest.NewSignalFile(cfg.Files.Signals),
		Cursor:   a.cursor,
		Executor: executor,
		OnReport: a.publish,
		Now:      clock.Now,
	})

	a.risk = risk.NewManager(risk.Deps{
		Broker:   broker,
		Pricer:   pricer,
		Extremes: extremes,
		Config:   cfg.Risk,
		Notifier: b.notifier(),
		Now:      clock.Now,
	})
	a.stale = &housekeeping.StaleCanceller{Broker: broker, MaxAge: cfg.Housekeeping.StaleOrderAge(), Now: clock.Now}
	a.window = &housekeeping.WindowCanceller{Broker: broker, Window: clock}
	a.sweep = &housekeeping.ThresholdSweep{
		Broker:    broker,
		Pricer:    pricer,
		Extremes:  extremes,
		Threshold: cfg.Housekeeping.SweepThresholdPct,
		Now:       clock.Now,
	}

	if cfg.App.HTTPAddr != "" {
		a.http = statushttp.NewServer(statushttp.ServerConfig{
			Addr:     cfg.App.HTTPAddr,
			Registry: a.metrics.Registry(),
			Router:   &statushttp.Router{Board: a.board, Cursor: a.cursor, Extremes: extremes, Ingest: a},
		})
	}
	a.Summary = newStartupSummary(cfg)
	return a, nil
}

// collaborators returns the overrides or builds the REST adapters, each behind
// its own retry policy and circuit breaker.
func (b *AppBuilder) collaborators(a *App) (trading.Broker, trading.PriceSource, trading.VolumeSource, error) {
	cfg := b.cfg
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay(),
		MaxDelay:    cfg.Retry.MaxDelay(),
		Factor:      cfg.Retry.Factor,
		Jitter:      cfg.Retry.Jitter,
	}
	newRetrier := func(name string) *retry.Retrier {
		br := circuit.NewCircuitBreaker(name, cfg.Retry.BreakerThreshold, cfg.Retry.BreakerCooldown())
		br.SetStateChangeHandler(func(name string, from, to circuit.State) {
			logger.Warnf("breaker %s: %s -> %s", name, from, to)
			a.metrics.BreakerState(name, to != circuit.StateClosed)
		})
		return retry.New(policy, br)
	}

	broker := b.brokerOverride
	if broker == nil {
		c, err := brokergw.NewClient(cfg.Broker, newRetrier("broker"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("broker client: %w", err)
		}
		broker = c
	}

	prices, volume := b.pricesOverride, b.volumeOverride
	if prices == nil || volume == nil {
		md, err := marketdata.NewClient(cfg.MarketData, cfg.Broker, newRetrier("market_data"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("market data client: %w", err)
		}
		if prices == nil {
			alt, err := altprice.NewClient(cfg.AltPrice, newRetrier("alt_price"))
			if err != nil {
				return nil, nil, nil, fmt.Errorf("alt price client: %w", err)
			}
			prices = market.NewPriceService(a.clock, md, alt)
		}
		if volume == nil {
			volume = market.NewVolumeService(a.clock, md, cfg.Sizing.VolumeLookback)
		}
	}
	return broker, prices, volume, nil
}

func (b *AppBuilder) notifier() notifier.TextNotifier {
	if b.notifierOverride != nil {
		return b.notifierOverride
	}
	tg := b.cfg.Notify.Telegram
	if !tg.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(tg.BotToken, tg.ChatID)
}
