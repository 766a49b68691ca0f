package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/library"
	libsqlite "github.com/ineyio/summarist/library/sqlite"
	"github.com/ineyio/summarist/meter"
	"github.com/ineyio/summarist/provider/goopenai"
	"github.com/ineyio/summarist/provider/openaicompat"
	"github.com/ineyio/summarist/quota"
	quotapg "github.com/ineyio/summarist/quota/postgres"
	quotaredis "github.com/ineyio/summarist/quota/redis"
	quotasqlite "github.com/ineyio/summarist/quota/sqlite"
)

// app is everything a command needs, built from one config.
type app struct {
	cfg      summarist.Config
	logger   *slog.Logger
	ledger   *summarist.QuotaLedger
	client   *summarist.Client
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := summarist.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newSlogLogger(cfg.Logging, logOut)}

	store, err := a.openLedgerStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ledger, err = summarist.NewQuotaLedger(ctx, cfg.Providers, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	m, err := a.buildMeter()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.client, err = summarist.NewClient(cfg.Providers, a.ledger,
		[]summarist.Provider{openaicompat.New(), goopenai.New()},
		summarist.WithMeter(m),
		summarist.WithLogger(a.logger),
		summarist.WithTemperature(cfg.Temperature),
		summarist.WithMaxTokens(cfg.MaxTokens),
		summarist.WithTimeout(cfg.Timeout),
		summarist.WithRateLimits(true),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newSlogLogger(cfg summarist.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) buildMeter() (summarist.Meter, error) {
	var meters meter.Multi

	switch a.cfg.Logging.Backend {
	case "zap":
		zl, err := meter.NewZapLogger(a.cfg.Logging.Format, a.cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("zap logger: %w", err)
		}
		a.closers = append(a.closers, func() error {
			_ = zl.Sync()
			return nil
		})
		meters = append(meters, meter.NewZapMeter(zl))
	default:
		meters = append(meters, meter.NewLogMeter(a.logger))
	}

	if a.cfg.Metrics.Textfile != "" {
		a.registry = prometheus.NewRegistry()
		pm, err := meter.NewPromMeter(a.registry)
		if err != nil {
			return nil, fmt.Errorf("prometheus meter: %w", err)
		}
		meters = append(meters, pm)
	}

	return meters, nil
}

func (a *app) openLedgerStore(ctx context.Context) (summarist.LedgerStore, error) {
	q := a.cfg.Quota
	switch q.Store {
	case "", "memory":
		return quota.NewMemoryStore(summarist.LedgerState{}), nil
	case "file":
		return quota.NewFileStore(q.Path), nil
	case "sqlite":
		s, err := quotasqlite.New(q.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "redis":
		opts, err := goredis.ParseURL(q.DSN)
		if err != nil {
			opts = &goredis.Options{Addr: q.DSN}
		}
		rdb := goredis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		return quotaredis.New(rdb), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, q.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		s := quotapg.New(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown quota store %q", q.Store)
	}
}

// writeMetrics dumps the run's metrics when a textfile is configured.
func (a *app) writeMetrics() error {
	if a.registry == nil {
		return nil
	}
	return prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry)
}

// openCatalog opens a YAML book list, or a SQLite library for .db paths.
func openCatalog(path string) (library.Catalog, func() error, error) {
	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite") {
		c, err := libsqlite.New(path)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	c, err := library.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	return c, func() error { return nil }, nil
}
