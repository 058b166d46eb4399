// Package app wires the card, the cache loop, the phonebook and its
// servers from a config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/card"
	"github.com/S0me0neR0man/simbook/internal/config"
	"github.com/S0me0neR0man/simbook/internal/phonebook"
	"github.com/S0me0neR0man/simbook/internal/server"
)

const metricsShutdownTimeout = 5 * time.Second

// OpenCard builds the configured card. Files a pebble card already holds
// are left as they are.
func OpenCard(cfg config.CardConfig, logger *zap.Logger) (card.Transport, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		image := card.NewImage()
		for _, f := range cfg.Files {
			if f.Layout != nil {
				if err := image.FormatExtended(f.FileGroup, *f.Layout, f.RecordLength); err != nil {
					return nil, nil, fmt.Errorf("format %04X: %w", f.FileGroup, err)
				}
			} else {
				image.Format(f.FileGroup, f.Size, f.RecordLength)
			}
			if f.AuthCode != "" {
				if err := image.Protect(f.FileGroup, f.AuthCode); err != nil {
					return nil, nil, err
				}
			}
		}
		return card.NewMemory(image, cfg.Latency, logger), func() error { return nil }, nil

	case config.BackendPebble:
		p, err := card.OpenPebble(cfg.Dir, &pebble.Options{}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err = formatPebble(p, cfg.Files, logger); err != nil {
			_ = p.Close()
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown card backend %q", cfg.Backend)
}

func formatPebble(p *card.Pebble, files []config.FileConfig, logger *zap.Logger) error {
	for _, f := range files {
		ok, err := p.Formatted(f.FileGroup)
		if err != nil {
			return err
		}
		if ok {
			logger.Debug("file kept", zap.String("fg", fmt.Sprintf("%04X", f.FileGroup)))
			continue
		}

		if f.Layout != nil {
			err = p.FormatExtended(f.FileGroup, *f.Layout, f.RecordLength)
		} else {
			err = p.Format(f.FileGroup, f.Size, f.RecordLength)
		}
		if err != nil {
			return fmt.Errorf("format %04X: %w", f.FileGroup, err)
		}
		if f.AuthCode != "" {
			if err = p.Protect(f.FileGroup, f.AuthCode); err != nil {
				return err
			}
		}
		logger.Info("file formatted", zap.String("fg", fmt.Sprintf("%04X", f.FileGroup)))
	}
	return nil
}

// Seed writes the seed records of files into positions that are still
// empty. It goes through the phonebook so subjects get their slots.
func Seed(ctx context.Context, book *phonebook.PhoneBook, files []config.FileConfig, logger *zap.Logger) error {
	for _, f := range files {
		if len(f.Seed) == 0 {
			continue
		}
		list, err := book.Records(ctx, f.FileGroup)
		if err != nil {
			return fmt.Errorf("seed %04X: %w", f.FileGroup, err)
		}

		written := 0
		for i, rec := range f.Seed {
			if rec.IsEmpty() || !list[i].IsEmpty() {
				continue
			}
			_, err = book.UpdateByIndex(ctx, f.FileGroup, rec, i+1, f.AuthCode)
			var partial *cache.PartialError
			if errors.As(err, &partial) {
				logger.Warn("seed record partially written", zap.Int("index", i+1), zap.Error(err))
			} else if err != nil {
				return fmt.Errorf("seed %04X #%d: %w", f.FileGroup, i+1, err)
			}
			written++
		}
		logger.Info("seeded", zap.String("fg", fmt.Sprintf("%04X", f.FileGroup)), zap.Int("records", written))
	}
	return nil
}

func restricted(fgs []int) phonebook.RestrictedGroups {
	r := make(phonebook.RestrictedGroups, len(fgs))
	for _, fg := range fgs {
		r[fg] = true
	}
	return r
}

// Run serves the phonebook until ctx is done.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	transport, closeCard, err := OpenCard(cfg.Card, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCard(); err != nil {
			logger.Error("close card", zap.Error(err))
		}
	}()

	c := cache.New(transport, logger)
	book := phonebook.New(c, logger, phonebook.WithAuthorizer(restricted(cfg.Restricted)))
	srv := server.NewPhoneBookServer(book, cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(gctx)
	})
	g.Go(func() error {
		if err := Seed(gctx, book, cfg.Card.Files, logger); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := srv.Start(gctx)
		srv.Wait()
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, logger)
		})
	}

	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = hs.Shutdown(sctx)
	}()

	logger.Info("metrics server start", zap.String("addr", addr))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
