// Package app wires the service's collaborators from a Config. The API
// server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"mealgraph/internal/aggregate"
	"mealgraph/internal/config"
	"mealgraph/internal/logger"
	"mealgraph/internal/nutrition"
	"mealgraph/internal/platform/gemini"
	"mealgraph/internal/platform/inference"
	"mealgraph/internal/platform/likes"
	"mealgraph/internal/platform/localllm"
	"mealgraph/internal/propagate"
	"mealgraph/internal/query"
	"mealgraph/internal/store"
)

// LikeCounter is a closable favorite counter.
type LikeCounter interface {
	Likes(ctx context.Context, ref nutrition.Ref) (int64, error)
	Like(ctx context.Context, ref nutrition.Ref) (int64, error)
	Close() error
}

// App holds the wired collaborators.
type App struct {
	Store      store.Store
	Propagator *propagate.Propagator
	Engine     *query.Engine
	Likes      LikeCounter

	closers []func() error
}

// New connects to Postgres, the tag inferer and redis as cfg directs.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := store.NewPostgresStore(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("error creating postgresstore: %w", err)
	}
	a, err := Assemble(ctx, cfg, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Assemble wires everything except the store, which the caller provides
// and the App then owns.
func Assemble(ctx context.Context, cfg *config.Config, s store.Store, log *logger.Logger) (*App, error) {
	a := &App{Store: s}
	a.closers = append(a.closers, s.Close)

	inferer, closeInferer, err := NewInferer(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeInferer != nil {
		a.closers = append(a.closers, closeInferer)
	}

	a.Likes = NewLikes(ctx, cfg, log)
	a.closers = append(a.closers, a.Likes.Close)

	a.Propagator = propagate.New(s, inferer, log)
	a.Engine = query.NewEngine(a.Likes, log)
	return a, nil
}

// NewInferer returns the configured recipe tag inferer wrapped in a
// fingerprint cache, or nil when inference is off. The returned close
// function may be nil.
func NewInferer(ctx context.Context, cfg *config.Config, log *logger.Logger) (aggregate.TagInferer, func() error, error) {
	switch cfg.TagInferer {
	case config.InfererNone, "":
		return nil, nil, nil
	case config.InfererGemini:
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating gemini client: %w", err)
		}
		return inference.NewCache(c, log), c.Close, nil
	case config.InfererLocal:
		c := localllm.NewClient(cfg.LocalLLMURL, cfg.LocalLLMModel, log)
		return inference.NewCache(c, log), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown tag inferer %q", cfg.TagInferer)
}

// NewLikes connects to redis when an address is configured and falls back
// to an in-process counter otherwise or when redis is unreachable.
func NewLikes(ctx context.Context, cfg *config.Config, log *logger.Logger) LikeCounter {
	if cfg.RedisAddr == "" {
		log.Info("no redis address, counting likes in memory")
		return likes.NewMemoryCounter()
	}
	c, err := likes.NewRedisCounter(ctx, cfg.RedisAddr, log)
	if err != nil {
		log.Warn("%v; counting likes in memory", err)
		return likes.NewMemoryCounter()
	}
	return c
}

// Close releases every connection in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
