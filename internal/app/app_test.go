package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealgraph/internal/config"
	"mealgraph/internal/logger"
	"mealgraph/internal/platform/inference"
	"mealgraph/internal/platform/likes"
	"mealgraph/internal/store"
)

func TestNewInferer(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	inf, closeFn, err := NewInferer(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, inf)
	assert.Nil(t, closeFn)

	cfg.TagInferer = config.InfererLocal
	inf, _, err = NewInferer(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &inference.Cache{}, inf)

	cfg.TagInferer = "oracle"
	_, _, err = NewInferer(ctx, cfg, logger.Nop())
	assert.ErrorContains(t, err, "oracle")
}

func TestNewLikesFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	assert.IsType(t, &likes.MemoryCounter{}, NewLikes(ctx, cfg, logger.Nop()))

	cfg.RedisAddr = "127.0.0.1:1"
	assert.IsType(t, &likes.MemoryCounter{}, NewLikes(ctx, cfg, logger.Nop()))
}

func TestAssemble(t *testing.T) {
	a, err := Assemble(context.Background(), config.Default(), store.NewMemoryStore(logger.Nop()), logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.Propagator)
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Likes)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
