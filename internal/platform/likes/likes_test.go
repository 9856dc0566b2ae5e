package likes

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealgraph/internal/nutrition"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "likes:recipe:42", Key(nutrition.Ref{Kind: nutrition.KindRecipe, ID: 42}))
	assert.Equal(t, "likes:meal:7", Key(nutrition.Ref{Kind: nutrition.KindMeal, ID: 7}))
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()
	ref := nutrition.Ref{Kind: nutrition.KindMeal, ID: 1}

	n, err := c.Likes(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, n)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Like(ctx, ref)
		}()
	}
	wg.Wait()

	n, err = c.Likes(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)

	other, err := c.Likes(ctx, nutrition.Ref{Kind: nutrition.KindRecipe, ID: 1})
	require.NoError(t, err)
	assert.Zero(t, other)
}
