package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingValidator struct {
	calls int
	valid bool
	err   error
}

func (v *countingValidator) ValidateCredential(context.Context, string) (bool, error) {
	v.calls++
	return v.valid, v.err
}

func (v *countingValidator) ValidateRepository(context.Context, string, string) (bool, error) {
	v.calls++
	return v.valid, v.err
}

func TestValidationCache_HitAndExpire(t *testing.T) {
	inner := &countingValidator{valid: true}
	cache := NewValidationCache(inner, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := cache.ValidateCredential(ctx, "token")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, inner.calls)

	_, _ = cache.ValidateCredential(ctx, "other")
	assert.Equal(t, 2, inner.calls, "different token is a different key")

	now = now.Add(2 * time.Minute)
	_, _ = cache.ValidateCredential(ctx, "token")
	assert.Equal(t, 3, inner.calls, "expired entry should be refreshed")
}

func TestValidationCache_RepositoryKey(t *testing.T) {
	inner := &countingValidator{valid: false}
	cache := NewValidationCache(inner, 0)
	ctx := context.Background()

	_, _ = cache.ValidateRepository(ctx, "acme/app", "t")
	_, _ = cache.ValidateRepository(ctx, "acme/app", "t")
	_, _ = cache.ValidateRepository(ctx, "acme/bff", "t")
	assert.Equal(t, 2, inner.calls)
}

func TestValidationCache_ErrorsNotCached(t *testing.T) {
	inner := &countingValidator{err: errors.New("boom")}
	cache := NewValidationCache(inner, time.Minute)
	ctx := context.Background()

	_, err := cache.ValidateCredential(ctx, "t")
	assert.Error(t, err)
	_, err = cache.ValidateCredential(ctx, "t")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cache.Len())
}

func TestValidationCache_Purge(t *testing.T) {
	cache := NewValidationCache(&countingValidator{valid: true}, time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	_, _ = cache.ValidateCredential(context.Background(), "t")
	assert.Equal(t, 1, cache.Len())

	now = now.Add(time.Hour)
	cache.Purge()
	assert.Zero(t, cache.Len())
}
