package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const defaultValidationTTL = 5 * time.Minute

// Validator — проверка токена и репозитория.
type Validator interface {
	ValidateCredential(ctx context.Context, credential string) (bool, error)
	ValidateRepository(ctx context.Context, repoRef, credential string) (bool, error)
}

type cacheEntry struct {
	valid     bool
	expiresAt time.Time
}

// ValidationCache кэширует результаты Validator на TTL.
// Ключ строится из sha256 токена, сам токен не хранится.
// Ошибки не кэшируются.
type ValidationCache struct {
	next Validator
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewValidationCache оборачивает next. ttl <= 0 — 5 минут.
func NewValidationCache(next Validator, ttl time.Duration) *ValidationCache {
	if ttl <= 0 {
		ttl = defaultValidationTTL
	}
	return &ValidationCache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// ValidateCredential реализует Validator.
func (c *ValidationCache) ValidateCredential(ctx context.Context, credential string) (bool, error) {
	key := "user:" + fingerprint(credential)
	if valid, ok := c.lookup(key); ok {
		return valid, nil
	}

	valid, err := c.next.ValidateCredential(ctx, credential)
	if err != nil {
		return false, err
	}
	c.store(key, valid)
	return valid, nil
}

// ValidateRepository реализует Validator.
func (c *ValidationCache) ValidateRepository(ctx context.Context, repoRef, credential string) (bool, error) {
	key := "repo:" + repoRef + ":" + fingerprint(credential)
	if valid, ok := c.lookup(key); ok {
		return valid, nil
	}

	valid, err := c.next.ValidateRepository(ctx, repoRef, credential)
	if err != nil {
		return false, err
	}
	c.store(key, valid)
	return valid, nil
}

// Purge удаляет истёкшие записи.
func (c *ValidationCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len возвращает число записей в кэше.
func (c *ValidationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ValidationCache) lookup(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return false, false
	}
	return e.valid, true
}

func (c *ValidationCache) store(key string, valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{valid: valid, expiresAt: c.now().Add(c.ttl)}
}

func fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
