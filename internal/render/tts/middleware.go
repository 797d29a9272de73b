package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/dgallion1/mathreel/internal/cache"
	"github.com/dgallion1/mathreel/internal/render"
	"golang.org/x/time/rate"
)

// RateLimited holds calls to Next under a client-side rate limit.
type RateLimited struct {
	Next    Synthesizer
	Limiter *rate.Limiter
}

// NewRateLimited allows rps calls per second with the given burst.
func NewRateLimited(next Synthesizer, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{Next: next, Limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, render.FromContext(ctx, "tts.ratelimit", err)
		}
		// Wait fails up front when the deadline is closer than the next token.
		return nil, render.NewTransient("tts.ratelimit", err)
	}
	return r.Next.Synthesize(ctx, req)
}

// Cached serves repeated narrations from a content-addressed clip cache.
type Cached struct {
	Next  Synthesizer
	Cache cache.Client
	TTL   time.Duration
	Log   *slog.Logger
}

// ClipKey is the cache key for a request: sha256 of voice, language and text.
func ClipKey(req Request) string {
	sum := sha256.Sum256([]byte(req.Voice + "|" + req.Language + "|" + req.Text))
	return "clip:" + hex.EncodeToString(sum[:])
}

func (c *Cached) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	key := ClipKey(req)
	audio, err := c.Cache.Get(ctx, key)
	if err == nil {
		return audio, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) && c.Log != nil {
		c.Log.Warn("clip cache read failed", "error", err)
	}

	audio, err = c.Next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Set(ctx, key, audio, c.TTL); err != nil && c.Log != nil {
		c.Log.Warn("clip cache write failed", "error", err)
	}
	return audio, nil
}
