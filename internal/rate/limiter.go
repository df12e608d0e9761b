// Package rate implementa un limitador fixed-window sobre internal/cache.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slopeoasis/usergate/internal/cache"
)

// Result es la decisión para un hit.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter decide si un hit para key entra en la ventana actual.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// FixedWindow: INCR + EXPIRE por ventana. Con redis el límite se comparte
// entre réplicas; con memory es por proceso.
type FixedWindow struct {
	store  cache.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

// NewFixedWindow exige limit > 0 y window > 0.
func NewFixedWindow(store cache.Client, prefix string, limit int, window time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, errors.New("rate: nil store")
	}
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("rate: invalid limit %d per %s", limit, window)
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &FixedWindow{store: store, prefix: prefix, max: int64(limit), window: window, now: time.Now}, nil
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	winStart := l.now().UTC().Truncate(l.window)
	k := fmt.Sprintf("%s:%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	hits, ttl, err := l.store.Incr(ctx, k, l.window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed:     hits <= l.max,
		Remaining:   max(l.max-hits, 0),
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = l.window
		}
	}
	return res, nil
}
