package gorawrstash

import (
	"context"
	"time"

	"github.com/Keksclan/goRawrStash/cache"
	"github.com/Keksclan/goRawrStash/fetch"
)

// RequestFunc builds the upstream request for key.
type RequestFunc func(key string) fetch.Request

// DecodeFunc turns the upstream payload of key into a value.
type DecodeFunc[V any] func(key string, body []byte) (V, error)

// FetchCreator returns a creator that loads key through f and decodes the
// payload. Every creator built on the same Fetcher shares its pacing.
func FetchCreator[V any](f *fetch.Fetcher, req RequestFunc, decode DecodeFunc[V]) cache.Creator[V] {
	return func(ctx context.Context, key string) (V, error) {
		body, err := f.Fetch(ctx, req(key))
		if err != nil {
			var zero V
			return zero, err
		}
		return decode(key, body)
	}
}

// Middleware transforms a creator, allowing pre/post behavior composition.
type Middleware[V any] func(cache.Creator[V]) cache.Creator[V]

// Chain composes middlewares from left to right, i.e., Chain(A, B)(c) => A(B(c)).
func Chain[V any](mw ...Middleware[V]) Middleware[V] {
	return func(next cache.Creator[V]) cache.Creator[V] {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Wrap applies the middleware chain to a creator and returns the wrapped creator.
func Wrap[V any](c cache.Creator[V], mw ...Middleware[V]) cache.Creator[V] {
	if len(mw) == 0 {
		return c
	}
	return Chain(mw...)(c)
}

// Timeout bounds every call of the wrapped creator by d.
func Timeout[V any](d time.Duration) Middleware[V] {
	return func(next cache.Creator[V]) cache.Creator[V] {
		return func(ctx context.Context, key string) (V, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, key)
		}
	}
}
