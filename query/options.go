package query

import (
	"time"

	"github.com/chrisvdg/moviecache/cache"
)

// Option configures a Query
type Option[T any] func(*options[T])

type options[T any] struct {
	ttl            time.Duration
	enabled        bool
	refetchOnMount bool
	codec          cache.Codec[T]
	onSuccess      func(T)
	onError        func(string)
	onSettled      func(*T, string)
}

func defaultOptions[T any]() options[T] {
	return options[T]{
		enabled: true,
		codec:   cache.JSONCodec[T]{},
	}
}

// WithTTL sets how long fetched data stays cached, the cache default is used when unset
func WithTTL[T any](ttl time.Duration) Option[T] {
	return func(o *options[T]) { o.ttl = ttl }
}

// WithEnabled controls the automatic run on mount and key change.
// Refetch works either way.
func WithEnabled[T any](enabled bool) Option[T] {
	return func(o *options[T]) { o.enabled = enabled }
}

// WithRefetchOnMount forces a network round trip on mount and key change
func WithRefetchOnMount[T any](refetch bool) Option[T] {
	return func(o *options[T]) { o.refetchOnMount = refetch }
}

// WithCodec sets how data is stored in the cache
func WithCodec[T any](codec cache.Codec[T]) Option[T] {
	return func(o *options[T]) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// OnSuccess is called with data served from the cache or the network
func OnSuccess[T any](fn func(T)) Option[T] {
	return func(o *options[T]) { o.onSuccess = fn }
}

// OnError is called with the message of a failed fetch
func OnError[T any](fn func(string)) Option[T] {
	return func(o *options[T]) { o.onError = fn }
}

// OnSettled is called after every run, with the data on success or the message on failure
func OnSettled[T any](fn func(data *T, err string)) Option[T] {
	return func(o *options[T]) { o.onSettled = fn }
}
