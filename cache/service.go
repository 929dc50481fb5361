package cache

import "context"

// FetchFn renders a value when the response cache has nothing fresh for a key.
type FetchFn[T any] func(ctx context.Context) (T, error)

// ResponseCache memoizes rendered documents for a short window so a burst of
// requests does not enumerate every source once per request.
type ResponseCache interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error)
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is a type-safe wrapper around ResponseCache.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, rc ResponseCache, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := rc.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if result == nil {
		var zero T
		return zero, nil
	}
	return result.(T), nil
}

// passthrough is the ResponseCache used when memoization is disabled.
type passthrough struct{}

// Passthrough returns a ResponseCache that always calls fetchFn.
func Passthrough() ResponseCache {
	return passthrough{}
}

func (passthrough) GetOrFetch(ctx context.Context, _ string, fetchFn func(context.Context) (any, error)) (any, error) {
	return fetchFn(ctx)
}

func (passthrough) DeleteByPrefix(context.Context, string) error {
	return nil
}
