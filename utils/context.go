package utils

import "context"

// WithCtx adapts a ctx-taking worker to errgroup.Group.Go.
func WithCtx(ctx context.Context, f func(ctx context.Context) error) func() error {
	return func() error {
		return f(ctx)
	}
}
