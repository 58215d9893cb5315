package services

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// singleflightBuild runs fn once per key across concurrent callers. A caller
// whose ctx ends stops waiting; the shared build keeps the first caller's ctx.
func singleflightBuild(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := g.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
