package main

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/arnnvv/peeple/match"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[string, *match.Profile]
}

// NewDataLoaders creates fresh loaders over dir. Loaders cache, so build one set per request.
func NewDataLoaders(dir match.Directory) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(profileBatchFn(dir),
			dataloader.WithWait[string, *match.Profile](16*time.Millisecond)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn resolves a batch of user ids with one Directory call.
// Results line up with keys; missing ids get match.ErrNotFound.
func profileBatchFn(dir match.Directory) dataloader.BatchFunc[string, *match.Profile] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*match.Profile] {
		results := make([]*dataloader.Result[*match.Profile], len(keys))
		if len(keys) == 0 {
			return results
		}

		found, err := dir.GetProfiles(ctx, keys)
		for i, key := range keys {
			switch {
			case err != nil:
				results[i] = &dataloader.Result[*match.Profile]{Error: err}
			case found[key] == nil:
				results[i] = &dataloader.Result[*match.Profile]{Error: fmt.Errorf("profile %q: %w", key, match.ErrNotFound)}
			default:
				results[i] = &dataloader.Result[*match.Profile]{Data: found[key]}
			}
		}
		return results
	}
}
