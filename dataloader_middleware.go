package main

import (
	"net/http"

	"github.com/arnnvv/peeple/match"
)

// DataLoaderMiddleware creates middleware that injects dataloaders into the request context
func DataLoaderMiddleware(dir match.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(dir))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
