package catalog

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed catalog when configured, otherwise a
// seeded in-memory one.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewSeededMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
