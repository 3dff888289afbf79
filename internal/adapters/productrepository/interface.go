package productrepository

import (
	"context"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/database"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/domain"
)

// ProductRepository is the authoritative data source behind the cache.
type ProductRepository interface {
	ListProducts(ctx context.Context, limit int) ([]domain.Product, error)
	ListUserProfiles(ctx context.Context, limit int) ([]domain.UserProfile, error)
}

// ItemRepository backs the read-routing endpoints.
type ItemRepository interface {
	InsertItem(ctx context.Context, name string, data string) (domain.Item, error)
	ListRecentItems(ctx context.Context, limit int) ([]domain.Item, database.Target, error)
	CountItems(ctx context.Context, target database.Target) (int, error)
	BulkInsertItems(ctx context.Context, count int, payloadSize int) (int, error)
	ReplicationLag(ctx context.Context) (float64, bool, error)
}
