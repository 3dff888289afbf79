package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/database"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/productrepository"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/domain"
	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
)

const recentItemsLimit = 10

const maxBulkInsertCount = 100_000
const maxBulkInsertPayloadSize = 10_000

type WriteItem func(ctx context.Context, name string, data string) (domain.Item, error)

type ReadItems func(ctx context.Context) ([]domain.Item, database.Target, error)

type CountItems func(ctx context.Context, target database.Target) (int, error)

type BulkInsertItems func(ctx context.Context, count int, payloadSize int) (int, error)

type GetReplicationLag func(ctx context.Context) (lagBytes float64, hasReplica bool, err error)

func BuildWriteItem(repo productrepository.ItemRepository) WriteItem {
	return func(ctx context.Context, name string, data string) (domain.Item, error) {
		if name == "" {
			return domain.Item{}, fmt.Errorf("%w: missing item name", e.APIClientError)
		}

		item, err := repo.InsertItem(ctx, name, data)
		if err != nil {
			return domain.Item{}, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
		}
		return item, nil
	}
}

func BuildReadItems(repo productrepository.ItemRepository) ReadItems {
	return func(ctx context.Context) ([]domain.Item, database.Target, error) {
		items, target, err := repo.ListRecentItems(ctx, recentItemsLimit)
		if err != nil {
			return nil, target, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
		}
		return items, target, nil
	}
}

func BuildCountItems(repo productrepository.ItemRepository) CountItems {
	return func(ctx context.Context, target database.Target) (int, error) {
		count, err := repo.CountItems(ctx, target)
		if err != nil {
			if errors.Is(err, domain.ErrNoReplica) {
				return 0, fmt.Errorf("%w: %w", e.APIClientError, err)
			}
			return 0, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
		}
		return count, nil
	}
}

func BuildBulkInsertItems(repo productrepository.ItemRepository) BulkInsertItems {
	return func(ctx context.Context, count int, payloadSize int) (int, error) {
		if count <= 0 || count > maxBulkInsertCount {
			return 0, fmt.Errorf("%w: count must be in [1, %d]", e.APIClientError, maxBulkInsertCount)
		}
		if payloadSize <= 0 || payloadSize > maxBulkInsertPayloadSize {
			return 0, fmt.Errorf("%w: size must be in [1, %d]", e.APIClientError, maxBulkInsertPayloadSize)
		}

		inserted, err := repo.BulkInsertItems(ctx, count, payloadSize)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
		}
		return inserted, nil
	}
}

func BuildGetReplicationLag(repo productrepository.ItemRepository) GetReplicationLag {
	return func(ctx context.Context) (float64, bool, error) {
		lagBytes, hasReplica, err := repo.ReplicationLag(ctx)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
		}
		return lagBytes, hasReplica, nil
	}
}
