package productrepository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/database"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/domain"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/reporting"
	"github.com/lib/pq"
	"golang.org/x/sync/singleflight"
)

type PostgresProductRepository struct {
	db     *database.Routed
	schema string

	// Concurrent lag probes share one master round-trip.
	lagGroup singleflight.Group
}

var _ ProductRepository = (*PostgresProductRepository)(nil)
var _ ItemRepository = (*PostgresProductRepository)(nil)

func NewPostgresProductRepository(db *database.Routed, schema string) *PostgresProductRepository {
	return &PostgresProductRepository{db: db, schema: schema}
}

type dbProduct struct {
	ID          int            `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Price       float64        `db:"price"`
	Stock       int            `db:"stock"`
	CreatedAt   time.Time      `db:"created_at"`
}

type dbUserProfile struct {
	ID          int            `db:"id"`
	Username    string         `db:"username"`
	Email       string         `db:"email"`
	ProfileData sql.NullString `db:"profile_data"`
	CreatedAt   time.Time      `db:"created_at"`
}

type dbItem struct {
	ID        int            `db:"id"`
	Name      string         `db:"name"`
	Data      sql.NullString `db:"data"`
	CreatedAt time.Time      `db:"created_at"`
}

func (p *PostgresProductRepository) table(name string) string {
	return fmt.Sprintf("%s.%s", pq.QuoteIdentifier(p.schema), pq.QuoteIdentifier(name))
}

func (p *PostgresProductRepository) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	reader, _ := p.db.Reader()

	dbProducts := []dbProduct{}
	err := reader.SelectContext(
		ctx,
		&dbProducts,
		fmt.Sprintf(
			`SELECT id, name, description, price, stock, created_at
			FROM %s
			ORDER BY id
			LIMIT $1`,
			p.table("products"),
		),
		limit,
	)
	if err != nil {
		err := fmt.Errorf("failed to select products: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	products := make([]domain.Product, len(dbProducts))
	for i, product := range dbProducts {
		products[i] = domain.Product{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description.String,
			Price:       product.Price,
			Stock:       product.Stock,
			CreatedAt:   product.CreatedAt,
		}
	}
	return products, nil
}

func (p *PostgresProductRepository) ListUserProfiles(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	reader, _ := p.db.Reader()

	dbUserProfiles := []dbUserProfile{}
	err := reader.SelectContext(
		ctx,
		&dbUserProfiles,
		fmt.Sprintf(
			`SELECT id, username, email, profile_data, created_at
			FROM %s
			ORDER BY id
			LIMIT $1`,
			p.table("user_profiles"),
		),
		limit,
	)
	if err != nil {
		err := fmt.Errorf("failed to select user profiles: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	userProfiles := make([]domain.UserProfile, len(dbUserProfiles))
	for i, userProfile := range dbUserProfiles {
		userProfiles[i] = domain.UserProfile{
			ID:          userProfile.ID,
			Username:    userProfile.Username,
			Email:       userProfile.Email,
			ProfileData: userProfile.ProfileData.String,
			CreatedAt:   userProfile.CreatedAt,
		}
	}
	return userProfiles, nil
}

func (p *PostgresProductRepository) InsertItem(ctx context.Context, name string, data string) (domain.Item, error) {
	var item dbItem
	err := p.db.Master().QueryRowxContext(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (name, data)
			VALUES ($1, $2)
			RETURNING id, name, data, created_at`,
			p.table("items"),
		),
		name,
		data,
	).StructScan(&item)
	if err != nil {
		err := fmt.Errorf("failed to insert item: %w", err)
		reporting.Report(ctx, err)
		return domain.Item{}, err
	}

	return domain.Item{
		ID:        item.ID,
		Name:      item.Name,
		Data:      item.Data.String,
		CreatedAt: item.CreatedAt,
	}, nil
}

func (p *PostgresProductRepository) ListRecentItems(ctx context.Context, limit int) ([]domain.Item, database.Target, error) {
	reader, target := p.db.Reader()

	dbItems := []dbItem{}
	err := reader.SelectContext(
		ctx,
		&dbItems,
		fmt.Sprintf(
			`SELECT id, name, data, created_at
			FROM %s
			ORDER BY id DESC
			LIMIT $1`,
			p.table("items"),
		),
		limit,
	)
	if err != nil {
		err := fmt.Errorf("failed to select items from %s: %w", target, err)
		reporting.Report(ctx, err)
		return nil, target, err
	}

	items := make([]domain.Item, len(dbItems))
	for i, item := range dbItems {
		items[i] = domain.Item{
			ID:        item.ID,
			Name:      item.Name,
			Data:      item.Data.String,
			CreatedAt: item.CreatedAt,
		}
	}
	return items, target, nil
}

func (p *PostgresProductRepository) CountItems(ctx context.Context, target database.Target) (int, error) {
	db := p.db.Master()
	if target == database.TargetReplica {
		replica, err := p.db.Replica()
		if err != nil {
			return 0, err
		}
		db = replica
	}

	var count int
	err := db.QueryRowxContext(
		ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table("items")),
	).Scan(&count)
	if err != nil {
		err := fmt.Errorf("failed to count items on %s: %w", target, err)
		reporting.Report(ctx, err)
		return 0, err
	}
	return count, nil
}

// BulkInsertItems writes count filler rows with payloadSize bytes of data
// each. Used to generate write load that provokes visible replication lag.
func (p *PostgresProductRepository) BulkInsertItems(ctx context.Context, count int, payloadSize int) (int, error) {
	txx, err := p.db.Master().BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err)
		return 0, err
	}
	defer txx.Rollback()

	type bulkItem struct {
		Name string `db:"name"`
		Data string `db:"data"`
	}

	payload := strings.Repeat("x", payloadSize)
	items := make([]bulkItem, count)
	for i := range items {
		items[i] = bulkItem{
			Name: fmt.Sprintf("bulk_item_%d", i+1),
			Data: payload,
		}
	}

	// Insert in chunks to stay below the postgres parameter limit
	const chunkSize = 1000
	for start := 0; start < len(items); start += chunkSize {
		end := min(start+chunkSize, len(items))
		_, err = txx.NamedExecContext(
			ctx,
			fmt.Sprintf("INSERT INTO %s (name, data) VALUES (:name, :data)", p.table("items")),
			items[start:end],
		)
		if err != nil {
			err := fmt.Errorf("failed to bulk insert items: %w", err)
			reporting.Report(ctx, err)
			return 0, err
		}
	}

	if err := txx.Commit(); err != nil {
		err := fmt.Errorf("failed to commit bulk insert: %w", err)
		reporting.Report(ctx, err)
		return 0, err
	}

	return len(items), nil
}

type replicationLagResult struct {
	lagBytes   float64
	hasReplica bool
}

// ReplicationLag reports the replication lag in bytes as seen by the
// master, and whether a replica is attached at all.
func (p *PostgresProductRepository) ReplicationLag(ctx context.Context) (float64, bool, error) {
	// The probe hits pg_stat_replication on the master, which is identical
	// for every caller, so concurrent probes are coalesced.
	result, err, _ := p.lagGroup.Do("replication-lag", func() (interface{}, error) {
		var lag sql.NullFloat64
		err := p.db.Master().QueryRowxContext(
			ctx,
			`SELECT MAX(pg_wal_lsn_diff(pg_current_wal_lsn(), replay_lsn))
			FROM pg_stat_replication`,
		).Scan(&lag)
		if err != nil {
			return nil, fmt.Errorf("failed to query replication lag: %w", err)
		}

		return replicationLagResult{
			lagBytes:   lag.Float64,
			hasReplica: lag.Valid,
		}, nil
	})
	if err != nil {
		reporting.Report(ctx, err)
		return 0, false, err
	}

	lag := result.(replicationLagResult)
	return lag.lagBytes, lag.hasReplica, nil
}
