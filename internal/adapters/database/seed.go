package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const SEED_PRODUCT_COUNT = 1000
const SEED_USER_PROFILE_COUNT = 500

// Seed fills the products and user_profiles tables with generated rows so
// the read endpoints have data to serve. Tables that already contain rows
// are left untouched, so seeding is safe to run on every startup.
func Seed(ctx context.Context, db *sqlx.DB, schema string, logger *slog.Logger) error {
	txx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: failed to start transaction: %w", err)
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(schema)))
	if err != nil {
		return fmt.Errorf("seed: failed to set search path: %w", err)
	}

	seededProducts, err := seedProducts(ctx, txx)
	if err != nil {
		return fmt.Errorf("seed: failed to seed products: %w", err)
	}

	seededUserProfiles, err := seedUserProfiles(ctx, txx)
	if err != nil {
		return fmt.Errorf("seed: failed to seed user profiles: %w", err)
	}

	if err := txx.Commit(); err != nil {
		return fmt.Errorf("seed: failed to commit: %w", err)
	}

	logger.InfoContext(ctx, "Seeded database", "products", seededProducts, "userProfiles", seededUserProfiles)

	return nil
}

func seedProducts(ctx context.Context, txx *sqlx.Tx) (int, error) {
	var count int
	if err := txx.QueryRowxContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	type seedProduct struct {
		Name        string  `db:"name"`
		Description string  `db:"description"`
		Price       float64 `db:"price"`
		Stock       int     `db:"stock"`
	}

	products := make([]seedProduct, SEED_PRODUCT_COUNT)
	for i := range products {
		products[i] = seedProduct{
			Name:        fmt.Sprintf("Product %d", i+1),
			Description: fmt.Sprintf("Description for product %d", i+1),
			Price:       10 + rand.Float64()*990,
			Stock:       rand.Intn(101),
		}
	}

	_, err := txx.NamedExecContext(
		ctx,
		`INSERT INTO products (name, description, price, stock)
		VALUES (:name, :description, :price, :stock)`,
		products,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert products: %w", err)
	}

	return len(products), nil
}

func seedUserProfiles(ctx context.Context, txx *sqlx.Tx) (int, error) {
	var count int
	if err := txx.QueryRowxContext(ctx, "SELECT COUNT(*) FROM user_profiles").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user profiles: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	type seedUserProfile struct {
		Username    string `db:"username"`
		Email       string `db:"email"`
		ProfileData string `db:"profile_data"`
	}

	userProfiles := make([]seedUserProfile, SEED_USER_PROFILE_COUNT)
	for i := range userProfiles {
		userProfiles[i] = seedUserProfile{
			Username:    fmt.Sprintf("user_%d", i+1),
			Email:       fmt.Sprintf("user_%d@example.com", i+1),
			ProfileData: fmt.Sprintf(`{"age": %d, "interests": ["reading", "coding"]}`, 18+rand.Intn(50)),
		}
	}

	_, err := txx.NamedExecContext(
		ctx,
		`INSERT INTO user_profiles (username, email, profile_data)
		VALUES (:username, :email, :profile_data)`,
		userProfiles,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user profiles: %w", err)
	}

	return len(userProfiles), nil
}
