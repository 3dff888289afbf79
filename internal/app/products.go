package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/productrepository"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/domain"
	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
)

// Cache keys are query fingerprints: every caller of the same query shares
// one cache entry and one coordination slot.
const ProductsCacheKey = "products:all:limit100"
const UsersCacheKey = "users:all:limit50"

const productsLimit = 100
const usersLimit = 50

// GetPayload returns a serialized response payload and where it came from.
type GetPayload func(ctx context.Context) ([]byte, Source, error)

// GetUncachedPayload always queries the backing store. Baseline for load
// comparisons against the cached paths.
type GetUncachedPayload func(ctx context.Context) ([]byte, error)

type productResponse struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type productsPayload struct {
	Source   string            `json:"source"`
	Count    int               `json:"count"`
	Products []productResponse `json:"products"`
}

type userProfileResponse struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	ProfileData string `json:"profile_data"`
}

type userProfilesPayload struct {
	Source string                `json:"source"`
	Count  int                   `json:"count"`
	Users  []userProfileResponse `json:"users"`
}

// The payload reports where the data originally came from, which is always
// the database. Coalesced and cached callers therefore receive payloads
// byte-identical to the leader's; the access path source is surfaced
// through logs and metrics instead.
func buildProductsPayload(products []domain.Product) ([]byte, error) {
	responses := make([]productResponse, len(products))
	for i, product := range products {
		responses[i] = productResponse{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description,
			Price:       product.Price,
			Stock:       product.Stock,
		}
	}

	payload, err := json.Marshal(productsPayload{
		Source:   "database",
		Count:    len(responses),
		Products: responses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal products payload: %w", err)
	}
	return payload, nil
}

func buildUserProfilesPayload(userProfiles []domain.UserProfile) ([]byte, error) {
	responses := make([]userProfileResponse, len(userProfiles))
	for i, userProfile := range userProfiles {
		responses[i] = userProfileResponse{
			ID:          userProfile.ID,
			Username:    userProfile.Username,
			Email:       userProfile.Email,
			ProfileData: userProfile.ProfileData,
		}
	}

	payload, err := json.Marshal(userProfilesPayload{
		Source: "database",
		Count:  len(responses),
		Users:  responses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user profiles payload: %w", err)
	}
	return payload, nil
}

func fetchProductsPayload(ctx context.Context, repo productrepository.ProductRepository) ([]byte, error) {
	products, err := repo.ListProducts(ctx, productsLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
	}
	return buildProductsPayload(products)
}

func fetchUserProfilesPayload(ctx context.Context, repo productrepository.ProductRepository) ([]byte, error) {
	userProfiles, err := repo.ListUserProfiles(ctx, usersLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.BackingStoreUnavailableError, err)
	}
	return buildUserProfilesPayload(userProfiles)
}

func BuildGetProductsCached(accessor *CacheAside, repo productrepository.ProductRepository, ttl time.Duration) GetPayload {
	endpoint := Endpoint{Name: "products_cached", QueryType: "select"}
	return func(ctx context.Context) ([]byte, Source, error) {
		return accessor.GetOrPopulate(ctx, endpoint, ProductsCacheKey, func(ctx context.Context) ([]byte, error) {
			return fetchProductsPayload(ctx, repo)
		}, ttl)
	}
}

func BuildGetUsersCached(accessor *CacheAside, repo productrepository.ProductRepository, ttl time.Duration) GetPayload {
	endpoint := Endpoint{Name: "users_cached", QueryType: "select"}
	return func(ctx context.Context) ([]byte, Source, error) {
		return accessor.GetOrPopulate(ctx, endpoint, UsersCacheKey, func(ctx context.Context) ([]byte, error) {
			return fetchUserProfilesPayload(ctx, repo)
		}, ttl)
	}
}

func BuildGetProductsDB(repo productrepository.ProductRepository) GetUncachedPayload {
	return func(ctx context.Context) ([]byte, error) {
		return fetchProductsPayload(ctx, repo)
	}
}
