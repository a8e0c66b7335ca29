package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/voiceforge/api/internal/model"
)

// ErrAssetNotFound is returned when no asset record exists for an ID.
var ErrAssetNotFound = errors.New("asset not found")

const assetKeyPrefix = "asset:"

// AssetStore persists owned-asset records in Redis. Asset records have no
// TTL: they outlive the jobs that produced them.
type AssetStore struct {
	redis *redis.Client
}

func NewAssetStore(redisClient *redis.Client) *AssetStore {
	return &AssetStore{redis: redisClient}
}

func assetKey(id string) string { return assetKeyPrefix + id }

// Create persists a new asset record
func (s *AssetStore) Create(ctx context.Context, asset *model.Asset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, assetKey(asset.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	if !ok {
		return fmt.Errorf("asset %s already exists", asset.ID)
	}
	return nil
}

// Get returns an asset record by ID
func (s *AssetStore) Get(ctx context.Context, id string) (*model.Asset, error) {
	data, err := s.redis.Get(ctx, assetKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}

	var asset model.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}
	return &asset, nil
}
