package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

// Storage slots. The permission slot is fixed: a single active session is
// assumed, matching the portal's one-signed-in-user model.
const (
	keyLastGoodPermissions = "dovita:last_good_permissions"
	keyActiveProject       = "dovita:active_project"
	keyPreviewMode         = "dovita:preview_mode"
)

const pingTimeout = 2 * time.Second

func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// Store implements the durable permission slot and the ephemeral client
// state on Redis. Values are plain JSON; a missing or unparsable value reads
// as "no cached value".
type Store struct {
	client *redis.Client
	logger ports.Logger
}

func NewStore(client *redis.Client, logger ports.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) Read(ctx context.Context) ([]domain.ModulePermission, bool, error) {
	raw, err := s.client.Get(ctx, keyLastGoodPermissions).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var perms []domain.ModulePermission
	if err := json.Unmarshal(raw, &perms); err != nil {
		// Corrupt slot counts as absent; the next accepted save repairs it.
		s.logger.Warn(ctx, "discarding corrupt permission slot", "error", err)
		return nil, false, nil
	}
	return perms, true, nil
}

func (s *Store) Write(ctx context.Context, perms []domain.ModulePermission) error {
	raw, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyLastGoodPermissions, raw, 0).Err()
}

func (s *Store) Delete(ctx context.Context) error {
	return s.client.Del(ctx, keyLastGoodPermissions).Err()
}

func (s *Store) SetActiveProject(ctx context.Context, projectID string) error {
	return s.client.Set(ctx, keyActiveProject, projectID, 0).Err()
}

func (s *Store) ActiveProject(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, keyActiveProject).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetPreviewMode(ctx context.Context, enabled bool) error {
	return s.client.Set(ctx, keyPreviewMode, enabled, 0).Err()
}

func (s *Store) PreviewMode(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, keyPreviewMode).Bool()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return v, err
}

// ClearClientState wipes the ephemeral keys on sign-out. The permission slot
// is cleared separately, through the permission cache.
func (s *Store) ClearClientState(ctx context.Context) error {
	return s.client.Del(ctx, keyActiveProject, keyPreviewMode).Err()
}
