package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
)

const (
	// DefaultAdminCacheTTL bounds how long a membership change can go unnoticed.
	DefaultAdminCacheTTL = 30 * time.Second
	adminCachePrefix     = "portal:admin:"
)

// AdminCacheKey returns the cache key for a user's membership record.
func AdminCacheKey(userID string) string { return adminCachePrefix + userID }

// CachedAdminDirectoryOptions groups dependencies for CachedAdminDirectory.
type CachedAdminDirectoryOptions struct {
	Directory ports.AdminDirectory  // Required: source of truth
	Cache     ports.CacheRepository // Required: membership cache
	TTL       time.Duration         // Optional: defaults to DefaultAdminCacheTTL
	Logger    *slog.Logger          // Optional: structured logger
}

// CachedAdminDirectory is a read-through cache in front of an AdminDirectory.
// Missing memberships are cached too. Cache failures fall through to the
// directory and are never surfaced to callers.
type CachedAdminDirectory struct {
	directory ports.AdminDirectory
	cache     ports.CacheRepository
	ttl       time.Duration
	logger    *slog.Logger
}

var _ ports.AdminDirectory = (*CachedAdminDirectory)(nil)

type cachedMembership struct {
	Found      bool                        `json:"found"`
	Membership *domainauth.AdminMembership `json:"membership,omitempty"`
}

// NewCachedAdminDirectory constructs a CachedAdminDirectory.
func NewCachedAdminDirectory(opts CachedAdminDirectoryOptions) (*CachedAdminDirectory, error) {
	if opts.Directory == nil {
		return nil, errors.New("AdminDirectory is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("CacheRepository is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultAdminCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedAdminDirectory{
		directory: opts.Directory,
		cache:     opts.Cache,
		ttl:       ttl,
		logger:    logger.With("component", "admin_cache"),
	}, nil
}

func (c *CachedAdminDirectory) GetAdmin(ctx context.Context, userID string) (domainauth.AdminMembership, error) {
	key := AdminCacheKey(userID)
	if hit, ok := c.lookup(ctx, key); ok {
		if !hit.Found || hit.Membership == nil {
			return domainauth.AdminMembership{}, ports.ErrAdminNotFound
		}
		return *hit.Membership, nil
	}

	m, err := c.directory.GetAdmin(ctx, userID)
	switch {
	case errors.Is(err, ports.ErrAdminNotFound):
		c.store(ctx, key, cachedMembership{Found: false})
		return domainauth.AdminMembership{}, err
	case err != nil:
		return domainauth.AdminMembership{}, err
	}
	c.store(ctx, key, cachedMembership{Found: true, Membership: &m})
	return m, nil
}

// Invalidate drops the cached record for userID so the next lookup reads the directory.
func (c *CachedAdminDirectory) Invalidate(ctx context.Context, userID string) error {
	if _, err := c.cache.Delete(ctx, AdminCacheKey(userID)); err != nil {
		return fmt.Errorf("invalidate admin cache: %w", err)
	}
	return nil
}

func (c *CachedAdminDirectory) lookup(ctx context.Context, key string) (cachedMembership, bool) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "admin cache read failed", "key", key, "error", err)
		return cachedMembership{}, false
	}
	if raw == nil {
		return cachedMembership{}, false
	}
	var hit cachedMembership
	if err := json.Unmarshal(raw, &hit); err != nil {
		c.logger.WarnContext(ctx, "admin cache entry unreadable", "key", key, "error", err)
		return cachedMembership{}, false
	}
	return hit, true
}

func (c *CachedAdminDirectory) store(ctx context.Context, key string, v cachedMembership) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "admin cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "admin cache write failed", "key", key, "error", err)
	}
}
