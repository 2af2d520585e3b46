// Package sessionuser serves the logged-in staff member's profile, caching
// it so every dashboard does not re-fetch the same reference record.
package sessionuser

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wardbook/portalsync/internal/portalapi"
	"github.com/wardbook/portalsync/internal/refcache"
	"github.com/wardbook/portalsync/pkg/logging"
)

const cacheKeyPrefix = "session_user:"

// ProfileFetcher retrieves the session user from the remote data source.
type ProfileFetcher interface {
	GetSessionUser(ctx context.Context) (*portalapi.StaffProfile, error)
}

// Provider resolves the current staff profile through the reference cache.
type Provider struct {
	fetcher ProfileFetcher
	cache   *refcache.Cache[portalapi.StaffProfile]
	token   string
	logger  *logging.Logger
	now     func() time.Time
}

// NewProvider creates a provider keyed by the portal bearer token's subject.
func NewProvider(fetcher ProfileFetcher, cache *refcache.Cache[portalapi.StaffProfile], token string, logger *logging.Logger) *Provider {
	if fetcher == nil {
		panic("sessionuser: fetcher cannot be nil")
	}
	if cache == nil {
		panic("sessionuser: cache cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Provider{
		fetcher: fetcher,
		cache:   cache,
		token:   token,
		logger:  logger,
		now:     time.Now,
	}
}

// Current returns the session user's profile, from cache when fresh. A token
// at or past its expiry bypasses the cache so a re-login never sees the
// previous session's profile.
func (p *Provider) Current(ctx context.Context) (*portalapi.StaffProfile, error) {
	key, cacheable := p.cacheKey()
	if cacheable {
		if profile, ok := p.cache.Get(ctx, key); ok {
			return &profile, nil
		}
	}

	profile, err := p.fetcher.GetSessionUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("sessionuser: fetch profile: %w", err)
	}

	if cacheable {
		p.cache.Set(ctx, key, *profile)
	}
	return profile, nil
}

// Logout clears the cached profile for this session.
func (p *Provider) Logout(ctx context.Context) {
	key, _ := p.cacheKey()
	p.cache.Clear(ctx, key)
	p.logger.Info("sessionuser: session cache cleared")
}

// cacheKey derives the cache key from the token's subject claim. Tokens that
// are not parsable JWTs share a fixed key; expired tokens are not cacheable.
func (p *Provider) cacheKey() (string, bool) {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(p.token, &claims)
	if err != nil {
		return cacheKeyPrefix + "default", true
	}
	if claims.ExpiresAt != nil && !p.now().Before(claims.ExpiresAt.Time) {
		return cacheKeyPrefix + claims.Subject, false
	}
	if claims.Subject == "" {
		return cacheKeyPrefix + "default", true
	}
	return cacheKeyPrefix + claims.Subject, true
}
