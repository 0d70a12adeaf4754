package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

const (
	// DefaultAccessTokenTTL is the lifetime of access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the lifetime of refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	persistTimeout = 5 * time.Second
)

// IssuerConfig configures token issuance.
type IssuerConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// AsyncPersist returns the pair before the ledger write lands. Until it
	// does, the new tokens are valid but LogoutAll cannot see them; a direct
	// Revoke still works because it inserts missing records.
	AsyncPersist bool
}

// TokenIssuer mints access/refresh pairs and records them in the TokenStore.
type TokenIssuer struct {
	config IssuerConfig
	signer *Signer
	store  TokenStore
	clock  Clock
	logger *slog.Logger

	pending sync.WaitGroup
}

// NewTokenIssuer creates a new token issuer.
func NewTokenIssuer(config IssuerConfig, signer *Signer, store TokenStore, clock Clock, logger *slog.Logger) *TokenIssuer {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenIssuer{
		config: config,
		signer: signer,
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// AccessTokenTTL returns the access token TTL.
func (i *TokenIssuer) AccessTokenTTL() time.Duration {
	return i.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (i *TokenIssuer) RefreshTokenTTL() time.Duration {
	return i.config.RefreshTokenTTL
}

// Issue mints a new access/refresh pair for identity.
func (i *TokenIssuer) Issue(ctx context.Context, identity *domain.Identity) (*domain.TokenPair, error) {
	now := i.clock.Now()
	accessExp := now.Add(i.config.AccessTokenTTL)
	refreshExp := now.Add(i.config.RefreshTokenTTL)

	access, err := i.signer.Sign(domain.Claims{
		Subject:   identity.ID,
		Email:     identity.Email,
		Role:      identity.Role,
		Kind:      domain.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: accessExp,
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := i.signer.Sign(domain.Claims{
		Subject:   identity.ID,
		Kind:      domain.TokenKindRefresh,
		IssuedAt:  now,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	records := []*domain.TokenRecord{
		newRecord(identity.ID, access, domain.TokenKindAccess, accessExp, now),
		newRecord(identity.ID, refresh, domain.TokenKindRefresh, refreshExp, now),
	}

	if i.config.AsyncPersist {
		i.persistAsync(ctx, records)
	} else if err := i.persist(ctx, records); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn(now, accessExp),
		ExpiresAt:    accessExp,
	}, nil
}

// Wait blocks until every asynchronous ledger write has finished.
func (i *TokenIssuer) Wait() {
	i.pending.Wait()
}

func (i *TokenIssuer) persist(ctx context.Context, records []*domain.TokenRecord) error {
	for _, rec := range records {
		if err := i.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("persist %s token: %w", rec.Kind, err)
		}
	}
	return nil
}

func (i *TokenIssuer) persistAsync(ctx context.Context, records []*domain.TokenRecord) {
	i.pending.Add(1)
	go func() {
		defer i.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := i.persist(ctx, records); err != nil {
			i.logger.Error("failed to persist issued tokens", "error", err, "user_id", records[0].OwnerID)
		}
	}()
}

func newRecord(ownerID uuid.UUID, token string, kind domain.TokenKind, expiresAt, now time.Time) *domain.TokenRecord {
	return &domain.TokenRecord{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		TokenHash: HashToken(token),
		Kind:      kind,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
}
