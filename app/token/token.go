package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
)

type Purpose string

const (
	// PurposeReturn authorizes one status change through the gateway callback.
	PurposeReturn Purpose = "return"
	// PurposeStatus authorizes status polls and popup-close signals.
	PurposeStatus Purpose = "status"
)

const issuerName = "payments-router"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenUsed    = errors.New("token already used")
)

type Claims struct {
	OrderID uint64  `json:"oid"`
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	store  cache.Store
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, store cache.Store, now func() time.Time) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, store: store, now: now}
}

func (i *Issuer) Issue(orderID uint64, purpose Purpose) (string, error) {
	now := i.now()
	claims := Claims{
		OrderID: orderID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			Subject:   fmt.Sprintf("order:%d", orderID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, purpose and order binding.
func (i *Issuer) Verify(raw string, orderID uint64, purpose Purpose) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.OrderID != orderID || claims.Purpose != purpose || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Consume marks the token id as used. The marker lives until the token
// itself expires.
func (i *Issuer) Consume(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	ttl := i.ttl
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(i.now()); remaining > 0 {
			ttl = remaining
		}
	}
	ok, err := i.store.SetNX(ctx, "token_used_"+claims.ID, "1", ttl)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if !ok {
		return ErrTokenUsed
	}
	return nil
}

// Release clears the used marker so a token consumed by a failed attempt can
// be presented again.
func (i *Issuer) Release(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	if err := i.store.Delete(ctx, "token_used_"+claims.ID); err != nil {
		return fmt.Errorf("release token: %w", err)
	}
	return nil
}
