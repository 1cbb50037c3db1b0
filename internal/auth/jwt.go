package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yukikurage/task-lifecycle-api/internal/cache"
	"github.com/yukikurage/task-lifecycle-api/internal/constants"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

type Claims struct {
	UID uint64 `json:"uid"`
	jwt.RegisteredClaims
}

// JWTer issues and verifies HS256 bearer tokens. Revoked token ids are kept
// in Revoked until the token would have expired anyway.
type JWTer struct {
	Secret  []byte
	Issuer  string
	TTL     time.Duration
	Revoked cache.Store

	now func() time.Time
}

func NewJWTer(secret, issuer string, ttl time.Duration, revoked cache.Store) *JWTer {
	return &JWTer{
		Secret:  []byte(secret),
		Issuer:  issuer,
		TTL:     ttl,
		Revoked: revoked,
		now:     time.Now,
	}
}

func (j *JWTer) Issue(uid uint64) (string, *Claims, error) {
	now := j.now()
	claims := &Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Subject:   fmt.Sprintf("%d", uid),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer and expiry, then rejects revoked tokens.
func (j *JWTer) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return j.Secret, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.ID == "" {
		return nil, ErrInvalidToken
	}

	if j.Revoked != nil {
		_, err := j.Revoked.Get(ctx, constants.RevokedTokenKeyPrefix+c.ID)
		if err == nil {
			return nil, ErrRevokedToken
		}
		if !errors.Is(err, cache.ErrMiss) {
			return nil, err
		}
	}
	return c, nil
}

// Invalidate revokes the token with the given id until exp.
func (j *JWTer) Invalidate(ctx context.Context, jti string, exp time.Time) error {
	if j.Revoked == nil || jti == "" {
		return nil
	}
	ttl := exp.Sub(j.now())
	if ttl <= 0 {
		return nil
	}
	return j.Revoked.Set(ctx, constants.RevokedTokenKeyPrefix+jti, []byte("1"), ttl)
}
