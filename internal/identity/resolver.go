package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AccessTokenCookie  = "access_token"
	SessionTokenHeader = "X-Session-Token"
)

var errInvalidSessionProof = errors.New("invalid session proof")

type Claims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	if secret == "" {
		logger.L().Warn("JWT secret is empty, only anonymous identities will resolve")
	}
	return &Resolver{secret: []byte(secret)}
}

// Resolve maps request credentials to an Identity. A valid session proof wins
// over the anonymous token header.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	log := logger.FromCtx(req.Context()).With(zap.String("layer", "identity"))

	if raw := extractAccessToken(req); raw != "" {
		accountID, err := r.parse(raw)
		if err == nil {
			return Account(accountID), nil
		}
		log.Debug("session proof rejected", zap.Error(err))
	}

	if tok := strings.TrimSpace(req.Header.Get(SessionTokenHeader)); tok != "" {
		if !validSessionToken(tok) {
			log.Debug("malformed anonymous session token")
			return Identity{}, apperror.ErrNoIdentity
		}
		return Session(tok), nil
	}

	return Identity{}, apperror.ErrNoIdentity
}

// IssueSessionProof signs a session proof for accountID.
func (r *Resolver) IssueSessionProof(accountID uuid.UUID, ttl time.Duration) (string, error) {
	if len(r.secret) == 0 {
		return "", errors.New("JWT secret is not set")
	}

	claims := Claims{
		AccountID: accountID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func (r *Resolver) parse(raw string) (uuid.UUID, error) {
	if len(r.secret) == 0 {
		return uuid.Nil, errInvalidSessionProof
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return uuid.Nil, errInvalidSessionProof
	}

	id, err := uuid.Parse(claims.AccountID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errInvalidSessionProof
	}
	return id, nil
}

func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

type ctxKey struct{}

// Middleware resolves the identity once per request and stores the outcome
// for the transport layer. It never rejects: public routes work without one.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := r.Resolve(req)
		if err != nil {
			next.ServeHTTP(w, req)
			return
		}

		ctx := context.WithValue(req.Context(), ctxKey{}, id)
		ctx = logger.WithFields(ctx, zap.String("owner", id.LogValue()))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// FromRequestContext returns the identity stored by Middleware.
func FromRequestContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok {
		return Identity{}, apperror.ErrNoIdentity
	}
	return id, nil
}
