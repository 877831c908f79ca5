// Package auth provides HMAC-based API key authentication for the rule service.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// principalKey is the context key for the authenticated principal.
const principalKey = contextKey("principal")

// MetadataKey carries the API key on incoming requests.
const MetadataKey = "x-api-key"

// lastUsedThrottle limits last_used_at writes per key.
const lastUsedThrottle = time.Minute

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

type keyRecord struct {
	APIKeyID   string       `db:"api_key_id"`
	Principal  string       `db:"principal"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
}

// Authenticate validates apiKey and returns the principal it was issued to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var rec keyRecord
	err = a.queries.Get(ctx, "get-api-key-by-hash", &rec, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyStore, err)
	}

	if rec.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	now := a.now().UTC()
	if !rec.LastUsedAt.Valid || now.Sub(rec.LastUsedAt.Time) > lastUsedThrottle {
		// Best effort; a failed timestamp update never rejects a valid key
		_, _ = a.queries.Exec(ctx, "update-last-used", now, rec.APIKeyID)
	}

	return rec.Principal, nil
}

// Issue creates a key for principal under secretID and stores its hash.
// The plaintext key is returned once and never stored.
func (a *Authenticator) Issue(ctx context.Context, secretID, principal string) (string, error) {
	if principal == "" {
		return "", fmt.Errorf("principal cannot be empty")
	}
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	key, err := GenerateAPIKey(secretID)
	if err != nil {
		return "", err
	}
	keyID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key id: %w", err)
	}

	_, err = a.queries.Exec(ctx, "insert-api-key", keyID.String(), principal, ComputeHMAC(secret, key), a.now().UTC())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyStore, err)
	}
	return key, nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Methods listed in skip (full method names) bypass authentication.
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	bypass := make(map[string]bool, len(skip))
	for _, m := range skip {
		bypass[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if bypass[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		principal, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			return nil, status.Error(statusCode(err), err.Error())
		}

		return handler(WithPrincipal(ctx, principal), req)
	}
}

func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrKeyStore):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

// WithPrincipal returns a context carrying principal.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext extracts the authenticated principal.
// Returns empty string if not found.
func PrincipalFromContext(ctx context.Context) string {
	if principal, ok := ctx.Value(principalKey).(string); ok {
		return principal
	}
	return ""
}
