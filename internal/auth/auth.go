// Package auth resolves the owner of a request. Identity is established
// upstream; this package only trusts a gateway header or a static token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const DefaultOwnerHeader = "X-Owner-ID"

var ErrUnauthenticated = errors.New("missing or invalid credentials")

// Verifier returns the owner id a request acts for.
type Verifier interface {
	Verify(r *http.Request) (string, error)
}

// HeaderVerifier trusts an owner id set by an authenticating gateway.
type HeaderVerifier struct {
	Header string
}

func (v HeaderVerifier) Verify(r *http.Request) (string, error) {
	name := v.Header
	if name == "" {
		name = DefaultOwnerHeader
	}
	owner := strings.TrimSpace(r.Header.Get(name))
	if owner == "" {
		return "", ErrUnauthenticated
	}
	return owner, nil
}

// TokenVerifier maps static bearer tokens to owners.
type TokenVerifier struct {
	tokens map[string]string
}

func NewTokenVerifier(tokens map[string]string) *TokenVerifier {
	return &TokenVerifier{tokens: tokens}
}

// ParseTokens reads "token:owner" pairs separated by commas.
func ParseTokens(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, owner, ok := strings.Cut(pair, ":")
		token, owner = strings.TrimSpace(token), strings.TrimSpace(owner)
		if !ok || token == "" || owner == "" {
			return nil, fmt.Errorf("invalid token entry %q: want token:owner", pair)
		}
		out[token] = owner
	}
	if len(out) == 0 {
		return nil, errors.New("no tokens configured")
	}
	return out, nil
}

func (v *TokenVerifier) Verify(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	for known, owner := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return owner, nil
		}
	}
	return "", ErrUnauthenticated
}

// FromConfig builds the verifier for an auth mode ("header" or "token").
func FromConfig(mode, tokens string) (Verifier, error) {
	switch mode {
	case "", "header":
		return HeaderVerifier{}, nil
	case "token":
		parsed, err := ParseTokens(tokens)
		if err != nil {
			return nil, err
		}
		return NewTokenVerifier(parsed), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

type ctxKey struct{}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerFrom returns the owner stored by Middleware.
func OwnerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware rejects requests the verifier does not accept and stores the
// owner id in the request context.
func Middleware(v Verifier, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := v.Verify(r)
			if err != nil {
				if onFail != nil {
					onFail(w, r, err)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}
