package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"edudrive/internal/domain"
)

// Actor is the authenticated principal, resolved exactly once at the request
// boundary. Session issuance lives in the platform's auth service; this
// package only validates the token it minted.
type Actor struct {
	ID    string
	Email string
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(cfg *Config) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret)}
}

// VerifyToken extracts and validates the bearer token from the request and
// returns the actor it identifies.
func (v *Verifier) VerifyToken(r *http.Request) (*Actor, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: no authorization header", domain.ErrAuthRequired)
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthRequired, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrAuthRequired)
	}

	return &Actor{ID: claims.UserID, Email: claims.Email}, nil
}

// ActorOrIP resolves a rate-limit key: the authenticated user ID when the
// request carries a valid token, the client IP otherwise.
func ActorOrIP(v *Verifier) func(r *http.Request) string {
	return func(r *http.Request) string {
		if actor, err := v.VerifyToken(r); err == nil {
			return "user:" + actor.ID
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr
		}
		return "ip:" + host
	}
}
