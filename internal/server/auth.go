package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthConfig controls request authentication. With an empty JWTSecret the API
// is open, matching a single-user deployment behind a private network. The
// CommandToken is checked inside the Dooray handler instead, because the chat
// platform cannot send bearer tokens.
type AuthConfig struct {
	JWTSecret    string
	CommandToken string
	Log          zerolog.Logger
}

type principal struct {
	Subject string
}

func authenticateJWT(token, secret string) (principal, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return principal{}, err
	}
	if !parsed.Valid {
		return principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return principal{}, errors.New("subject claim required")
	}
	return principal{Subject: claims.Subject}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := joined(basePath, "health")
	doorayPath := joined(basePath, "dooray")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if cfg.JWTSecret == "" {
				next.ServeHTTP(w, req)
				return
			}
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath || req.URL.Path == doorayPath {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			if _, err := authenticateJWT(token, cfg.JWTSecret); err != nil {
				cfg.Log.Warn().Err(err).Msg("rejected bearer token")
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func joined(basePath, p string) string {
	full := path.Join("/", basePath, p)
	return full
}

func respondStatusError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
