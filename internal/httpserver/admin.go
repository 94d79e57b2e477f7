// internal/httpserver/admin.go
//
// Maintenance endpoints.
//   POST /api/admin/token  {key}  → {token, expiresAt}
//   POST /api/admin/clear         → {message, deleted}   (Bearer token required)
//
// The admin key is never stored in plain text: ADMIN_KEY_HASH holds its bcrypt hash.
// A matching key is exchanged for a short-lived HS256 JWT with subject "admin".

package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
)

const adminSubject = "admin"

// AdminConfig enables the admin endpoints when both fields are set.
type AdminConfig struct {
	KeyHash   string // bcrypt hash of the admin key
	JWTSecret string
	TokenTTL  time.Duration // default 1h
}

func (c AdminConfig) enabled() bool { return c.KeyHash != "" && c.JWTSecret != "" }

func (c AdminConfig) ttl() time.Duration {
	if c.TokenTTL <= 0 {
		return time.Hour
	}
	return c.TokenTTL
}

type adminTokenReq struct {
	Key string `json:"key" validate:"required"`
}

type adminTokenRes struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s *Server) mountAdmin(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/token", s.handleAdminToken)
		r.With(s.requireAdmin).Post("/clear", s.handleAdminClear)
	})
}

func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.Admin
	if !cfg.enabled() {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Admin access not configured"})
		return
	}
	var req adminTokenReq
	if !bindJSON(w, r, &req, nil, "Missing key") {
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(cfg.KeyHash), []byte(req.Key)) != nil {
		hlog.FromRequest(r).Warn().Msg("admin: bad key")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}
	tok, exp, err := signAdminJWT(cfg.JWTSecret, cfg.ttl())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "sign_failed"})
		return
	}
	writeJSON(w, http.StatusOK, adminTokenRes{Token: tok, ExpiresAt: exp.Unix()})
}

func (s *Server) handleAdminClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Store.Clear(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int("deleted", n).Msg("admin: cleared games")
	msg := "No games found"
	if n > 0 {
		msg = fmt.Sprintf("Cleared %d game(s)", n)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "deleted": n})
}

// requireAdmin enforces a valid admin JWT.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.deps.Admin
		if !cfg.enabled() {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Admin access not configured"})
			return
		}
		tokenStr := bearer(r)
		if tokenStr == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		if err := verifyAdminJWT(cfg.JWTSecret, tokenStr); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// signAdminJWT creates an HS256 token for the admin subject.
func signAdminJWT(secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := t.SignedString([]byte(secret))
	return ss, exp, err
}

func verifyAdminJWT(secret, tokenStr string) error {
	_, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
	)
	return err
}

// bearer extracts the token from "Authorization: Bearer <token>".
func bearer(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}
