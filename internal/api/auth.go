package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "user_id"

func (h *Handler) issueToken(userID, name string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// requireAuth validates the bearer token and stashes the user id in the
// request context.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			h.respondError(w, http.StatusUnauthorized, "Missing bearer token", r.Method, r.URL.Path)
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			h.respondError(w, http.StatusUnauthorized, "Invalid token", r.Method, r.URL.Path)
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			h.respondError(w, http.StatusUnauthorized, "Invalid token subject", r.Method, r.URL.Path)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, sub)))
	}
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
