package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/bayerngomez/retouchlab/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionMiddleware resolves the bearer token to a live session and puts it
// on the request context. A valid token whose session has been destroyed
// (logout, expiry cleanup) is still unauthorized.
func (api *Api) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "请先登录")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := api.tokens.ValidateToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "登录已失效，请重新登录")
			return
		}

		sess, err := api.sessions.Get(claims.SessionID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "登录已失效，请重新登录")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext retrieves the session placed by SessionMiddleware.
func sessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	return sess, ok
}
