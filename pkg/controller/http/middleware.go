package http

import (
	"net/http"
	"strings"

	"github.com/secmon-lab/recall/pkg/domain/model/auth"
	"github.com/secmon-lab/recall/pkg/usecase"
)

// authMiddleware validates the bearer credential and attaches the session
// to the request context.
func authMiddleware(authUC *usecase.AuthUseCase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			session, err := authUC.Validate(r.Context(), raw)
			if err != nil {
				http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
				return
			}

			ctx := auth.ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
