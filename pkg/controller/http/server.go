package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/secmon-lab/recall/pkg/utils/errutil"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/secmon-lab/recall/pkg/utils/safe"
)

type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
}

func New(uc *usecase.UseCases) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", registerHandler(uc.Auth))
		r.Post("/login", loginHandler(uc.Auth))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(uc.Auth))
			r.Post("/logout", logoutHandler(uc.Auth))
			r.Get("/me", meHandler)
		})
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(authMiddleware(uc.Auth))
		r.Post("/", chatHandler(uc.Chat))
		r.Get("/history", historyHandler(uc.Chat))
		r.Get("/conversations", conversationsHandler(uc.Chat))
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	safe.Write(r.Context(), w, data)
}

// handleError maps use case sentinels to HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrBadRequest):
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
	case errors.Is(err, usecase.ErrUnauthorized):
		errutil.HandleHTTP(r.Context(), w, err, http.StatusUnauthorized)
	case errors.Is(err, usecase.ErrEmailTaken):
		errutil.HandleHTTP(r.Context(), w, err, http.StatusConflict)
	case errors.Is(err, usecase.ErrConversationNotFound):
		errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound)
	default:
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
	}
}
