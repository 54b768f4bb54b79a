package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model/auth"
	"github.com/secmon-lab/recall/pkg/usecase"
)

type accountResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func registerHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	type request struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleError(w, r, goerr.Wrap(usecase.ErrBadRequest, "invalid request body"))
			return
		}

		account, err := authUC.Register(r.Context(), req.Email, req.Name, req.Password)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, map[string]any{
			"success": true,
			"user": accountResponse{
				ID:    account.ID.String(),
				Name:  account.Name,
				Email: account.Email,
			},
		})
	}
}

func loginHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleError(w, r, goerr.Wrap(usecase.ErrBadRequest, "invalid request body"))
			return
		}

		token, account, err := authUC.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]any{
			"success": true,
			"token":   token,
			"user": accountResponse{
				ID:    account.ID.String(),
				Name:  account.Name,
				Email: account.Email,
			},
		})
	}
}

func logoutHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			handleError(w, r, goerr.Wrap(usecase.ErrUnauthorized, "no session"))
			return
		}

		if err := authUC.Logout(r.Context(), session.AccountID); err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
	}
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		handleError(w, r, goerr.Wrap(usecase.ErrUnauthorized, "no session"))
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"id":         session.AccountID.String(),
		"name":       session.Name,
		"expires_at": session.ExpiresAt,
	})
}
