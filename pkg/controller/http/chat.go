package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model/auth"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/usecase"
)

func chatHandler(chatUC *usecase.ChatUseCase) http.HandlerFunc {
	type request struct {
		ConversationID string `json:"conversation_id,omitempty"`
		Message        string `json:"message"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			handleError(w, r, goerr.Wrap(usecase.ErrUnauthorized, "no session"))
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handleError(w, r, goerr.Wrap(usecase.ErrBadRequest, "invalid request body"))
			return
		}

		reply, err := chatUC.SendMessage(r.Context(), session.AccountID,
			types.ConversationID(req.ConversationID), req.Message)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]any{
			"success":         true,
			"conversation_id": reply.ConversationID.String(),
			"data":            reply.Reply,
		})
	}
}

func historyHandler(chatUC *usecase.ChatUseCase) http.HandlerFunc {
	type messageResponse struct {
		ID             string    `json:"id"`
		ConversationID string    `json:"conversation_id"`
		Message        string    `json:"message"`
		Response       string    `json:"response"`
		CreatedAt      time.Time `json:"created_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			handleError(w, r, goerr.Wrap(usecase.ErrUnauthorized, "no session"))
			return
		}

		conversationID := types.ConversationID(r.URL.Query().Get("conversation_id"))
		messages, err := chatUC.GetHistory(r.Context(), session.AccountID, conversationID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]messageResponse, len(messages))
		for i, m := range messages {
			resp[i] = messageResponse{
				ID:             string(m.ID),
				ConversationID: m.ConversationID.String(),
				Message:        m.UserText,
				Response:       m.ReplyText,
				CreatedAt:      m.CreatedAt,
			}
		}

		writeJSON(w, r, http.StatusOK, map[string]any{"messages": resp})
	}
}

func conversationsHandler(chatUC *usecase.ChatUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			handleError(w, r, goerr.Wrap(usecase.ErrUnauthorized, "no session"))
			return
		}

		conversations, err := chatUC.ListConversations(r.Context(), session.AccountID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		ids := make([]string, len(conversations))
		for i, id := range conversations {
			ids[i] = id.String()
		}

		writeJSON(w, r, http.StatusOK, map[string]any{"conversations": ids})
	}
}
