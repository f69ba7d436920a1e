/**
 * @description
 * This file contains the HTTP handlers for the operator-only endpoints. The
 * operator allow-list is checked against the verified token identity inside
 * the service layer; these handlers never trust client-supplied role claims.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/domain: For request models.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/postline/post-service/internal/domain"
)

// AdminCheckHandler reports whether the caller is on the operator allow-list.
func (h *PostHandlers) AdminCheckHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{
		"is_admin": h.service.IsOperator(identity.Subject, identity.Email),
	})
}

// AdminListUsersHandler returns every user ordered by balance. Operator only.
func (h *PostHandlers) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), identity.Subject, identity.Email)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	h.writeJSON(w, http.StatusOK, users)
}

// AdminGrantCoinsHandler credits coins to a target user. Operator only.
func (h *PostHandlers) AdminGrantCoinsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	targetUserID := chi.URLParam(r, "userID")
	if targetUserID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid user id in URL")
		return
	}

	var req domain.GrantCoinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := h.service.GrantCoins(r.Context(), identity.Subject, identity.Email, targetUserID, req.Amount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": targetUserID,
		"coins":   balance,
	})
}
