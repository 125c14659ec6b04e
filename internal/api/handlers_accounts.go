package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/services"
)

// AccountHandler manages connected Instagram accounts.
type AccountHandler struct {
	accounts *services.AccountService
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Connect POST /api/v1/instagram/accounts
func (h *AccountHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IGUserID    string     `json:"igUserId"`
		Username    string     `json:"username"`
		AccessToken string     `json:"accessToken"`
		ExpiresAt   *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	a, err := h.accounts.Connect(r.Context(), UserID(r), req.IGUserID, req.Username, req.AccessToken, req.ExpiresAt)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, a)
}

// List GET /api/v1/instagram/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context(), UserID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts, "count": len(accounts)})
}

// Get GET /api/v1/instagram/accounts/{accountId}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.GetAccount(r.Context(), UserID(r), mux.Vars(r)["accountId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, a)
}

// Refresh POST /api/v1/instagram/accounts/{accountId}/refresh
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.RefreshAccessToken(r.Context(), UserID(r), mux.Vars(r)["accountId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, a)
}

// Disconnect DELETE /api/v1/instagram/accounts/{accountId}
func (h *AccountHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Disconnect(r.Context(), UserID(r), mux.Vars(r)["accountId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
