package api

import (
	"encoding/json"
	"net/http"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/auth"
	"github.com/autogramhq/automation-service/internal/services"
)

// AuthHandler serves signup, login, logout and the current-user endpoint.
type AuthHandler struct {
	users    *services.UserService
	sessions *auth.SessionManager
}

func NewAuthHandler(users *services.UserService, sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

// Signup POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string  `json:"email"`
		Password    string  `json:"password"`
		DisplayName *string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	u, err := h.users.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	token, err := h.sessions.Create(r.Context(), u.UserID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{"user": u, "token": token})
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	token, err := h.sessions.Create(r.Context(), u.UserID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": u, "token": token})
}

// Logout POST /api/v1/auth/logout (authenticated)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			respond.WriteInternalError(w, "failed to revoke session")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me GET /api/v1/auth/me (authenticated)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), UserID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}
