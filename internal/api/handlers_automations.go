package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/services"
)

// AutomationHandler manages comment-to-DM automations. Every route is scoped
// under an account the caller must own.
type AutomationHandler struct {
	automations *services.AutomationService
	accounts    *services.AccountService
}

func NewAutomationHandler(automations *services.AutomationService, accounts *services.AccountService) *AutomationHandler {
	return &AutomationHandler{automations: automations, accounts: accounts}
}

// requireAccount checks the caller owns the account in the path.
func (h *AutomationHandler) requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := mux.Vars(r)["accountId"]
	if _, err := h.accounts.GetAccount(r.Context(), UserID(r), accountID); err != nil {
		respond.WriteServiceError(w, err)
		return "", false
	}
	return accountID, true
}

type automationRequest struct {
	Name                 string                  `json:"name"`
	PostID               string                  `json:"postId"`
	TriggerType          string                  `json:"triggerType"`
	Keywords             []string                `json:"keywords"`
	MessageType          string                  `json:"messageType"`
	DMMessageTemplate    *string                 `json:"dmMessageTemplate"`
	CarouselElements     []model.CarouselElement `json:"carouselElements"`
	CommentReplyEnabled  bool                    `json:"commentReplyEnabled"`
	CommentReplyTemplate *string                 `json:"commentReplyTemplate"`
}

func (req *automationRequest) toModel(accountID string) *model.Automation {
	return &model.Automation{
		AccountID:            accountID,
		Name:                 req.Name,
		PostID:               req.PostID,
		TriggerType:          req.TriggerType,
		Keywords:             req.Keywords,
		MessageType:          req.MessageType,
		DMMessageTemplate:    req.DMMessageTemplate,
		CarouselElements:     req.CarouselElements,
		CommentReplyEnabled:  req.CommentReplyEnabled,
		CommentReplyTemplate: req.CommentReplyTemplate,
	}
}

// Create POST /api/v1/accounts/{accountId}/automations
func (h *AutomationHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	a := req.toModel(accountID)
	a.IsActive = true
	out, err := h.automations.CreateAutomation(r.Context(), a)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// List GET /api/v1/accounts/{accountId}/automations
func (h *AutomationHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	automations, err := h.automations.ListAutomations(r.Context(), accountID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"automations": automations, "count": len(automations)})
}

// Get GET /api/v1/accounts/{accountId}/automations/{automationId}
func (h *AutomationHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	a, err := h.automations.GetAutomation(r.Context(), accountID, mux.Vars(r)["automationId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, a)
}

// Update PUT /api/v1/accounts/{accountId}/automations/{automationId}
func (h *AutomationHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	existing, err := h.automations.GetAutomation(r.Context(), accountID, mux.Vars(r)["automationId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	a := req.toModel(accountID)
	a.AutomationID = existing.AutomationID
	a.IsActive = existing.IsActive
	out, err := h.automations.UpdateAutomation(r.Context(), a)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// SetActive POST /api/v1/accounts/{accountId}/automations/{automationId}/activate|deactivate
func (h *AutomationHandler) SetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := h.requireAccount(w, r)
		if !ok {
			return
		}
		if err := h.automations.SetActive(r.Context(), accountID, mux.Vars(r)["automationId"], active); err != nil {
			respond.WriteServiceError(w, err)
			return
		}
		respond.WriteJSON(w, http.StatusOK, map[string]bool{"isActive": active})
	}
}

// Delete DELETE /api/v1/accounts/{accountId}/automations/{automationId}
func (h *AutomationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	if err := h.automations.DeleteAutomation(r.Context(), accountID, mux.Vars(r)["automationId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
