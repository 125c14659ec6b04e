package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/services"
)

// BioPageHandler manages bio pages, their links, social icons and leads.
type BioPageHandler struct {
	pages *services.BioPageService
	leads *services.LeadService
}

func NewBioPageHandler(pages *services.BioPageService, leads *services.LeadService) *BioPageHandler {
	return &BioPageHandler{pages: pages, leads: leads}
}

// requirePage checks the caller owns the page in the path.
func (h *BioPageHandler) requirePage(w http.ResponseWriter, r *http.Request) (*model.BioPage, bool) {
	p, err := h.pages.GetPage(r.Context(), UserID(r), mux.Vars(r)["pageId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return nil, false
	}
	return p, true
}

type bioPageRequest struct {
	AccountID       *string `json:"accountId"`
	Slug            string  `json:"slug"`
	DisplayName     *string `json:"displayName"`
	BioText         *string `json:"bioText"`
	ProfileImageURL *string `json:"profileImageUrl"`
	IsPublished     bool    `json:"isPublished"`
}

// CreatePage POST /api/v1/bio-pages
func (h *BioPageHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req bioPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	p := &model.BioPage{
		UserID:          UserID(r),
		AccountID:       req.AccountID,
		Slug:            req.Slug,
		DisplayName:     req.DisplayName,
		BioText:         req.BioText,
		ProfileImageURL: req.ProfileImageURL,
		IsPublished:     req.IsPublished,
	}
	out, err := h.pages.CreatePage(r.Context(), p)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// ListPages GET /api/v1/bio-pages
func (h *BioPageHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.ListPages(r.Context(), UserID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"pages": pages, "count": len(pages)})
}

// GetPage GET /api/v1/bio-pages/{pageId}
func (h *BioPageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// UpdatePage PUT /api/v1/bio-pages/{pageId}
func (h *BioPageHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	var req bioPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	p := &model.BioPage{
		PageID:          existing.PageID,
		UserID:          existing.UserID,
		AccountID:       req.AccountID,
		Slug:            req.Slug,
		DisplayName:     req.DisplayName,
		BioText:         req.BioText,
		ProfileImageURL: req.ProfileImageURL,
		IsPublished:     req.IsPublished,
	}
	out, err := h.pages.UpdatePage(r.Context(), p)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeletePage DELETE /api/v1/bio-pages/{pageId}
func (h *BioPageHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requirePage(w, r); !ok {
		return
	}
	if err := h.pages.DeletePage(r.Context(), UserID(r), mux.Vars(r)["pageId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Links ---

type bioLinkRequest struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	IsActive *bool  `json:"isActive"`
}

// CreateLink POST /api/v1/bio-pages/{pageId}/links
func (h *BioPageHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	var req bioLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	l := &model.BioLink{PageID: p.PageID, Title: req.Title, URL: req.URL, IsActive: true}
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}
	out, err := h.pages.AddLink(r.Context(), l)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// ListLinks GET /api/v1/bio-pages/{pageId}/links
func (h *BioPageHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	links, err := h.pages.ListLinks(r.Context(), p.PageID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"links": links, "count": len(links)})
}

// UpdateLink PUT /api/v1/bio-pages/{pageId}/links/{linkId}
func (h *BioPageHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	existing, err := h.pages.GetLink(r.Context(), p.PageID, mux.Vars(r)["linkId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	var req bioLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	existing.Title = req.Title
	existing.URL = req.URL
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	out, err := h.pages.UpdateLink(r.Context(), existing)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// ReorderLinks PUT /api/v1/bio-pages/{pageId}/links/reorder
func (h *BioPageHandler) ReorderLinks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	var req struct {
		LinkIDs []string `json:"linkIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.pages.ReorderLinks(r.Context(), p.PageID, req.LinkIDs); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	links, err := h.pages.ListLinks(r.Context(), p.PageID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"links": links, "count": len(links)})
}

// DeleteLink DELETE /api/v1/bio-pages/{pageId}/links/{linkId}
func (h *BioPageHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	if err := h.pages.DeleteLink(r.Context(), p.PageID, mux.Vars(r)["linkId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Social links ---

// ReplaceSocialLinks PUT /api/v1/bio-pages/{pageId}/social-links
func (h *BioPageHandler) ReplaceSocialLinks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	var req struct {
		Links []*model.SocialLink `json:"links"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.pages.ReplaceSocialLinks(r.Context(), p.PageID, req.Links)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"links": out, "count": len(out)})
}

// ListSocialLinks GET /api/v1/bio-pages/{pageId}/social-links
func (h *BioPageHandler) ListSocialLinks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requirePage(w, r)
	if !ok {
		return
	}
	links, err := h.pages.ListSocialLinks(r.Context(), p.PageID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"links": links, "count": len(links)})
}

// --- Leads ---

// ListLeads GET /api/v1/bio-pages/{pageId}/leads?limit=N
func (h *BioPageHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.WriteBadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}
	leads, err := h.leads.ListLeads(r.Context(), UserID(r), mux.Vars(r)["pageId"], limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"leads": leads, "count": len(leads)})
}
