package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/cache"
	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/services"
)

// PublicHandler serves the unauthenticated bio-page surface: page rendering
// data, link click redirects and lead capture.
type PublicHandler struct {
	pages *services.BioPageService
	leads *services.LeadService
	cache *cache.Client
}

func NewPublicHandler(pages *services.BioPageService, leads *services.LeadService, c *cache.Client) *PublicHandler {
	return &PublicHandler{pages: pages, leads: leads, cache: c}
}

func clickKey(pageID, linkID string) string {
	return fmt.Sprintf("clicks:%s:%s", pageID, linkID)
}

func viewKey(pageID string) string {
	return fmt.Sprintf("views:%s", pageID)
}

// GetPage GET /api/v1/bio/{slug}
func (h *PublicHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.GetPublicPage(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	// View counting is best-effort; the page must render even if redis is down.
	if _, err := h.cache.Incr(r.Context(), viewKey(page.Page.PageID)); err != nil {
		log.Warn().Err(err).Str("page", page.Page.PageID).Msg("view counter increment failed")
	}
	respond.WriteJSON(w, http.StatusOK, page)
}

// ClickLink GET /api/v1/bio/{slug}/links/{linkId} counts the click and
// redirects to the link target.
func (h *PublicHandler) ClickLink(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, err := h.pages.GetPublicPage(r.Context(), vars["slug"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	var target *model.BioLink
	for _, l := range page.Links {
		if l.LinkID == vars["linkId"] {
			target = l
			break
		}
	}
	if target == nil {
		respond.WriteNotFound(w, "link not found")
		return
	}
	if _, err := h.cache.Incr(r.Context(), clickKey(page.Page.PageID, target.LinkID)); err != nil {
		log.Warn().Err(err).Str("link", target.LinkID).Msg("click counter increment failed")
	}
	http.Redirect(w, r, target.URL, http.StatusFound)
}

// CaptureLead POST /api/v1/bio/{slug}/leads
func (h *PublicHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string                 `json:"email"`
		Phone      *string                `json:"phone"`
		SourceType string                 `json:"sourceType"`
		Metadata   map[string]interface{} `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	lead := &model.Lead{
		Email:      req.Email,
		Phone:      req.Phone,
		SourceType: req.SourceType,
		Metadata:   req.Metadata,
	}
	out, err := h.leads.CaptureLead(r.Context(), mux.Vars(r)["slug"], lead)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}
