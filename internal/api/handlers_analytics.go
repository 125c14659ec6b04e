package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/cache"
	"github.com/autogramhq/automation-service/internal/services"
	"github.com/autogramhq/automation-service/internal/store"
)

// AnalyticsHandler aggregates counters for dashboards: DM volume from the
// send logs, page views and link clicks from redis, lead totals from storage.
type AnalyticsHandler struct {
	store    store.Store
	pages    *services.BioPageService
	accounts *services.AccountService
	cache    *cache.Client
}

func NewAnalyticsHandler(s store.Store, pages *services.BioPageService, accounts *services.AccountService, c *cache.Client) *AnalyticsHandler {
	return &AnalyticsHandler{store: s, pages: pages, accounts: accounts, cache: c}
}

func sinceParam(r *http.Request) time.Time {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}

// AutomationStats GET /api/v1/accounts/{accountId}/automations/{automationId}/stats?days=N
func (h *AnalyticsHandler) AutomationStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := h.accounts.GetAccount(r.Context(), UserID(r), vars["accountId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	a, err := h.store.Automations().Get(r.Context(), vars["accountId"], vars["automationId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	since := sinceParam(r)
	dms, err := h.store.SendLogs().ListDMs(r.Context(), a.AutomationID, since)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"automationId": a.AutomationID,
		"since":        since,
		"dmsSent":      len(dms),
	})
}

// PageStats GET /api/v1/bio-pages/{pageId}/stats
func (h *AnalyticsHandler) PageStats(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.GetPage(r.Context(), UserID(r), mux.Vars(r)["pageId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	views, err := h.cache.GetInt64(r.Context(), viewKey(p.PageID))
	if err != nil {
		respond.WriteInternalError(w, "view counter unavailable")
		return
	}
	links, err := h.pages.ListLinks(r.Context(), p.PageID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	clicks := make(map[string]int64, len(links))
	var totalClicks int64
	for _, l := range links {
		n, err := h.cache.GetInt64(r.Context(), clickKey(p.PageID, l.LinkID))
		if err != nil {
			respond.WriteInternalError(w, "click counter unavailable")
			return
		}
		clicks[l.LinkID] = n
		totalClicks += n
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pageId":      p.PageID,
		"views":       views,
		"totalClicks": totalClicks,
		"linkClicks":  clicks,
	})
}
