package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autogramhq/automation-service/internal/api/recovery"
	"github.com/autogramhq/automation-service/internal/auth"
	"github.com/autogramhq/automation-service/internal/cache"
	"github.com/autogramhq/automation-service/internal/config"
	"github.com/autogramhq/automation-service/internal/services"
	"github.com/autogramhq/automation-service/internal/store"
)

// Deps bundles everything the router needs. run.go builds one of these after
// all dependencies pass their startup checks.
type Deps struct {
	Config    *config.Config
	Store     store.Store
	Cache     *cache.Client
	Sessions  *auth.SessionManager
	Sealer    services.TokenSealer
	Refresher services.TokenRefresher
	IsHealthy func() bool
}

// NewRouter wires all API routes.
func NewRouter(d Deps) *mux.Router {
	users := services.NewUserService(d.Store)
	accounts := services.NewAccountService(d.Store, d.Sealer, d.Refresher)
	automations := services.NewAutomationService(d.Store)
	pages := services.NewBioPageService(d.Store)
	leads := services.NewLeadService(d.Store)

	authHandler := NewAuthHandler(users, d.Sessions)
	accountHandler := NewAccountHandler(accounts)
	automationHandler := NewAutomationHandler(automations, accounts)
	bioHandler := NewBioPageHandler(pages, leads)
	publicHandler := NewPublicHandler(pages, leads, d.Cache)
	webhookHandler := NewWebhookHandler(d.Store, d.Cache,
		d.Config.WebhookVerifyToken, time.Duration(d.Config.WebhookDedupTTLMinutes)*time.Minute)
	analyticsHandler := NewAnalyticsHandler(d.Store, pages, accounts, d.Cache)
	healthHandler := NewHealthHandler(d.IsHealthy)

	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Health
	v1.HandleFunc("/health", healthHandler.CheckHealth).Methods("GET")

	// Auth (public)
	v1.HandleFunc("/auth/signup", authHandler.Signup).Methods("POST")
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Webhooks (verified by Meta's token, not user sessions)
	v1.HandleFunc("/webhooks/instagram", webhookHandler.Verify).Methods("GET")
	v1.HandleFunc("/webhooks/instagram", webhookHandler.Receive).Methods("POST")

	// Public bio pages
	v1.HandleFunc("/bio/{slug}", publicHandler.GetPage).Methods("GET")
	v1.HandleFunc("/bio/{slug}/links/{linkId}", publicHandler.ClickLink).Methods("GET")
	v1.HandleFunc("/bio/{slug}/leads", publicHandler.CaptureLead).Methods("POST")

	// Authenticated surface
	private := v1.NewRoute().Subrouter()
	private.Use(RequireAuth(d.Sessions))

	private.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	private.HandleFunc("/auth/me", authHandler.Me).Methods("GET")

	private.HandleFunc("/instagram/accounts", accountHandler.Connect).Methods("POST")
	private.HandleFunc("/instagram/accounts", accountHandler.List).Methods("GET")
	private.HandleFunc("/instagram/accounts/{accountId}", accountHandler.Get).Methods("GET")
	private.HandleFunc("/instagram/accounts/{accountId}", accountHandler.Disconnect).Methods("DELETE")
	private.HandleFunc("/instagram/accounts/{accountId}/refresh", accountHandler.Refresh).Methods("POST")

	private.HandleFunc("/accounts/{accountId}/automations", automationHandler.Create).Methods("POST")
	private.HandleFunc("/accounts/{accountId}/automations", automationHandler.List).Methods("GET")
	private.HandleFunc("/accounts/{accountId}/automations/{automationId}", automationHandler.Get).Methods("GET")
	private.HandleFunc("/accounts/{accountId}/automations/{automationId}", automationHandler.Update).Methods("PUT")
	private.HandleFunc("/accounts/{accountId}/automations/{automationId}", automationHandler.Delete).Methods("DELETE")
	private.HandleFunc("/accounts/{accountId}/automations/{automationId}/activate", automationHandler.SetActive(true)).Methods("POST")
	private.HandleFunc("/accounts/{accountId}/automations/{automationId}/deactivate", automationHandler.SetActive(false)).Methods("POST")
	private.HandleFunc("/accounts/{accountId}/automations/{automationId}/stats", analyticsHandler.AutomationStats).Methods("GET")

	private.HandleFunc("/bio-pages", bioHandler.CreatePage).Methods("POST")
	private.HandleFunc("/bio-pages", bioHandler.ListPages).Methods("GET")
	private.HandleFunc("/bio-pages/{pageId}", bioHandler.GetPage).Methods("GET")
	private.HandleFunc("/bio-pages/{pageId}", bioHandler.UpdatePage).Methods("PUT")
	private.HandleFunc("/bio-pages/{pageId}", bioHandler.DeletePage).Methods("DELETE")
	private.HandleFunc("/bio-pages/{pageId}/stats", analyticsHandler.PageStats).Methods("GET")
	private.HandleFunc("/bio-pages/{pageId}/links/reorder", bioHandler.ReorderLinks).Methods("PUT")
	private.HandleFunc("/bio-pages/{pageId}/links", bioHandler.CreateLink).Methods("POST")
	private.HandleFunc("/bio-pages/{pageId}/links", bioHandler.ListLinks).Methods("GET")
	private.HandleFunc("/bio-pages/{pageId}/links/{linkId}", bioHandler.UpdateLink).Methods("PUT")
	private.HandleFunc("/bio-pages/{pageId}/links/{linkId}", bioHandler.DeleteLink).Methods("DELETE")
	private.HandleFunc("/bio-pages/{pageId}/social-links", bioHandler.ReplaceSocialLinks).Methods("PUT")
	private.HandleFunc("/bio-pages/{pageId}/social-links", bioHandler.ListSocialLinks).Methods("GET")
	private.HandleFunc("/bio-pages/{pageId}/leads", bioHandler.ListLeads).Methods("GET")

	return router
}

// WithCORS wraps the router with headers for the frontend origin.
func WithCORS(next http.Handler, frontendURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", frontendURL)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
