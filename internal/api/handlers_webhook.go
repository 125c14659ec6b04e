package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autogramhq/automation-service/internal/api/respond"
	"github.com/autogramhq/automation-service/internal/cache"
	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// WebhookHandler ingests Instagram comment webhooks. Deliveries are deduped
// in redis, normalized and enqueued as durable comment events; all Graph API
// work happens in the worker, never in the request path.
type WebhookHandler struct {
	store       store.Store
	cache       *cache.Client
	verifyToken string
	dedupTTL    time.Duration
}

func NewWebhookHandler(s store.Store, c *cache.Client, verifyToken string, dedupTTL time.Duration) *WebhookHandler {
	if dedupTTL <= 0 {
		dedupTTL = time.Hour
	}
	return &WebhookHandler{store: s, cache: c, verifyToken: verifyToken, dedupTTL: dedupTTL}
}

// Verify GET /api/v1/webhooks/instagram implements the Meta subscription
// handshake: echo hub.challenge when the verify token matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken {
		respond.WriteError(w, http.StatusForbidden, "verify token mismatch")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// webhookEnvelope mirrors the Graph API webhook delivery format.
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				ID   string `json:"id"`
				Text string `json:"text"`
				From struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"from"`
				Media struct {
					ID string `json:"id"`
				} `json:"media"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive POST /api/v1/webhooks/instagram
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var env webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if env.Object != "instagram" {
		// Not for us; acknowledge so Meta stops retrying.
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	queued := 0
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != "comments" || change.Value.ID == "" {
				continue
			}
			fresh, err := h.cache.SetNX(r.Context(), "webhook:dedup:"+change.Value.ID, "1", h.dedupTTL)
			if err != nil {
				// Dedup is advisory; the unique message_id constraint is the
				// durable guard.
				log.Warn().Err(err).Str("comment", change.Value.ID).Msg("webhook dedup check failed")
			} else if !fresh {
				continue
			}

			comment := model.CommentEvent{
				CommentID:         change.Value.ID,
				MediaID:           change.Value.Media.ID,
				Text:              change.Value.Text,
				CommenterID:       change.Value.From.ID,
				CommenterUsername: change.Value.From.Username,
			}
			payload, err := json.Marshal(comment)
			if err != nil {
				respond.WriteInternalError(w, "failed to encode event")
				return
			}
			if _, err := h.store.Events().Insert(r.Context(), &model.WebhookEvent{
				MessageID:   comment.CommentID,
				IGAccountID: entry.ID,
				Payload:     payload,
			}); err != nil {
				respond.WriteServiceError(w, fmt.Errorf("enqueue comment event: %w", err))
				return
			}
			queued++
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "queued", "events": queued})
}
