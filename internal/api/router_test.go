package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autogramhq/automation-service/internal/auth"
	"github.com/autogramhq/automation-service/internal/cache"
	"github.com/autogramhq/automation-service/internal/config"
	"github.com/autogramhq/automation-service/internal/store"
	"github.com/autogramhq/automation-service/internal/store/memory"
)

type nopSealer struct{}

func (nopSealer) Seal(token string) (string, error)  { return "sealed:" + token, nil }
func (nopSealer) Open(sealed string) (string, error) { return sealed[len("sealed:"):], nil }

type nopRefresher struct{}

func (nopRefresher) RefreshToken(context.Context, string) (string, time.Duration, error) {
	return "refreshed", time.Hour, nil
}

type testAPI struct {
	router http.Handler
	store  store.Store
	cache  *cache.Client
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	cfg := config.NewForTesting()
	cfg.WebhookVerifyToken = "verify-me"

	s := memory.New()
	deps := Deps{
		Config:    cfg,
		Store:     s,
		Cache:     c,
		Sessions:  auth.NewSessionManager(c, time.Hour),
		Sealer:    nopSealer{},
		Refresher: nopRefresher{},
		IsHealthy: func() bool { return true },
	}
	return &testAPI{router: NewRouter(deps), store: s, cache: c}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(out))
}

func (a *testAPI) signup(t *testing.T, email string) string {
	t.Helper()
	rr := a.do(t, "POST", "/api/v1/auth/signup", "", map[string]string{
		"email": email, "password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rr, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)
	token := a.signup(t, "ana@example.com")

	rr := a.do(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me struct {
		Email string `json:"email"`
	}
	decode(t, rr, &me)
	assert.Equal(t, "ana@example.com", me.Email)

	rr = a.do(t, "GET", "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = a.do(t, "GET", "/api/v1/auth/me", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = a.do(t, "POST", "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = a.do(t, "GET", "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	a := newTestAPI(t)
	a.signup(t, "dup@example.com")
	rr := a.do(t, "POST", "/api/v1/auth/signup", "", map[string]string{
		"email": "dup@example.com", "password": "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestAPI(t)
	a.signup(t, "ana@example.com")
	rr := a.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebhookVerification(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, "GET", "/api/v1/webhooks/instagram?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "12345", rr.Body.String())

	rr = a.do(t, "GET", "/api/v1/webhooks/instagram?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func webhookDelivery(commentID string) map[string]interface{} {
	return map[string]interface{}{
		"object": "instagram",
		"entry": []map[string]interface{}{{
			"id": "ig-99",
			"changes": []map[string]interface{}{{
				"field": "comments",
				"value": map[string]interface{}{
					"id":    commentID,
					"text":  "what is the price?",
					"from":  map[string]string{"id": "fan-1", "username": "alice"},
					"media": map[string]string{"id": "post-1"},
				},
			}},
		}},
	}
}

func TestWebhookReceiveDedupes(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, "POST", "/api/v1/webhooks/instagram", "", webhookDelivery("c-100"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Events int `json:"events"`
	}
	decode(t, rr, &resp)
	assert.Equal(t, 1, resp.Events)

	// Redelivery of the same comment is absorbed.
	rr = a.do(t, "POST", "/api/v1/webhooks/instagram", "", webhookDelivery("c-100"))
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &resp)
	assert.Equal(t, 0, resp.Events)

	leased, err := a.store.Events().Lease(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, leased, 1)
	assert.Equal(t, "c-100", leased[0].MessageID)
}

func TestWebhookIgnoresOtherObjects(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, "POST", "/api/v1/webhooks/instagram", "", map[string]interface{}{"object": "page"})
	require.Equal(t, http.StatusOK, rr.Code)

	leased, err := a.store.Events().Lease(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, leased)
}

func TestBioPageLifecycleAndPublicSurface(t *testing.T) {
	a := newTestAPI(t)
	token := a.signup(t, "creator@example.com")

	rr := a.do(t, "POST", "/api/v1/bio-pages", token, map[string]interface{}{
		"slug": "My-Creator", "isPublished": true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var page struct {
		PageID string `json:"pageId"`
		Slug   string `json:"slug"`
	}
	decode(t, rr, &page)
	assert.Equal(t, "my-creator", page.Slug)

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/bio-pages/%s/links", page.PageID), token, map[string]interface{}{
		"title": "Shop", "url": "https://shop.example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var link struct {
		LinkID string `json:"linkId"`
	}
	decode(t, rr, &link)

	// Public page view
	rr = a.do(t, "GET", "/api/v1/bio/my-creator", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var pub struct {
		Links []struct {
			LinkID string `json:"linkId"`
		} `json:"links"`
	}
	decode(t, rr, &pub)
	require.Len(t, pub.Links, 1)

	// Click redirect counts and redirects
	rr = a.do(t, "GET", fmt.Sprintf("/api/v1/bio/my-creator/links/%s", link.LinkID), "", nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Location"))

	// Lead capture
	rr = a.do(t, "POST", "/api/v1/bio/my-creator/leads", "", map[string]string{
		"email": "fan@example.com", "sourceType": "card",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = a.do(t, "GET", fmt.Sprintf("/api/v1/bio-pages/%s/leads", page.PageID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var leads struct {
		Count int `json:"count"`
	}
	decode(t, rr, &leads)
	assert.Equal(t, 1, leads.Count)

	// Stats reflect the view and the click
	rr = a.do(t, "GET", fmt.Sprintf("/api/v1/bio-pages/%s/stats", page.PageID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats struct {
		Views       int64            `json:"views"`
		TotalClicks int64            `json:"totalClicks"`
		LinkClicks  map[string]int64 `json:"linkClicks"`
	}
	decode(t, rr, &stats)
	assert.Equal(t, int64(1), stats.Views)
	assert.Equal(t, int64(1), stats.TotalClicks)
	assert.Equal(t, int64(1), stats.LinkClicks[link.LinkID])
}

func TestUnpublishedPageIsHidden(t *testing.T) {
	a := newTestAPI(t)
	token := a.signup(t, "creator@example.com")

	rr := a.do(t, "POST", "/api/v1/bio-pages", token, map[string]interface{}{
		"slug": "drafty", "isPublished": false,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = a.do(t, "GET", "/api/v1/bio/drafty", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, "POST", "/api/v1/bio/drafty/leads", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAutomationRoutesEnforceAccountOwnership(t *testing.T) {
	a := newTestAPI(t)
	owner := a.signup(t, "owner@example.com")
	intruder := a.signup(t, "intruder@example.com")

	rr := a.do(t, "POST", "/api/v1/instagram/accounts", owner, map[string]string{
		"igUserId": "ig-1", "username": "creator", "accessToken": "tok",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var acc struct {
		AccountID string `json:"accountId"`
	}
	decode(t, rr, &acc)

	body := map[string]interface{}{
		"name": "welcome", "postId": "post-1",
		"triggerType": "keyword", "keywords": []string{"price"},
		"messageType": "text", "dmMessageTemplate": "Hi {username}",
	}
	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/accounts/%s/automations", acc.AccountID), owner, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/accounts/%s/automations", acc.AccountID), intruder, body)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, "GET", fmt.Sprintf("/api/v1/accounts/%s/automations", acc.AccountID), intruder, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAutomationActivateDeactivate(t *testing.T) {
	a := newTestAPI(t)
	token := a.signup(t, "owner@example.com")

	rr := a.do(t, "POST", "/api/v1/instagram/accounts", token, map[string]string{
		"igUserId": "ig-1", "username": "creator", "accessToken": "tok",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var acc struct {
		AccountID string `json:"accountId"`
	}
	decode(t, rr, &acc)

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/accounts/%s/automations", acc.AccountID), token, map[string]interface{}{
		"name": "welcome", "postId": "post-1", "triggerType": "all_comments",
		"messageType": "text", "dmMessageTemplate": "Hi!",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var auto struct {
		AutomationID string `json:"automationId"`
		IsActive     bool   `json:"isActive"`
	}
	decode(t, rr, &auto)
	assert.True(t, auto.IsActive)

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/accounts/%s/automations/%s/deactivate", acc.AccountID, auto.AutomationID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, "GET", fmt.Sprintf("/api/v1/accounts/%s/automations/%s", acc.AccountID, auto.AutomationID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &auto)
	assert.False(t, auto.IsActive)
}

func TestHealthEndpoint(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, "GET", "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Status string `json:"status"`
	}
	decode(t, rr, &resp)
	assert.Equal(t, "healthy", resp.Status)
}

func TestInvalidAutomationPayloadRejected(t *testing.T) {
	a := newTestAPI(t)
	token := a.signup(t, "owner@example.com")

	rr := a.do(t, "POST", "/api/v1/instagram/accounts", token, map[string]string{
		"igUserId": "ig-1", "username": "creator", "accessToken": "tok",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var acc struct {
		AccountID string `json:"accountId"`
	}
	decode(t, rr, &acc)

	rr = a.do(t, "POST", fmt.Sprintf("/api/v1/accounts/%s/automations", acc.AccountID), token, map[string]interface{}{
		"name": "broken", "postId": "post-1", "triggerType": "keyword",
		"messageType": "text", "dmMessageTemplate": "Hi!",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
