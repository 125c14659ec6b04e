package services

import (
	"context"
	"errors"
	"testing"

	"github.com/autogramhq/automation-service/internal/auth"
	"github.com/autogramhq/automation-service/internal/model"
)

// --- Users ---

func TestSignupAndAuthenticate(t *testing.T) {
	svc := NewUserService(newFakeStore())
	ctx := context.Background()

	u, err := svc.Signup(ctx, "ana@example.com", "hunter2hunter2", nil)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.PasswordHash == "hunter2hunter2" || u.PasswordHash == "" {
		t.Fatalf("password stored without hashing: %q", u.PasswordHash)
	}
	if !auth.CheckPassword(u.PasswordHash, "hunter2hunter2") {
		t.Fatal("stored hash does not verify")
	}

	got, err := svc.Authenticate(ctx, "ana@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.UserID != u.UserID {
		t.Fatalf("authenticated wrong user: %s != %s", got.UserID, u.UserID)
	}

	if _, err := svc.Authenticate(ctx, "ana@example.com", "wrong-password"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("wrong password: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "hunter2hunter2"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("unknown email: expected ErrUnauthorized, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := NewUserService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "not-an-email", "hunter2hunter2", nil); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("bad email: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Signup(ctx, "ok@example.com", "short", nil); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("short password: expected ErrValidation, got %v", err)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	fs := newFakeStore()
	svc := NewUserService(fs)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "off@example.com", "hunter2hunter2", nil)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	fs.usersByEmail["off@example.com"].IsActive = false
	fs.usersByID[u.UserID].IsActive = false

	if _, err := svc.Authenticate(ctx, "off@example.com", "hunter2hunter2"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("inactive user: expected ErrUnauthorized, got %v", err)
	}
}

// --- Accounts ---

func TestConnectSealsToken(t *testing.T) {
	fs := newFakeStore()
	svc := NewAccountService(fs, fakeSealer{}, &fakeRefresher{})
	ctx := context.Background()

	a, err := svc.Connect(ctx, "u-1", "ig-123", "creator", "IGQVJplain", nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if a.SealedToken != "sealed:IGQVJplain" {
		t.Fatalf("token not sealed before storage: %q", a.SealedToken)
	}
	if plain, err := svc.AccessToken(a); err != nil || plain != "IGQVJplain" {
		t.Fatalf("AccessToken: got=%q err=%v", plain, err)
	}
}

func TestConnectValidation(t *testing.T) {
	svc := NewAccountService(newFakeStore(), fakeSealer{}, &fakeRefresher{})
	ctx := context.Background()

	if _, err := svc.Connect(ctx, "u-1", "", "creator", "tok", nil); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("missing igUserId: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Connect(ctx, "u-1", "ig-1", "creator", "", nil); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("missing token: expected ErrValidation, got %v", err)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	fs := newFakeStore()
	svc := NewAccountService(fs, fakeSealer{}, &fakeRefresher{token: "fresh-token", ttl: 60 * 60})
	ctx := context.Background()

	a, err := svc.Connect(ctx, "u-1", "ig-123", "creator", "stale-token", nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	got, err := svc.RefreshAccessToken(ctx, "u-1", a.AccountID)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if got.SealedToken != "sealed:fresh-token" {
		t.Fatalf("refresh did not re-seal: %q", got.SealedToken)
	}
	if got.TokenExpiresAt == nil {
		t.Fatal("refresh did not set expiry")
	}
	if len(fs.tokenUpdates) != 1 || fs.tokenUpdates[0].accountID != a.AccountID {
		t.Fatalf("UpdateToken not persisted: %+v", fs.tokenUpdates)
	}
}

// --- Automations ---

func strPtr(s string) *string { return &s }

func TestCreateAutomationValidation(t *testing.T) {
	svc := NewAutomationService(newFakeStore())
	ctx := context.Background()

	valid := model.Automation{
		AccountID: "acc-1", Name: "welcome", PostID: "post-1",
		TriggerType: model.TriggerKeyword, Keywords: []string{"price"},
		MessageType: model.MessageTypeText, DMMessageTemplate: strPtr("Hi {username}!"),
	}

	cases := []struct {
		name   string
		mutate func(a *model.Automation)
	}{
		{"empty name", func(a *model.Automation) { a.Name = "  " }},
		{"missing post", func(a *model.Automation) { a.PostID = "" }},
		{"unknown trigger", func(a *model.Automation) { a.TriggerType = "mentions" }},
		{"keyword trigger without keywords", func(a *model.Automation) { a.Keywords = nil }},
		{"blank keyword", func(a *model.Automation) { a.Keywords = []string{" "} }},
		{"unknown message type", func(a *model.Automation) { a.MessageType = "video" }},
		{"text without template", func(a *model.Automation) { a.DMMessageTemplate = nil }},
		{"carousel without elements", func(a *model.Automation) {
			a.MessageType = model.MessageTypeCarousel
			a.CarouselElements = nil
		}},
		{"carousel element without title", func(a *model.Automation) {
			a.MessageType = model.MessageTypeCarousel
			a.CarouselElements = []model.CarouselElement{{Title: ""}}
		}},
		{"reply enabled without template", func(a *model.Automation) {
			a.CommentReplyEnabled = true
			a.CommentReplyTemplate = nil
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := valid
			tc.mutate(&a)
			if _, err := svc.CreateAutomation(ctx, &a); !errors.Is(err, model.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	a := valid
	created, err := svc.CreateAutomation(ctx, &a)
	if err != nil {
		t.Fatalf("valid automation rejected: %v", err)
	}
	if created.AutomationID == "" {
		t.Fatal("missing automation id")
	}
}

func TestCreateAutomationCarouselLimit(t *testing.T) {
	svc := NewAutomationService(newFakeStore())
	ctx := context.Background()

	elements := make([]model.CarouselElement, maxCarouselElements+1)
	for i := range elements {
		elements[i] = model.CarouselElement{Title: "card"}
	}
	a := &model.Automation{
		AccountID: "acc-1", Name: "big", PostID: "post-1",
		TriggerType: model.TriggerAllComments,
		MessageType: model.MessageTypeCarousel, CarouselElements: elements,
	}
	if _, err := svc.CreateAutomation(ctx, a); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("oversized carousel: expected ErrValidation, got %v", err)
	}
}

// --- Bio pages ---

func TestCreatePageSlugRules(t *testing.T) {
	svc := NewBioPageService(newFakeStore())
	ctx := context.Background()

	bad := []string{"ab", "has space", "UPPER!", "-lead", "trail-", "admin", "api", "a234567890123456789012345678901234567890123456789012"}
	for _, slug := range bad {
		if _, err := svc.CreatePage(ctx, &model.BioPage{UserID: "u-1", Slug: slug}); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("slug %q: expected ErrValidation, got %v", slug, err)
		}
	}

	p, err := svc.CreatePage(ctx, &model.BioPage{UserID: "u-1", Slug: "My-Creator-1"})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if p.Slug != "my-creator-1" {
		t.Fatalf("slug not normalized: %q", p.Slug)
	}
}

func TestGetPublicPageHidesUnpublished(t *testing.T) {
	fs := newFakeStore()
	svc := NewBioPageService(fs)
	ctx := context.Background()

	p, err := svc.CreatePage(ctx, &model.BioPage{UserID: "u-1", Slug: "creator"})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if _, err := svc.GetPublicPage(ctx, "creator"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unpublished page: expected ErrNotFound, got %v", err)
	}

	fs.pages[p.PageID].IsPublished = true
	if _, err := svc.AddLink(ctx, &model.BioLink{PageID: p.PageID, Title: "Shop", URL: "https://shop.example.com", IsActive: true}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	if _, err := svc.AddLink(ctx, &model.BioLink{PageID: p.PageID, Title: "Old", URL: "https://old.example.com", IsActive: false}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	pub, err := svc.GetPublicPage(ctx, "CREATOR")
	if err != nil {
		t.Fatalf("GetPublicPage: %v", err)
	}
	if len(pub.Links) != 1 || pub.Links[0].Title != "Shop" {
		t.Fatalf("public view must only show active links: %+v", pub.Links)
	}
}

func TestReorderLinksValidatesSet(t *testing.T) {
	fs := newFakeStore()
	svc := NewBioPageService(fs)
	ctx := context.Background()

	l1, _ := svc.AddLink(ctx, &model.BioLink{PageID: "page-1", Title: "A", URL: "https://a.example.com"})
	l2, _ := svc.AddLink(ctx, &model.BioLink{PageID: "page-1", Title: "B", URL: "https://b.example.com"})

	if err := svc.ReorderLinks(ctx, "page-1", []string{l1.LinkID}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("partial reorder: expected ErrValidation, got %v", err)
	}
	if err := svc.ReorderLinks(ctx, "page-1", []string{l1.LinkID, l1.LinkID}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("duplicate reorder: expected ErrValidation, got %v", err)
	}
	if err := svc.ReorderLinks(ctx, "page-1", []string{l2.LinkID, "link-x"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("unknown link id: expected ErrValidation, got %v", err)
	}

	if err := svc.ReorderLinks(ctx, "page-1", []string{l2.LinkID, l1.LinkID}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	links, _ := svc.ListLinks(ctx, "page-1")
	if links[0].LinkID != l2.LinkID || links[0].Position != 0 {
		t.Fatalf("order not applied: %+v", links)
	}
}

func TestReplaceSocialLinksValidation(t *testing.T) {
	svc := NewBioPageService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.ReplaceSocialLinks(ctx, "page-1", []*model.SocialLink{
		{Platform: "myspace", URL: "https://myspace.example.com"},
	}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("unknown platform: expected ErrValidation, got %v", err)
	}
	if _, err := svc.ReplaceSocialLinks(ctx, "page-1", []*model.SocialLink{
		{Platform: "tiktok", URL: "https://tiktok.com/@x"},
		{Platform: "TikTok", URL: "https://tiktok.com/@y"},
	}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("duplicate platform: expected ErrValidation, got %v", err)
	}

	out, err := svc.ReplaceSocialLinks(ctx, "page-1", []*model.SocialLink{
		{Platform: "Instagram", URL: "https://instagram.com/x"},
		{Platform: "youtube", URL: "https://youtube.com/@x"},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(out) != 2 || out[0].Platform != "instagram" || out[1].Position != 1 {
		t.Fatalf("replace result wrong: %+v", out)
	}
}

// --- Leads ---

func TestCaptureLead(t *testing.T) {
	fs := newFakeStore()
	pages := NewBioPageService(fs)
	svc := NewLeadService(fs)
	ctx := context.Background()

	p, err := pages.CreatePage(ctx, &model.BioPage{UserID: "u-1", Slug: "creator"})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	if _, err := svc.CaptureLead(ctx, "creator", &model.Lead{Email: "fan@example.com"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("lead on unpublished page: expected ErrNotFound, got %v", err)
	}

	fs.pages[p.PageID].IsPublished = true
	if _, err := svc.CaptureLead(ctx, "creator", &model.Lead{Email: "not-an-email"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("bad email: expected ErrValidation, got %v", err)
	}
	if _, err := svc.CaptureLead(ctx, "creator", &model.Lead{Email: "fan@example.com", SourceType: "carrier-pigeon"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("bad source: expected ErrValidation, got %v", err)
	}

	lead, err := svc.CaptureLead(ctx, "creator", &model.Lead{Email: "Fan@Example.com"})
	if err != nil {
		t.Fatalf("CaptureLead: %v", err)
	}
	if lead.Email != "fan@example.com" {
		t.Fatalf("email not normalized: %q", lead.Email)
	}
	if lead.SourceType != model.LeadSourceOther {
		t.Fatalf("source default wrong: %q", lead.SourceType)
	}
	if lead.PageID != p.PageID {
		t.Fatalf("lead not attached to page: %q", lead.PageID)
	}

	got, err := svc.ListLeads(ctx, "u-1", p.PageID, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListLeads: n=%d err=%v", len(got), err)
	}
	if _, err := svc.ListLeads(ctx, "u-2", p.PageID, 0); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("foreign user listing leads: expected ErrNotFound, got %v", err)
	}
}
