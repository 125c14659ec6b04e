package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique test identifiers
	suffix := uuid.New().String()
	email := "owner-" + suffix + "@example.test"

	// Users
	u, err := s.Users().Create(ctx, &model.User{Email: email, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.UserID == "" || !u.IsActive {
		t.Fatalf("CreateUser: bad result %+v", u)
	}
	if got, err := s.Users().GetByEmail(ctx, email); err != nil || got.UserID != u.UserID {
		t.Fatalf("GetByEmail: got=%v err=%v", got, err)
	}
	if _, err := s.Users().Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetUser missing: expected ErrNotFound, got %v", err)
	}

	// Instagram accounts
	acc, err := s.Accounts().Create(ctx, &model.InstagramAccount{
		UserID: u.UserID, IGUserID: "ig-" + suffix, Username: "tester", SealedToken: "sealed",
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if got, err := s.Accounts().GetByIGUserID(ctx, "ig-"+suffix); err != nil || got.AccountID != acc.AccountID {
		t.Fatalf("GetByIGUserID: got=%v err=%v", got, err)
	}
	if lst, err := s.Accounts().List(ctx, u.UserID); err != nil || len(lst) != 1 {
		t.Fatalf("ListAccounts: n=%d err=%v", len(lst), err)
	}
	exp := time.Now().UTC().Add(60 * 24 * time.Hour).Truncate(time.Second)
	if err := s.Accounts().UpdateToken(ctx, acc.AccountID, "sealed-v2", &exp); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}
	if got, err := s.Accounts().Get(ctx, u.UserID, acc.AccountID); err != nil || got.SealedToken != "sealed-v2" || got.TokenExpiresAt == nil {
		t.Fatalf("UpdateToken not persisted: got=%+v err=%v", got, err)
	}

	// Automations
	tmpl := "Hi {username}!"
	a, err := s.Automations().Create(ctx, &model.Automation{
		AccountID: acc.AccountID, Name: "welcome", PostID: "post-1",
		TriggerType: model.TriggerKeyword, Keywords: []string{"price", "link"},
		MessageType: model.MessageTypeText, DMMessageTemplate: &tmpl, IsActive: true,
	})
	if err != nil {
		t.Fatalf("CreateAutomation: %v", err)
	}
	if got, err := s.Automations().Get(ctx, acc.AccountID, a.AutomationID); err != nil || len(got.Keywords) != 2 {
		t.Fatalf("GetAutomation: got=%+v err=%v", got, err)
	}
	active, err := s.Automations().ListActiveForPost(ctx, acc.IGUserID, "post-1")
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActiveForPost: n=%d err=%v", len(active), err)
	}
	if err := s.Automations().SetActive(ctx, acc.AccountID, a.AutomationID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if active, _ = s.Automations().ListActiveForPost(ctx, acc.IGUserID, "post-1"); len(active) != 0 {
		t.Fatalf("deactivated automation still listed: %d", len(active))
	}
	a.Name = "welcome-v2"
	a.MessageType = model.MessageTypeCarousel
	a.CarouselElements = []model.CarouselElement{{Title: "Card", Buttons: []model.CarouselButton{{Title: "Open", URL: "https://x.test"}}}}
	if upd, err := s.Automations().Update(ctx, a); err != nil || upd.Name != "welcome-v2" || len(upd.CarouselElements) != 1 {
		t.Fatalf("UpdateAutomation: got=%+v err=%v", upd, err)
	}

	// Send logs: at most one DM per (automation, commenter)
	if sent, err := s.SendLogs().DMSentTo(ctx, a.AutomationID, "commenter-1"); err != nil || sent {
		t.Fatalf("DMSentTo before send: sent=%v err=%v", sent, err)
	}
	if _, err := s.SendLogs().RecordDM(ctx, &model.DMSentLog{
		AutomationID: a.AutomationID, CommentID: "c1", CommenterID: "commenter-1",
		CommenterUsername: "alice", Status: "sent",
	}); err != nil {
		t.Fatalf("RecordDM: %v", err)
	}
	if sent, err := s.SendLogs().DMSentTo(ctx, a.AutomationID, "commenter-1"); err != nil || !sent {
		t.Fatalf("DMSentTo after send: sent=%v err=%v", sent, err)
	}
	if _, err := s.SendLogs().RecordDM(ctx, &model.DMSentLog{
		AutomationID: a.AutomationID, CommentID: "c2", CommenterID: "commenter-1", Status: "sent",
	}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate DM record: expected ErrConflict, got %v", err)
	}
	if _, err := s.SendLogs().RecordReply(ctx, &model.CommentReplyLog{
		AutomationID: a.AutomationID, CommentID: "c1", CommenterID: "commenter-1",
		CommenterUsername: "alice", ReplyText: "check your DMs",
	}); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}

	// Webhook events
	ev, err := s.Events().Insert(ctx, &model.WebhookEvent{
		MessageID: "msg-" + suffix, IGAccountID: acc.IGUserID, Payload: []byte(`{"k":"v"}`),
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	// Redelivery of the same message id must not create a second row.
	dup, err := s.Events().Insert(ctx, &model.WebhookEvent{
		MessageID: "msg-" + suffix, IGAccountID: acc.IGUserID, Payload: []byte(`{"k":"v"}`),
	})
	if err != nil || dup.ID != ev.ID {
		t.Fatalf("InsertEvent redelivery: ev=%v dup=%v err=%v", ev.ID, dup.ID, err)
	}
	leased, err := s.Events().Lease(ctx, 10)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	found := false
	for _, l := range leased {
		if l.ID == ev.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("leased batch missing inserted event %d", ev.ID)
	}
	// A claimed event must be invisible to a second poller until its lease
	// expires or it is failed back to pending.
	again, err := s.Events().Lease(ctx, 10)
	if err != nil {
		t.Fatalf("second Lease: %v", err)
	}
	for _, l := range again {
		if l.ID == ev.ID {
			t.Fatalf("event %d leased twice concurrently", ev.ID)
		}
	}
	if err := s.Events().MarkFailed(ctx, ev.ID); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	// Failed events return to pending with a backoff in the future, so the
	// next immediate poll must still skip them.
	if backlog, err := s.Events().Lease(ctx, 10); err != nil {
		t.Fatalf("Lease after MarkFailed: %v", err)
	} else {
		for _, l := range backlog {
			if l.ID == ev.ID {
				t.Fatalf("event %d leasable before backoff elapsed", ev.ID)
			}
		}
	}
	if err := s.Events().MarkDone(ctx, ev.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	// Redelivery after completion must surface the stored status.
	if dup, err := s.Events().Insert(ctx, &model.WebhookEvent{
		MessageID: "msg-" + suffix, IGAccountID: acc.IGUserID, Payload: []byte(`{"k":"v"}`),
	}); err != nil || dup.Status != model.EventStatusDone {
		t.Fatalf("InsertEvent after done: status=%q err=%v", dup.Status, err)
	}

	// Bio pages
	p, err := s.BioPages().Create(ctx, &model.BioPage{UserID: u.UserID, Slug: "slug-" + suffix[:8], IsPublished: true})
	if err != nil {
		t.Fatalf("CreateBioPage: %v", err)
	}
	if got, err := s.BioPages().GetBySlug(ctx, p.Slug); err != nil || got.PageID != p.PageID {
		t.Fatalf("GetBySlug: got=%v err=%v", got, err)
	}
	// One page per user.
	if _, err := s.BioPages().Create(ctx, &model.BioPage{UserID: u.UserID, Slug: "second-" + suffix[:8]}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("second page for user: expected ErrConflict, got %v", err)
	}

	// Bio links keep append order and reorder atomically
	l1, err := s.BioLinks().Create(ctx, &model.BioLink{PageID: p.PageID, Title: "One", URL: "https://one.test", IsActive: true})
	if err != nil {
		t.Fatalf("CreateBioLink: %v", err)
	}
	l2, err := s.BioLinks().Create(ctx, &model.BioLink{PageID: p.PageID, Title: "Two", URL: "https://two.test", IsActive: false})
	if err != nil {
		t.Fatalf("CreateBioLink: %v", err)
	}
	if l2.Position <= l1.Position {
		t.Fatalf("expected appended link after first: %d <= %d", l2.Position, l1.Position)
	}
	if lst, err := s.BioLinks().ListActive(ctx, p.PageID); err != nil || len(lst) != 1 {
		t.Fatalf("ListActive: n=%d err=%v", len(lst), err)
	}
	if err := s.BioLinks().Reorder(ctx, p.PageID, []string{l2.LinkID, l1.LinkID}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if lst, _ := s.BioLinks().List(ctx, p.PageID); len(lst) != 2 || lst[0].LinkID != l2.LinkID {
		t.Fatalf("Reorder not applied: %+v", lst)
	}

	// Social links bulk replace
	socials, err := s.SocialLinks().Replace(ctx, p.PageID, []*model.SocialLink{
		{Platform: "instagram", URL: "https://instagram.com/t"},
		{Platform: "tiktok", URL: "https://tiktok.com/@t"},
	})
	if err != nil || len(socials) != 2 {
		t.Fatalf("ReplaceSocialLinks: n=%d err=%v", len(socials), err)
	}
	socials, err = s.SocialLinks().Replace(ctx, p.PageID, []*model.SocialLink{
		{Platform: "youtube", URL: "https://youtube.com/@t"},
	})
	if err != nil || len(socials) != 1 {
		t.Fatalf("ReplaceSocialLinks second: n=%d err=%v", len(socials), err)
	}

	// Leads
	if _, err := s.Leads().Create(ctx, &model.Lead{
		PageID: p.PageID, Email: "lead@example.test", SourceType: model.LeadSourceCard,
		Metadata: map[string]interface{}{"utm": "bio"},
	}); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if lst, err := s.Leads().List(ctx, p.PageID, 10); err != nil || len(lst) != 1 || lst[0].Metadata["utm"] != "bio" {
		t.Fatalf("ListLeads: %+v err=%v", lst, err)
	}

	// Cascade cleanup
	if err := s.BioPages().Delete(ctx, u.UserID, p.PageID); err != nil {
		t.Fatalf("DeleteBioPage: %v", err)
	}
	if _, err := s.BioLinks().Get(ctx, p.PageID, l1.LinkID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected cascade delete of links, got %v", err)
	}
	if err := s.Accounts().Delete(ctx, u.UserID, acc.AccountID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := s.Automations().Get(ctx, acc.AccountID, a.AutomationID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected cascade delete of automations, got %v", err)
	}
	if err := s.Users().Delete(ctx, u.UserID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}
