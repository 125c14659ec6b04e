// Package memory is an in-memory store.Store used by tests and local
// development. It honors the same uniqueness and backoff semantics as the
// postgres backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// New creates an empty in-memory store.
func New() store.Store {
	return &memStore{
		users:       map[string]*model.User{},
		accounts:    map[string]*model.InstagramAccount{},
		automations: map[string]*model.Automation{},
		pages:       map[string]*model.BioPage{},
		links:       map[string][]*model.BioLink{},
		socials:     map[string][]*model.SocialLink{},
		dmByKey:     map[string]*model.DMSentLog{},
		replyByKey:  map[string]*model.CommentReplyLog{},
		eventByMsg:  map[string]*model.WebhookEvent{},
	}
}

type memStore struct {
	mu sync.Mutex

	users       map[string]*model.User
	accounts    map[string]*model.InstagramAccount
	automations map[string]*model.Automation
	pages       map[string]*model.BioPage
	links       map[string][]*model.BioLink
	socials     map[string][]*model.SocialLink
	leads       []*model.Lead
	dmLogs      []*model.DMSentLog
	dmByKey     map[string]*model.DMSentLog
	replyByKey  map[string]*model.CommentReplyLog
	events      []*model.WebhookEvent
	eventByMsg  map[string]*model.WebhookEvent
	nextEventID int64
}

func (s *memStore) Users() store.Users             { return &memUsers{s} }
func (s *memStore) Accounts() store.Accounts       { return &memAccounts{s} }
func (s *memStore) Automations() store.Automations { return &memAutomations{s} }
func (s *memStore) BioPages() store.BioPages       { return &memBioPages{s} }
func (s *memStore) BioLinks() store.BioLinks       { return &memBioLinks{s} }
func (s *memStore) SocialLinks() store.SocialLinks { return &memSocialLinks{s} }
func (s *memStore) Leads() store.Leads             { return &memLeads{s} }
func (s *memStore) Events() store.Events           { return &memEvents{s} }
func (s *memStore) SendLogs() store.SendLogs       { return &memSendLogs{s} }

// HealthPing implements health.HealthPinger; an in-memory store is always up.
func (s *memStore) HealthPing(context.Context) error { return nil }

// --- Users ---

type memUsers struct{ s *memStore }

func (u *memUsers) Create(_ context.Context, m *model.User) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, ex := range u.s.users {
		if ex.Email == m.Email {
			return nil, fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
	}
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	out.IsActive = true
	out.CreationTime = time.Now().UTC()
	u.s.users[out.UserID] = &out
	return &out, nil
}

func (u *memUsers) Get(_ context.Context, userID string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if m, ok := u.s.users[userID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, model.ErrNotFound
}

func (u *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, m := range u.s.users {
		if m.Email == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (u *memUsers) Delete(_ context.Context, userID string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[userID]; !ok {
		return model.ErrNotFound
	}
	delete(u.s.users, userID)
	return nil
}

// --- Accounts ---

type memAccounts struct{ s *memStore }

func (a *memAccounts) Create(_ context.Context, m *model.InstagramAccount) (*model.InstagramAccount, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, ex := range a.s.accounts {
		if ex.IGUserID == m.IGUserID {
			return nil, fmt.Errorf("%w: account already connected", model.ErrConflict)
		}
	}
	out := *m
	out.AccountID = uuid.New().String()
	out.CreationTime = time.Now().UTC()
	a.s.accounts[out.AccountID] = &out
	return &out, nil
}

func (a *memAccounts) Get(_ context.Context, userID, accountID string) (*model.InstagramAccount, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if m, ok := a.s.accounts[accountID]; ok && m.UserID == userID {
		cp := *m
		return &cp, nil
	}
	return nil, model.ErrNotFound
}

func (a *memAccounts) GetByIGUserID(_ context.Context, igUserID string) (*model.InstagramAccount, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, m := range a.s.accounts {
		if m.IGUserID == igUserID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (a *memAccounts) List(_ context.Context, userID string) ([]*model.InstagramAccount, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []*model.InstagramAccount
	for _, m := range a.s.accounts {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.Before(out[j].CreationTime) })
	return out, nil
}

func (a *memAccounts) UpdateToken(_ context.Context, accountID, sealedToken string, expiresAt *time.Time) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	m, ok := a.s.accounts[accountID]
	if !ok {
		return model.ErrNotFound
	}
	m.SealedToken = sealedToken
	m.TokenExpiresAt = expiresAt
	return nil
}

func (a *memAccounts) Delete(_ context.Context, userID, accountID string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if m, ok := a.s.accounts[accountID]; ok && m.UserID == userID {
		delete(a.s.accounts, accountID)
		for id, auto := range a.s.automations {
			if auto.AccountID == accountID {
				delete(a.s.automations, id)
			}
		}
		return nil
	}
	return model.ErrNotFound
}

// --- Automations ---

type memAutomations struct{ s *memStore }

func (a *memAutomations) Create(_ context.Context, m *model.Automation) (*model.Automation, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	out := *m
	out.AutomationID = uuid.New().String()
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now
	a.s.automations[out.AutomationID] = &out
	cp := out
	return &cp, nil
}

func (a *memAutomations) Get(_ context.Context, accountID, automationID string) (*model.Automation, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if m, ok := a.s.automations[automationID]; ok && m.AccountID == accountID {
		cp := *m
		return &cp, nil
	}
	return nil, model.ErrNotFound
}

func (a *memAutomations) List(_ context.Context, accountID string) ([]*model.Automation, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []*model.Automation
	for _, m := range a.s.automations {
		if m.AccountID == accountID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.Before(out[j].CreationTime) })
	return out, nil
}

func (a *memAutomations) ListActiveForPost(_ context.Context, igAccountID, postID string) ([]*model.Automation, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var accountID string
	for _, acc := range a.s.accounts {
		if acc.IGUserID == igAccountID {
			accountID = acc.AccountID
		}
	}
	var out []*model.Automation
	for _, m := range a.s.automations {
		if m.AccountID == accountID && m.IsActive && m.PostID == postID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (a *memAutomations) Update(_ context.Context, m *model.Automation) (*model.Automation, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	ex, ok := a.s.automations[m.AutomationID]
	if !ok || ex.AccountID != m.AccountID {
		return nil, model.ErrNotFound
	}
	out := *m
	out.CreationTime = ex.CreationTime
	out.UpdateTime = time.Now().UTC()
	a.s.automations[m.AutomationID] = &out
	cp := out
	return &cp, nil
}

func (a *memAutomations) SetActive(_ context.Context, accountID, automationID string, active bool) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if m, ok := a.s.automations[automationID]; ok && m.AccountID == accountID {
		m.IsActive = active
		m.UpdateTime = time.Now().UTC()
		return nil
	}
	return model.ErrNotFound
}

func (a *memAutomations) Delete(_ context.Context, accountID, automationID string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if m, ok := a.s.automations[automationID]; ok && m.AccountID == accountID {
		delete(a.s.automations, automationID)
		return nil
	}
	return model.ErrNotFound
}

// --- Bio pages ---

type memBioPages struct{ s *memStore }

func (b *memBioPages) Create(_ context.Context, m *model.BioPage) (*model.BioPage, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	for _, ex := range b.s.pages {
		if ex.Slug == m.Slug {
			return nil, fmt.Errorf("%w: slug already taken", model.ErrConflict)
		}
		if ex.UserID == m.UserID {
			return nil, fmt.Errorf("%w: user already has a page", model.ErrConflict)
		}
	}
	out := *m
	out.PageID = uuid.New().String()
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now
	b.s.pages[out.PageID] = &out
	cp := out
	return &cp, nil
}

func (b *memBioPages) Get(_ context.Context, userID, pageID string) (*model.BioPage, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if m, ok := b.s.pages[pageID]; ok && m.UserID == userID {
		cp := *m
		return &cp, nil
	}
	return nil, model.ErrNotFound
}

func (b *memBioPages) GetBySlug(_ context.Context, slug string) (*model.BioPage, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	for _, m := range b.s.pages {
		if m.Slug == slug {
			cp := *m
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (b *memBioPages) List(_ context.Context, userID string) ([]*model.BioPage, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	var out []*model.BioPage
	for _, m := range b.s.pages {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationTime.Before(out[j].CreationTime) })
	return out, nil
}

func (b *memBioPages) Update(_ context.Context, m *model.BioPage) (*model.BioPage, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	ex, ok := b.s.pages[m.PageID]
	if !ok || ex.UserID != m.UserID {
		return nil, model.ErrNotFound
	}
	for id, other := range b.s.pages {
		if id != m.PageID && other.Slug == m.Slug {
			return nil, fmt.Errorf("%w: slug already taken", model.ErrConflict)
		}
	}
	out := *m
	out.CreationTime = ex.CreationTime
	out.UpdateTime = time.Now().UTC()
	b.s.pages[m.PageID] = &out
	cp := out
	return &cp, nil
}

func (b *memBioPages) Delete(_ context.Context, userID, pageID string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if m, ok := b.s.pages[pageID]; ok && m.UserID == userID {
		delete(b.s.pages, pageID)
		delete(b.s.links, pageID)
		delete(b.s.socials, pageID)
		return nil
	}
	return model.ErrNotFound
}

// --- Bio links ---

type memBioLinks struct{ s *memStore }

func (b *memBioLinks) Create(_ context.Context, m *model.BioLink) (*model.BioLink, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out := *m
	out.LinkID = uuid.New().String()
	out.Position = len(b.s.links[m.PageID])
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now
	b.s.links[m.PageID] = append(b.s.links[m.PageID], &out)
	cp := out
	return &cp, nil
}

func (b *memBioLinks) Get(_ context.Context, pageID, linkID string) (*model.BioLink, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	for _, l := range b.s.links[pageID] {
		if l.LinkID == linkID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (b *memBioLinks) List(_ context.Context, pageID string) ([]*model.BioLink, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out := make([]*model.BioLink, 0, len(b.s.links[pageID]))
	for _, l := range b.s.links[pageID] {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (b *memBioLinks) ListActive(ctx context.Context, pageID string) ([]*model.BioLink, error) {
	all, err := b.List(ctx, pageID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, l := range all {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (b *memBioLinks) Update(_ context.Context, m *model.BioLink) (*model.BioLink, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	for _, l := range b.s.links[m.PageID] {
		if l.LinkID == m.LinkID {
			l.Title = m.Title
			l.URL = m.URL
			l.IsActive = m.IsActive
			l.UpdateTime = time.Now().UTC()
			cp := *l
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (b *memBioLinks) Reorder(_ context.Context, pageID string, orderedLinkIDs []string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	byID := map[string]*model.BioLink{}
	for _, l := range b.s.links[pageID] {
		byID[l.LinkID] = l
	}
	next := make([]*model.BioLink, 0, len(orderedLinkIDs))
	for i, id := range orderedLinkIDs {
		l, ok := byID[id]
		if !ok {
			return model.ErrNotFound
		}
		l.Position = i
		next = append(next, l)
	}
	b.s.links[pageID] = next
	return nil
}

func (b *memBioLinks) Delete(_ context.Context, pageID, linkID string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	links := b.s.links[pageID]
	for i, l := range links {
		if l.LinkID == linkID {
			b.s.links[pageID] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFound
}

// --- Social links ---

type memSocialLinks struct{ s *memStore }

func (sl *memSocialLinks) Replace(_ context.Context, pageID string, links []*model.SocialLink) ([]*model.SocialLink, error) {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	out := make([]*model.SocialLink, 0, len(links))
	for i, l := range links {
		cp := *l
		cp.SocialLinkID = uuid.New().String()
		cp.PageID = pageID
		cp.Position = i
		out = append(out, &cp)
	}
	sl.s.socials[pageID] = out
	result := make([]*model.SocialLink, len(out))
	for i, l := range out {
		cp := *l
		result[i] = &cp
	}
	return result, nil
}

func (sl *memSocialLinks) List(_ context.Context, pageID string) ([]*model.SocialLink, error) {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	out := make([]*model.SocialLink, 0, len(sl.s.socials[pageID]))
	for _, l := range sl.s.socials[pageID] {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

// --- Leads ---

type memLeads struct{ s *memStore }

func (l *memLeads) Create(_ context.Context, m *model.Lead) (*model.Lead, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	out := *m
	out.LeadID = uuid.New().String()
	out.CreationTime = time.Now().UTC()
	l.s.leads = append(l.s.leads, &out)
	cp := out
	return &cp, nil
}

func (l *memLeads) List(_ context.Context, pageID string, limit int) ([]*model.Lead, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var out []*model.Lead
	for i := len(l.s.leads) - 1; i >= 0 && len(out) < limit; i-- {
		if l.s.leads[i].PageID == pageID {
			cp := *l.s.leads[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Events ---

type memEvents struct{ s *memStore }

func (e *memEvents) Insert(_ context.Context, m *model.WebhookEvent) (*model.WebhookEvent, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if ex, ok := e.s.eventByMsg[m.MessageID]; ok {
		cp := *ex
		return &cp, nil
	}
	e.s.nextEventID++
	out := *m
	out.ID = e.s.nextEventID
	out.Status = model.EventStatusPending
	out.NextAttemptAt = time.Now().UTC()
	out.CreationTime = time.Now().UTC()
	e.s.events = append(e.s.events, &out)
	e.s.eventByMsg[m.MessageID] = &out
	cp := out
	return &cp, nil
}

func (e *memEvents) Lease(_ context.Context, limit int) ([]*model.WebhookEvent, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	now := time.Now().UTC()
	var out []*model.WebhookEvent
	for _, ev := range e.s.events {
		if len(out) >= limit {
			break
		}
		leasable := ev.Status == model.EventStatusPending || ev.Status == model.EventStatusProcessing
		if leasable && !ev.NextAttemptAt.After(now) {
			// Claimed events are invisible to other pollers until the lease
			// window passes or they are marked failed.
			ev.Status = model.EventStatusProcessing
			ev.NextAttemptAt = now.Add(60 * time.Second)
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (e *memEvents) MarkDone(_ context.Context, id int64) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	for _, ev := range e.s.events {
		if ev.ID == id {
			ev.Status = model.EventStatusDone
			return nil
		}
	}
	return model.ErrNotFound
}

func (e *memEvents) MarkFailed(_ context.Context, id int64) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	for _, ev := range e.s.events {
		if ev.ID == id {
			ev.Status = model.EventStatusPending
			ev.AttemptCount++
			backoff := time.Duration(1<<uint(ev.AttemptCount)) * time.Second
			if backoff > 300*time.Second {
				backoff = 300 * time.Second
			}
			ev.NextAttemptAt = time.Now().UTC().Add(backoff)
			return nil
		}
	}
	return model.ErrNotFound
}

// --- Send logs ---

type memSendLogs struct{ s *memStore }

func dmKey(automationID, commenterID string) string { return automationID + "/" + commenterID }

func (l *memSendLogs) RecordDM(_ context.Context, m *model.DMSentLog) (*model.DMSentLog, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	key := dmKey(m.AutomationID, m.CommenterID)
	if _, ok := l.s.dmByKey[key]; ok {
		return nil, fmt.Errorf("%w: commenter already DMed", model.ErrConflict)
	}
	out := *m
	out.LogID = uuid.New().String()
	out.SentTime = time.Now().UTC()
	l.s.dmByKey[key] = &out
	l.s.dmLogs = append(l.s.dmLogs, &out)
	cp := out
	return &cp, nil
}

func (l *memSendLogs) DMSentTo(_ context.Context, automationID, commenterID string) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	_, ok := l.s.dmByKey[dmKey(automationID, commenterID)]
	return ok, nil
}

func (l *memSendLogs) RecordReply(_ context.Context, m *model.CommentReplyLog) (*model.CommentReplyLog, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	key := m.AutomationID + "/" + m.CommentID
	if _, ok := l.s.replyByKey[key]; ok {
		return nil, fmt.Errorf("%w: comment already replied", model.ErrConflict)
	}
	out := *m
	out.LogID = uuid.New().String()
	out.ReplyTime = time.Now().UTC()
	l.s.replyByKey[key] = &out
	cp := out
	return &cp, nil
}

func (l *memSendLogs) ListDMs(_ context.Context, automationID string, since time.Time) ([]*model.DMSentLog, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var out []*model.DMSentLog
	for i := len(l.s.dmLogs) - 1; i >= 0; i-- {
		m := l.s.dmLogs[i]
		if m.AutomationID == automationID && !m.SentTime.Before(since) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}
