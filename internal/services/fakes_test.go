package services

import (
	"context"
	"fmt"
	"time"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// --- Fakes ---

type fakeStore struct {
	usersByID    map[string]*model.User
	usersByEmail map[string]*model.User
	accounts     map[string]*model.InstagramAccount
	automations  map[string]*model.Automation
	pages        map[string]*model.BioPage
	links        map[string][]*model.BioLink
	socials      map[string][]*model.SocialLink
	leads        []*model.Lead

	tokenUpdates []struct {
		accountID, sealed string
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByID:    map[string]*model.User{},
		usersByEmail: map[string]*model.User{},
		accounts:     map[string]*model.InstagramAccount{},
		automations:  map[string]*model.Automation{},
		pages:        map[string]*model.BioPage{},
		links:        map[string][]*model.BioLink{},
		socials:      map[string][]*model.SocialLink{},
	}
}

func (f *fakeStore) Users() store.Users             { return &fakeUsers{f} }
func (f *fakeStore) Accounts() store.Accounts       { return &fakeAccounts{f} }
func (f *fakeStore) Automations() store.Automations { return &fakeAutomations{f} }
func (f *fakeStore) BioPages() store.BioPages       { return &fakeBioPages{f} }
func (f *fakeStore) BioLinks() store.BioLinks       { return &fakeBioLinks{f} }
func (f *fakeStore) SocialLinks() store.SocialLinks { return &fakeSocialLinks{f} }
func (f *fakeStore) Leads() store.Leads             { return &fakeLeads{f} }
func (f *fakeStore) Events() store.Events           { panic("unused") }
func (f *fakeStore) SendLogs() store.SendLogs       { panic("unused") }

type fakeUsers struct{ p *fakeStore }

func (u *fakeUsers) Create(_ context.Context, m *model.User) (*model.User, error) {
	if _, ok := u.p.usersByEmail[m.Email]; ok {
		return nil, model.ErrConflict
	}
	out := *m
	out.UserID = fmt.Sprintf("u-%d", len(u.p.usersByID)+1)
	out.CreationTime = time.Now().UTC()
	u.p.usersByID[out.UserID] = &out
	u.p.usersByEmail[out.Email] = &out
	return &out, nil
}
func (u *fakeUsers) Get(_ context.Context, userID string) (*model.User, error) {
	if m, ok := u.p.usersByID[userID]; ok {
		return m, nil
	}
	return nil, model.ErrNotFound
}
func (u *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if m, ok := u.p.usersByEmail[email]; ok {
		return m, nil
	}
	return nil, model.ErrNotFound
}
func (u *fakeUsers) Delete(context.Context, string) error { panic("unused") }

type fakeAccounts struct{ p *fakeStore }

func (a *fakeAccounts) Create(_ context.Context, m *model.InstagramAccount) (*model.InstagramAccount, error) {
	out := *m
	out.AccountID = fmt.Sprintf("acc-%d", len(a.p.accounts)+1)
	a.p.accounts[out.AccountID] = &out
	return &out, nil
}
func (a *fakeAccounts) Get(_ context.Context, userID, accountID string) (*model.InstagramAccount, error) {
	if m, ok := a.p.accounts[accountID]; ok && m.UserID == userID {
		return m, nil
	}
	return nil, model.ErrNotFound
}
func (a *fakeAccounts) GetByIGUserID(context.Context, string) (*model.InstagramAccount, error) {
	panic("unused")
}
func (a *fakeAccounts) List(_ context.Context, userID string) ([]*model.InstagramAccount, error) {
	var out []*model.InstagramAccount
	for _, m := range a.p.accounts {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}
func (a *fakeAccounts) UpdateToken(_ context.Context, accountID, sealed string, expiresAt *time.Time) error {
	m, ok := a.p.accounts[accountID]
	if !ok {
		return model.ErrNotFound
	}
	m.SealedToken = sealed
	m.TokenExpiresAt = expiresAt
	a.p.tokenUpdates = append(a.p.tokenUpdates, struct{ accountID, sealed string }{accountID, sealed})
	return nil
}
func (a *fakeAccounts) Delete(_ context.Context, userID, accountID string) error {
	if m, ok := a.p.accounts[accountID]; ok && m.UserID == userID {
		delete(a.p.accounts, accountID)
		return nil
	}
	return model.ErrNotFound
}

type fakeAutomations struct{ p *fakeStore }

func (a *fakeAutomations) Create(_ context.Context, m *model.Automation) (*model.Automation, error) {
	out := *m
	out.AutomationID = fmt.Sprintf("auto-%d", len(a.p.automations)+1)
	a.p.automations[out.AutomationID] = &out
	return &out, nil
}
func (a *fakeAutomations) Get(_ context.Context, accountID, automationID string) (*model.Automation, error) {
	if m, ok := a.p.automations[automationID]; ok && m.AccountID == accountID {
		return m, nil
	}
	return nil, model.ErrNotFound
}
func (a *fakeAutomations) List(context.Context, string) ([]*model.Automation, error) {
	panic("unused")
}
func (a *fakeAutomations) ListActiveForPost(context.Context, string, string) ([]*model.Automation, error) {
	panic("unused")
}
func (a *fakeAutomations) Update(_ context.Context, m *model.Automation) (*model.Automation, error) {
	if _, ok := a.p.automations[m.AutomationID]; !ok {
		return nil, model.ErrNotFound
	}
	out := *m
	a.p.automations[m.AutomationID] = &out
	return &out, nil
}
func (a *fakeAutomations) SetActive(context.Context, string, string, bool) error { panic("unused") }
func (a *fakeAutomations) Delete(context.Context, string, string) error          { panic("unused") }

type fakeBioPages struct{ p *fakeStore }

func (b *fakeBioPages) Create(_ context.Context, m *model.BioPage) (*model.BioPage, error) {
	for _, p := range b.p.pages {
		if p.Slug == m.Slug {
			return nil, model.ErrConflict
		}
	}
	out := *m
	out.PageID = fmt.Sprintf("page-%d", len(b.p.pages)+1)
	b.p.pages[out.PageID] = &out
	return &out, nil
}
func (b *fakeBioPages) Get(_ context.Context, userID, pageID string) (*model.BioPage, error) {
	if m, ok := b.p.pages[pageID]; ok && m.UserID == userID {
		return m, nil
	}
	return nil, model.ErrNotFound
}
func (b *fakeBioPages) GetBySlug(_ context.Context, slug string) (*model.BioPage, error) {
	for _, m := range b.p.pages {
		if m.Slug == slug {
			return m, nil
		}
	}
	return nil, model.ErrNotFound
}
func (b *fakeBioPages) List(context.Context, string) ([]*model.BioPage, error) { panic("unused") }
func (b *fakeBioPages) Update(_ context.Context, m *model.BioPage) (*model.BioPage, error) {
	if _, ok := b.p.pages[m.PageID]; !ok {
		return nil, model.ErrNotFound
	}
	out := *m
	b.p.pages[m.PageID] = &out
	return &out, nil
}
func (b *fakeBioPages) Delete(context.Context, string, string) error { panic("unused") }

type fakeBioLinks struct{ p *fakeStore }

func (b *fakeBioLinks) Create(_ context.Context, m *model.BioLink) (*model.BioLink, error) {
	out := *m
	out.LinkID = fmt.Sprintf("link-%d", len(b.p.links[m.PageID])+1)
	out.Position = len(b.p.links[m.PageID])
	b.p.links[m.PageID] = append(b.p.links[m.PageID], &out)
	return &out, nil
}
func (b *fakeBioLinks) Get(context.Context, string, string) (*model.BioLink, error) {
	panic("unused")
}
func (b *fakeBioLinks) List(_ context.Context, pageID string) ([]*model.BioLink, error) {
	return b.p.links[pageID], nil
}
func (b *fakeBioLinks) ListActive(_ context.Context, pageID string) ([]*model.BioLink, error) {
	var out []*model.BioLink
	for _, l := range b.p.links[pageID] {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}
func (b *fakeBioLinks) Update(context.Context, *model.BioLink) (*model.BioLink, error) {
	panic("unused")
}
func (b *fakeBioLinks) Reorder(_ context.Context, pageID string, ordered []string) error {
	byID := map[string]*model.BioLink{}
	for _, l := range b.p.links[pageID] {
		byID[l.LinkID] = l
	}
	next := make([]*model.BioLink, 0, len(ordered))
	for i, id := range ordered {
		l := byID[id]
		l.Position = i
		next = append(next, l)
	}
	b.p.links[pageID] = next
	return nil
}
func (b *fakeBioLinks) Delete(context.Context, string, string) error { panic("unused") }

type fakeSocialLinks struct{ p *fakeStore }

func (s *fakeSocialLinks) Replace(_ context.Context, pageID string, links []*model.SocialLink) ([]*model.SocialLink, error) {
	out := make([]*model.SocialLink, 0, len(links))
	for i, l := range links {
		cp := *l
		cp.SocialLinkID = fmt.Sprintf("soc-%d", i+1)
		cp.PageID = pageID
		cp.Position = i
		out = append(out, &cp)
	}
	s.p.socials[pageID] = out
	return out, nil
}
func (s *fakeSocialLinks) List(_ context.Context, pageID string) ([]*model.SocialLink, error) {
	return s.p.socials[pageID], nil
}

type fakeLeads struct{ p *fakeStore }

func (l *fakeLeads) Create(_ context.Context, m *model.Lead) (*model.Lead, error) {
	out := *m
	out.LeadID = fmt.Sprintf("lead-%d", len(l.p.leads)+1)
	out.CreationTime = time.Now().UTC()
	l.p.leads = append(l.p.leads, &out)
	return &out, nil
}
func (l *fakeLeads) List(_ context.Context, pageID string, limit int) ([]*model.Lead, error) {
	var out []*model.Lead
	for _, m := range l.p.leads {
		if m.PageID == pageID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeSealer struct{}

func (fakeSealer) Seal(token string) (string, error) { return "sealed:" + token, nil }
func (fakeSealer) Open(sealed string) (string, error) {
	if len(sealed) < 7 || sealed[:7] != "sealed:" {
		return "", fmt.Errorf("not a sealed token: %q", sealed)
	}
	return sealed[7:], nil
}

type fakeRefresher struct {
	token string
	ttl   time.Duration
	err   error
}

func (f *fakeRefresher) RefreshToken(context.Context, string) (string, time.Duration, error) {
	return f.token, f.ttl, f.err
}
