package store

import (
	"context"
	"time"

	"github.com/autogramhq/automation-service/internal/model"
)

// Store exposes persistence operations required by services and the worker.
// Implementations live under internal/store/<driver>/ (e.g., postgres).
type Store interface {
	Users() Users
	Accounts() Accounts
	Automations() Automations
	BioPages() BioPages
	BioLinks() BioLinks
	SocialLinks() SocialLinks
	Leads() Leads
	Events() Events
	SendLogs() SendLogs
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Delete(ctx context.Context, userID string) error
}

type Accounts interface {
	Create(ctx context.Context, a *model.InstagramAccount) (*model.InstagramAccount, error)
	Get(ctx context.Context, userID, accountID string) (*model.InstagramAccount, error)
	GetByIGUserID(ctx context.Context, igUserID string) (*model.InstagramAccount, error)
	List(ctx context.Context, userID string) ([]*model.InstagramAccount, error)
	// UpdateToken replaces the sealed access token after a refresh.
	UpdateToken(ctx context.Context, accountID, sealedToken string, expiresAt *time.Time) error
	Delete(ctx context.Context, userID, accountID string) error
}

type Automations interface {
	Create(ctx context.Context, a *model.Automation) (*model.Automation, error)
	Get(ctx context.Context, accountID, automationID string) (*model.Automation, error)
	List(ctx context.Context, accountID string) ([]*model.Automation, error)
	// ListActiveForPost returns active automations matching a media/post id,
	// joined with their owning account. Used by the worker.
	ListActiveForPost(ctx context.Context, igAccountID, postID string) ([]*model.Automation, error)
	Update(ctx context.Context, a *model.Automation) (*model.Automation, error)
	SetActive(ctx context.Context, accountID, automationID string, active bool) error
	Delete(ctx context.Context, accountID, automationID string) error
}

type BioPages interface {
	Create(ctx context.Context, p *model.BioPage) (*model.BioPage, error)
	Get(ctx context.Context, userID, pageID string) (*model.BioPage, error)
	GetBySlug(ctx context.Context, slug string) (*model.BioPage, error)
	List(ctx context.Context, userID string) ([]*model.BioPage, error)
	Update(ctx context.Context, p *model.BioPage) (*model.BioPage, error)
	Delete(ctx context.Context, userID, pageID string) error
}

type BioLinks interface {
	Create(ctx context.Context, l *model.BioLink) (*model.BioLink, error)
	Get(ctx context.Context, pageID, linkID string) (*model.BioLink, error)
	List(ctx context.Context, pageID string) ([]*model.BioLink, error)
	ListActive(ctx context.Context, pageID string) ([]*model.BioLink, error)
	Update(ctx context.Context, l *model.BioLink) (*model.BioLink, error)
	Reorder(ctx context.Context, pageID string, orderedLinkIDs []string) error
	Delete(ctx context.Context, pageID, linkID string) error
}

type SocialLinks interface {
	// Replace swaps the full set of social links on a page atomically.
	Replace(ctx context.Context, pageID string, links []*model.SocialLink) ([]*model.SocialLink, error)
	List(ctx context.Context, pageID string) ([]*model.SocialLink, error)
}

type Leads interface {
	Create(ctx context.Context, l *model.Lead) (*model.Lead, error)
	List(ctx context.Context, pageID string, limit int) ([]*model.Lead, error)
}

// Events is the durable webhook-event queue consumed by the worker.
type Events interface {
	Insert(ctx context.Context, e *model.WebhookEvent) (*model.WebhookEvent, error)
	// Lease locks and returns up to limit ready pending events.
	Lease(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
	MarkDone(ctx context.Context, id int64) error
	// MarkFailed increments attempt_count and schedules the next attempt with
	// capped exponential backoff.
	MarkFailed(ctx context.Context, id int64) error
}

type SendLogs interface {
	RecordDM(ctx context.Context, l *model.DMSentLog) (*model.DMSentLog, error)
	// DMSentTo reports whether an automation has already DMed a commenter.
	DMSentTo(ctx context.Context, automationID, commenterID string) (bool, error)
	RecordReply(ctx context.Context, l *model.CommentReplyLog) (*model.CommentReplyLog, error)
	ListDMs(ctx context.Context, automationID string, since time.Time) ([]*model.DMSentLog, error)
}
