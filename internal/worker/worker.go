// Package worker drains the comment_events queue and executes matching
// automations: DM the commenter, optionally reply to the comment, and log
// both so a commenter is never DMed twice by the same automation.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/services"
	"github.com/autogramhq/automation-service/internal/store"
)

// DMSender is the Graph API surface the worker needs.
type DMSender interface {
	SendTextDM(ctx context.Context, accessToken, igUserID, recipientID, text string) error
	SendCarousel(ctx context.Context, accessToken, igUserID, recipientID string, elements []model.CarouselElement) error
	ReplyToComment(ctx context.Context, accessToken, commentID, text string) error
}

// Config controls batch size and polling cadence.
type Config struct {
	BatchSize int
	Interval  time.Duration
}

// Worker polls pending comment events and processes them.
type Worker struct {
	store  store.Store
	sealer services.TokenSealer
	sender DMSender
	cfg    Config
	log    zerolog.Logger
}

func New(s store.Store, sealer services.TokenSealer, sender DMSender, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Worker{store: s, sealer: sealer, sender: sender, cfg: cfg, log: log}
}

// Run starts the polling loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("comment worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("comment worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				// Log and continue; per-event backoff prevents hot-looping.
				w.log.Error().Err(err).Msg("process cycle failed")
			}
		}
	}
}

// ProcessOnce leases one batch of ready events and processes each to a
// terminal or retried state.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	events, err := w.store.Events().Lease(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := w.handle(ctx, ev); err != nil {
			w.log.Warn().Err(err).Int64("event", ev.ID).Int("attempt", ev.AttemptCount+1).Msg("event failed")
			if e := w.store.Events().MarkFailed(ctx, ev.ID); e != nil {
				w.log.Error().Err(e).Int64("event", ev.ID).Msg("mark failed error")
			}
			continue
		}
		if e := w.store.Events().MarkDone(ctx, ev.ID); e != nil {
			w.log.Error().Err(e).Int64("event", ev.ID).Msg("mark done error")
		}
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, ev *model.WebhookEvent) error {
	var comment model.CommentEvent
	if err := json.Unmarshal(ev.Payload, &comment); err != nil {
		// Malformed payloads never become processable; drop them.
		w.log.Warn().Int64("event", ev.ID).Msg("dropping malformed payload")
		return nil
	}

	account, err := w.store.Accounts().GetByIGUserID(ctx, ev.IGAccountID)
	if errors.Is(err, model.ErrNotFound) {
		// Account disconnected after the webhook arrived.
		w.log.Debug().Str("igAccount", ev.IGAccountID).Msg("skipping event for unknown account")
		return nil
	}
	if err != nil {
		return err
	}

	// Never react to the account's own comments.
	if comment.CommenterID == account.IGUserID {
		return nil
	}

	automations, err := w.store.Automations().ListActiveForPost(ctx, ev.IGAccountID, comment.MediaID)
	if err != nil {
		return err
	}

	token := ""
	for _, a := range automations {
		if !matches(a, comment.Text) {
			continue
		}
		if token == "" {
			if token, err = w.sealer.Open(account.SealedToken); err != nil {
				return fmt.Errorf("unseal token for %s: %w", account.AccountID, err)
			}
		}
		if err := w.execute(ctx, a, account, &comment, token); err != nil {
			return err
		}
	}
	return nil
}

// matches reports whether a comment triggers an automation. Keyword matching
// is whole-word and case-insensitive.
func matches(a *model.Automation, text string) bool {
	switch a.TriggerType {
	case model.TriggerAllComments:
		return true
	case model.TriggerKeyword:
		for _, kw := range a.Keywords {
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(kw)) + `\b`)
			if err != nil {
				continue
			}
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func renderTemplate(tmpl, username string) string {
	return strings.ReplaceAll(tmpl, "{username}", username)
}

func (w *Worker) execute(ctx context.Context, a *model.Automation, account *model.InstagramAccount, c *model.CommentEvent, token string) error {
	sent, err := w.store.SendLogs().DMSentTo(ctx, a.AutomationID, c.CommenterID)
	if err != nil {
		return err
	}
	if sent {
		w.log.Debug().Str("automation", a.AutomationID).Str("commenter", c.CommenterID).Msg("commenter already DMed")
		return nil
	}

	switch a.MessageType {
	case model.MessageTypeCarousel:
		err = w.sender.SendCarousel(ctx, token, account.IGUserID, c.CommenterID, a.CarouselElements)
	default:
		text := ""
		if a.DMMessageTemplate != nil {
			text = renderTemplate(*a.DMMessageTemplate, c.CommenterUsername)
		}
		err = w.sender.SendTextDM(ctx, token, account.IGUserID, c.CommenterID, text)
	}
	if err != nil {
		return fmt.Errorf("send DM (automation %s): %w", a.AutomationID, err)
	}

	if _, err := w.store.SendLogs().RecordDM(ctx, &model.DMSentLog{
		AutomationID:      a.AutomationID,
		CommentID:         c.CommentID,
		CommenterID:       c.CommenterID,
		CommenterUsername: c.CommenterUsername,
		Status:            "sent",
	}); err != nil {
		// The DM went out; a conflicting log row means a concurrent worker won.
		if errors.Is(err, model.ErrConflict) {
			return nil
		}
		return err
	}

	if a.CommentReplyEnabled && a.CommentReplyTemplate != nil {
		reply := renderTemplate(*a.CommentReplyTemplate, c.CommenterUsername)
		if err := w.sender.ReplyToComment(ctx, token, c.CommentID, reply); err != nil {
			// Reply is best-effort; the DM already succeeded.
			w.log.Warn().Err(err).Str("automation", a.AutomationID).Msg("comment reply failed")
			return nil
		}
		if _, err := w.store.SendLogs().RecordReply(ctx, &model.CommentReplyLog{
			AutomationID:      a.AutomationID,
			CommentID:         c.CommentID,
			CommenterID:       c.CommenterID,
			CommenterUsername: c.CommenterUsername,
			ReplyText:         reply,
		}); err != nil && !errors.Is(err, model.ErrConflict) {
			return err
		}
	}
	return nil
}
