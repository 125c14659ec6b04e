package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// LeadService captures and lists contacts collected on public bio pages.
type LeadService struct {
	store store.Store
}

func NewLeadService(s store.Store) *LeadService { return &LeadService{store: s} }

const (
	defaultLeadLimit = 50
	maxLeadLimit     = 200
)

// CaptureLead records a contact submitted on a published page. The page is
// looked up by slug so unpublished pages never accept leads.
func (s *LeadService) CaptureLead(ctx context.Context, slug string, l *model.Lead) (*model.Lead, error) {
	l.Email = strings.TrimSpace(strings.ToLower(l.Email))
	if !strfmt.Default.Validates("email", l.Email) {
		return nil, fmt.Errorf("%w: invalid email address", model.ErrValidation)
	}
	switch l.SourceType {
	case "":
		l.SourceType = model.LeadSourceOther
	case model.LeadSourceCard, model.LeadSourceWhatsApp, model.LeadSourceOther:
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", model.ErrValidation, l.SourceType)
	}
	p, err := s.store.BioPages().GetBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	if !p.IsPublished {
		return nil, model.ErrNotFound
	}
	l.PageID = p.PageID
	return s.store.Leads().Create(ctx, l)
}

// ListLeads returns the newest leads for a page owned by userID.
func (s *LeadService) ListLeads(ctx context.Context, userID, pageID string, limit int) ([]*model.Lead, error) {
	if _, err := s.store.BioPages().Get(ctx, userID, pageID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLeadLimit
	}
	if limit > maxLeadLimit {
		limit = maxLeadLimit
	}
	return s.store.Leads().List(ctx, pageID, limit)
}
