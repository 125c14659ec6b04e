package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// BioPageService manages link-in-bio pages, their links and social icons.
type BioPageService struct {
	store store.Store
}

func NewBioPageService(s store.Store) *BioPageService { return &BioPageService{store: s} }

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,48})[a-z0-9]$`)

// Slugs that collide with routing or operational namespaces.
var reservedSlugs = map[string]bool{
	"admin": true, "api": true, "app": true, "assets": true,
	"auth": true, "dashboard": true, "docs": true, "health": true,
	"login": true, "logout": true, "settings": true, "signup": true,
	"static": true, "www": true,
}

var allowedSocialPlatforms = map[string]bool{
	"instagram": true, "tiktok": true, "youtube": true, "twitter": true,
	"facebook": true, "linkedin": true, "whatsapp": true, "telegram": true,
	"website": true,
}

func validateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: slug must be 3-50 chars of lowercase letters, digits and hyphens", model.ErrValidation)
	}
	if reservedSlugs[slug] {
		return fmt.Errorf("%w: slug %q is reserved", model.ErrValidation, slug)
	}
	return nil
}

func validateLinkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", model.ErrValidation)
	}
	return nil
}

func (s *BioPageService) CreatePage(ctx context.Context, p *model.BioPage) (*model.BioPage, error) {
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	if err := validateSlug(p.Slug); err != nil {
		return nil, err
	}
	return s.store.BioPages().Create(ctx, p)
}

func (s *BioPageService) GetPage(ctx context.Context, userID, pageID string) (*model.BioPage, error) {
	return s.store.BioPages().Get(ctx, userID, pageID)
}

func (s *BioPageService) ListPages(ctx context.Context, userID string) ([]*model.BioPage, error) {
	return s.store.BioPages().List(ctx, userID)
}

func (s *BioPageService) UpdatePage(ctx context.Context, p *model.BioPage) (*model.BioPage, error) {
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	if err := validateSlug(p.Slug); err != nil {
		return nil, err
	}
	return s.store.BioPages().Update(ctx, p)
}

func (s *BioPageService) DeletePage(ctx context.Context, userID, pageID string) error {
	return s.store.BioPages().Delete(ctx, userID, pageID)
}

// PublicPage is the published view of a bio page with its active content.
type PublicPage struct {
	Page        *model.BioPage      `json:"page"`
	Links       []*model.BioLink    `json:"links"`
	SocialLinks []*model.SocialLink `json:"socialLinks"`
}

// GetPublicPage resolves a published page by slug. Unpublished pages are
// indistinguishable from missing ones.
func (s *BioPageService) GetPublicPage(ctx context.Context, slug string) (*PublicPage, error) {
	p, err := s.store.BioPages().GetBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	if !p.IsPublished {
		return nil, model.ErrNotFound
	}
	links, err := s.store.BioLinks().ListActive(ctx, p.PageID)
	if err != nil {
		return nil, err
	}
	socials, err := s.store.SocialLinks().List(ctx, p.PageID)
	if err != nil {
		return nil, err
	}
	return &PublicPage{Page: p, Links: links, SocialLinks: socials}, nil
}

// --- Links ---

func (s *BioPageService) AddLink(ctx context.Context, l *model.BioLink) (*model.BioLink, error) {
	if strings.TrimSpace(l.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if err := validateLinkURL(l.URL); err != nil {
		return nil, err
	}
	return s.store.BioLinks().Create(ctx, l)
}

func (s *BioPageService) GetLink(ctx context.Context, pageID, linkID string) (*model.BioLink, error) {
	return s.store.BioLinks().Get(ctx, pageID, linkID)
}

func (s *BioPageService) ListLinks(ctx context.Context, pageID string) ([]*model.BioLink, error) {
	return s.store.BioLinks().List(ctx, pageID)
}

func (s *BioPageService) UpdateLink(ctx context.Context, l *model.BioLink) (*model.BioLink, error) {
	if strings.TrimSpace(l.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if err := validateLinkURL(l.URL); err != nil {
		return nil, err
	}
	return s.store.BioLinks().Update(ctx, l)
}

// ReorderLinks applies a new ordering. The id set must exactly match the
// page's current links.
func (s *BioPageService) ReorderLinks(ctx context.Context, pageID string, orderedLinkIDs []string) error {
	existing, err := s.store.BioLinks().List(ctx, pageID)
	if err != nil {
		return err
	}
	if len(existing) != len(orderedLinkIDs) {
		return fmt.Errorf("%w: reorder must include every link exactly once", model.ErrValidation)
	}
	seen := make(map[string]bool, len(orderedLinkIDs))
	for _, id := range orderedLinkIDs {
		if seen[id] {
			return fmt.Errorf("%w: duplicate link id %q", model.ErrValidation, id)
		}
		seen[id] = true
	}
	for _, l := range existing {
		if !seen[l.LinkID] {
			return fmt.Errorf("%w: reorder missing link %q", model.ErrValidation, l.LinkID)
		}
	}
	return s.store.BioLinks().Reorder(ctx, pageID, orderedLinkIDs)
}

func (s *BioPageService) DeleteLink(ctx context.Context, pageID, linkID string) error {
	return s.store.BioLinks().Delete(ctx, pageID, linkID)
}

// --- Social links ---

// ReplaceSocialLinks swaps the full set of social icon links on a page.
func (s *BioPageService) ReplaceSocialLinks(ctx context.Context, pageID string, links []*model.SocialLink) ([]*model.SocialLink, error) {
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		platform := strings.ToLower(l.Platform)
		if !allowedSocialPlatforms[platform] {
			return nil, fmt.Errorf("%w: unknown platform %q", model.ErrValidation, l.Platform)
		}
		if seen[platform] {
			return nil, fmt.Errorf("%w: duplicate platform %q", model.ErrValidation, platform)
		}
		seen[platform] = true
		l.Platform = platform
		if err := validateLinkURL(l.URL); err != nil {
			return nil, err
		}
	}
	return s.store.SocialLinks().Replace(ctx, pageID, links)
}

func (s *BioPageService) ListSocialLinks(ctx context.Context, pageID string) ([]*model.SocialLink, error) {
	return s.store.SocialLinks().List(ctx, pageID)
}
