package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// AutomationService manages comment-to-DM automation rules.
type AutomationService struct {
	store store.Store
}

func NewAutomationService(s store.Store) *AutomationService { return &AutomationService{store: s} }

const maxCarouselElements = 10

func validateAutomation(a *model.Automation) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	if a.PostID == "" {
		return fmt.Errorf("%w: postId is required", model.ErrValidation)
	}
	switch a.TriggerType {
	case model.TriggerAllComments:
		// keywords ignored
	case model.TriggerKeyword:
		if len(a.Keywords) == 0 {
			return fmt.Errorf("%w: keyword trigger requires at least one keyword", model.ErrValidation)
		}
		for _, k := range a.Keywords {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: keywords must be non-empty", model.ErrValidation)
			}
		}
	default:
		return fmt.Errorf("%w: unknown trigger type %q", model.ErrValidation, a.TriggerType)
	}
	switch a.MessageType {
	case model.MessageTypeText:
		if a.DMMessageTemplate == nil || strings.TrimSpace(*a.DMMessageTemplate) == "" {
			return fmt.Errorf("%w: text message requires dmMessageTemplate", model.ErrValidation)
		}
	case model.MessageTypeCarousel:
		if len(a.CarouselElements) == 0 {
			return fmt.Errorf("%w: carousel message requires at least one element", model.ErrValidation)
		}
		if len(a.CarouselElements) > maxCarouselElements {
			return fmt.Errorf("%w: carousel limited to %d elements", model.ErrValidation, maxCarouselElements)
		}
		for _, el := range a.CarouselElements {
			if strings.TrimSpace(el.Title) == "" {
				return fmt.Errorf("%w: carousel elements require a title", model.ErrValidation)
			}
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", model.ErrValidation, a.MessageType)
	}
	if a.CommentReplyEnabled && (a.CommentReplyTemplate == nil || strings.TrimSpace(*a.CommentReplyTemplate) == "") {
		return fmt.Errorf("%w: comment reply requires commentReplyTemplate", model.ErrValidation)
	}
	return nil
}

func (s *AutomationService) CreateAutomation(ctx context.Context, a *model.Automation) (*model.Automation, error) {
	if err := validateAutomation(a); err != nil {
		return nil, err
	}
	return s.store.Automations().Create(ctx, a)
}

func (s *AutomationService) GetAutomation(ctx context.Context, accountID, automationID string) (*model.Automation, error) {
	return s.store.Automations().Get(ctx, accountID, automationID)
}

func (s *AutomationService) ListAutomations(ctx context.Context, accountID string) ([]*model.Automation, error) {
	return s.store.Automations().List(ctx, accountID)
}

func (s *AutomationService) UpdateAutomation(ctx context.Context, a *model.Automation) (*model.Automation, error) {
	if err := validateAutomation(a); err != nil {
		return nil, err
	}
	return s.store.Automations().Update(ctx, a)
}

func (s *AutomationService) SetActive(ctx context.Context, accountID, automationID string, active bool) error {
	return s.store.Automations().SetActive(ctx, accountID, automationID, active)
}

func (s *AutomationService) DeleteAutomation(ctx context.Context, accountID, automationID string) error {
	return s.store.Automations().Delete(ctx, accountID, automationID)
}
