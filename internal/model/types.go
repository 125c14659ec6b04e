package model

import "time"

// Automation trigger types.
const (
	TriggerAllComments = "all_comments"
	TriggerKeyword     = "keyword"
)

// Automation DM message types.
const (
	MessageTypeText     = "text"
	MessageTypeCarousel = "carousel"
)

// Lead source types.
const (
	LeadSourceCard     = "card"
	LeadSourceWhatsApp = "whatsapp"
	LeadSourceOther    = "other"
)

// Webhook event lifecycle states used by the worker. A leased event is
// processing until it is marked done or returned to pending with backoff.
const (
	EventStatusPending    = "pending"
	EventStatusProcessing = "processing"
	EventStatusDone       = "done"
)

// User represents a registered account in the system.
type User struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"displayName,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreationTime time.Time `json:"creationTime"`
}

// InstagramAccount is a connected Instagram business account. The Graph API
// access token is stored sealed (AES-GCM) and never serialized.
type InstagramAccount struct {
	AccountID      string     `json:"accountId"`
	UserID         string     `json:"userId"`
	IGUserID       string     `json:"igUserId"`
	Username       string     `json:"username"`
	SealedToken    string     `json:"-"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	CreationTime   time.Time  `json:"creationTime"`
}

// CarouselButton is a call-to-action button on a carousel card.
type CarouselButton struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CarouselElement is one card of a carousel DM.
type CarouselElement struct {
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle,omitempty"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Buttons  []CarouselButton `json:"buttons,omitempty"`
}

// Automation configures an auto-DM rule for comments on one post.
type Automation struct {
	AutomationID         string            `json:"automationId"`
	AccountID            string            `json:"accountId"`
	Name                 string            `json:"name"`
	PostID               string            `json:"postId"`
	TriggerType          string            `json:"triggerType"`
	Keywords             []string          `json:"keywords,omitempty"`
	MessageType          string            `json:"messageType"`
	DMMessageTemplate    *string           `json:"dmMessageTemplate,omitempty"`
	CarouselElements     []CarouselElement `json:"carouselElements,omitempty"`
	CommentReplyEnabled  bool              `json:"commentReplyEnabled"`
	CommentReplyTemplate *string           `json:"commentReplyTemplate,omitempty"`
	IsActive             bool              `json:"isActive"`
	CreationTime         time.Time         `json:"creationTime"`
	UpdateTime           time.Time         `json:"updateTime"`
}

// DMSentLog records one DM sent by an automation; it also enforces the
// one-DM-per-commenter rule.
type DMSentLog struct {
	LogID             string    `json:"logId"`
	AutomationID      string    `json:"automationId"`
	CommentID         string    `json:"commentId"`
	CommenterID       string    `json:"commenterId"`
	CommenterUsername string    `json:"commenterUsername"`
	Status            string    `json:"status"`
	SentTime          time.Time `json:"sentTime"`
}

// CommentReplyLog records one public comment reply sent by an automation.
type CommentReplyLog struct {
	LogID             string    `json:"logId"`
	AutomationID      string    `json:"automationId"`
	CommentID         string    `json:"commentId"`
	CommenterID       string    `json:"commenterId"`
	CommenterUsername string    `json:"commenterUsername"`
	ReplyText         string    `json:"replyText"`
	ReplyTime         time.Time `json:"replyTime"`
}

// WebhookEvent is a durable comment-webhook envelope awaiting worker
// processing. Payload holds the raw JSON as received.
type WebhookEvent struct {
	ID            int64     `json:"id"`
	MessageID     string    `json:"messageId"`
	IGAccountID   string    `json:"igAccountId"`
	Payload       []byte    `json:"payload"`
	Status        string    `json:"status"`
	AttemptCount  int       `json:"attemptCount"`
	NextAttemptAt time.Time `json:"nextAttemptAt"`
	CreationTime  time.Time `json:"creationTime"`
}

// CommentEvent is the normalized comment payload stored inside a
// WebhookEvent and consumed by the worker.
type CommentEvent struct {
	CommentID         string `json:"commentId"`
	MediaID           string `json:"mediaId"`
	Text              string `json:"text"`
	CommenterID       string `json:"commenterId"`
	CommenterUsername string `json:"commenterUsername"`
}

// BioPage is a user's public link-in-bio page.
type BioPage struct {
	PageID          string    `json:"pageId"`
	UserID          string    `json:"userId"`
	AccountID       *string   `json:"accountId,omitempty"`
	Slug            string    `json:"slug"`
	DisplayName     *string   `json:"displayName,omitempty"`
	BioText         *string   `json:"bioText,omitempty"`
	ProfileImageURL *string   `json:"profileImageUrl,omitempty"`
	IsPublished     bool      `json:"isPublished"`
	CreationTime    time.Time `json:"creationTime"`
	UpdateTime      time.Time `json:"updateTime"`
}

// BioLink is one ordered link on a bio page.
type BioLink struct {
	LinkID       string    `json:"linkId"`
	PageID       string    `json:"pageId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Position     int       `json:"position"`
	IsActive     bool      `json:"isActive"`
	CreationTime time.Time `json:"creationTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// SocialLink is a platform icon link on a bio page.
type SocialLink struct {
	SocialLinkID string `json:"socialLinkId"`
	PageID       string `json:"pageId"`
	Platform     string `json:"platform"`
	URL          string `json:"url"`
	Position     int    `json:"position"`
}

// Lead is a captured contact from a public bio page.
type Lead struct {
	LeadID       string                 `json:"leadId"`
	PageID       string                 `json:"pageId"`
	Email        string                 `json:"email"`
	Phone        *string                `json:"phone,omitempty"`
	SourceType   string                 `json:"sourceType"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreationTime time.Time              `json:"creationTime"`
}
