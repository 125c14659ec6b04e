// Package instagram is a thin client for the Instagram Graph API surface the
// automation worker needs: DMs, carousel DMs, comment replies and token
// refresh.
package instagram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/autogramhq/automation-service/internal/model"
)

// Client talks to the Instagram Graph API.
type Client struct {
	http *resty.Client
}

// NewClient creates a Graph API client rooted at baseURL
// (https://graph.instagram.com in production).
func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Client{http: c}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path, accessToken string, body interface{}) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", accessToken).
		SetBody(body).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("graph api %s: status %d: %s", path, resp.StatusCode(), apiErr.Error.Message)
	}
	return nil
}

// SendTextDM sends a plain-text DM from the business account to a commenter.
func (c *Client) SendTextDM(ctx context.Context, accessToken, igUserID, recipientID, text string) error {
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}
	return c.post(ctx, fmt.Sprintf("/%s/messages", igUserID), accessToken, body)
}

// SendCarousel sends a generic-template carousel DM.
func (c *Client) SendCarousel(ctx context.Context, accessToken, igUserID, recipientID string, elements []model.CarouselElement) error {
	if len(elements) == 0 {
		return fmt.Errorf("carousel requires at least one element")
	}
	cards := make([]map[string]interface{}, 0, len(elements))
	for _, el := range elements {
		card := map[string]interface{}{"title": el.Title}
		if el.Subtitle != "" {
			card["subtitle"] = el.Subtitle
		}
		if el.ImageURL != "" {
			card["image_url"] = el.ImageURL
		}
		if len(el.Buttons) > 0 {
			buttons := make([]map[string]string, 0, len(el.Buttons))
			for _, b := range el.Buttons {
				buttons = append(buttons, map[string]string{
					"type":  "web_url",
					"title": b.Title,
					"url":   b.URL,
				})
			}
			card["buttons"] = buttons
		}
		cards = append(cards, card)
	}
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": "template",
				"payload": map[string]interface{}{
					"template_type": "generic",
					"elements":      cards,
				},
			},
		},
	}
	return c.post(ctx, fmt.Sprintf("/%s/messages", igUserID), accessToken, body)
}

// ReplyToComment posts a public reply under a comment.
func (c *Client) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	body := map[string]string{"message": text}
	return c.post(ctx, fmt.Sprintf("/%s/replies", commentID), accessToken, body)
}

// RefreshToken exchanges a long-lived token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context, accessToken string) (string, time.Duration, error) {
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":   "ig_refresh_token",
			"access_token": accessToken,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/refresh_access_token")
	if err != nil {
		return "", 0, err
	}
	if resp.IsError() {
		return "", 0, fmt.Errorf("graph api refresh: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}
