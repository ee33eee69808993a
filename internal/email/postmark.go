// Package email sends Tenantry's transactional mail through Postmark.
package email

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"
)

const (
	postmarkURL   = "https://api.postmarkapp.com/email"
	messageStream = "outbound"
)

// ErrNotConfigured is returned by every send when no server token is set.
var ErrNotConfigured = errors.New("email client not configured")

// APIError is a non-2xx answer from Postmark. Code is Postmark's ErrorCode,
// e.g. 406 for an inactive recipient.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postmark: status %d", e.Status)
	}
	return fmt.Sprintf("postmark: status %d code %d: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAPIURL points the client at a different Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) { cl.apiURL = u }
}

// NewClient builds a Postmark client. baseURL is the public address of the
// app and prefixes links in message bodies.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      postmarkURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

// message is one outgoing email before it is addressed.
type message struct {
	tag     string
	subject string
	text    string
	html    string
}

// SendAuthCode sends a 6-digit sign-in code.
func (c *Client) SendAuthCode(toEmail, code string) error {
	return c.send(toEmail, message{
		tag:     "sign-in",
		subject: "Your Tenantry sign-in code",
		text:    fmt.Sprintf("Your Tenantry sign-in code is %s.\n\nIt expires in 15 minutes. If you did not ask for it, ignore this email.", code),
		html: fmt.Sprintf(
			`<p>Your Tenantry sign-in code is</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>It expires in 15 minutes. If you did not ask for it, ignore this email.</p>`,
			html.EscapeString(code)),
	})
}

// SendSwapRequested tells the target of a swap that someone wants to trade.
func (c *Client) SendSwapRequested(toEmail, requesterName, weekID, reason string) error {
	link := c.baseURL + "/swaps"
	text := fmt.Sprintf("%s would like to swap chore days with you for week %s.", requesterName, weekID)
	if reason != "" {
		text += "\n\nReason: " + reason
	}
	text += "\n\nRespond here: " + link
	return c.send(toEmail, message{
		tag:     "swap-requested",
		subject: "Chore swap request",
		text:    text,
		html: fmt.Sprintf(
			`<p>%s would like to swap chore days with you for week %s.</p><p>%s</p><p><a href="%s">Respond to the request</a></p>`,
			html.EscapeString(requesterName), html.EscapeString(weekID), html.EscapeString(reason), html.EscapeString(link)),
	})
}

// SendSwapResolved tells the requester how their swap ended.
func (c *Client) SendSwapResolved(toEmail, weekID, status string) error {
	return c.send(toEmail, message{
		tag:     "swap-resolved",
		subject: "Chore swap " + status,
		text:    fmt.Sprintf("Your chore swap request for week %s was %s.", weekID, status),
		html: fmt.Sprintf(`<p>Your chore swap request for week %s was <strong>%s</strong>.</p>`,
			html.EscapeString(weekID), html.EscapeString(status)),
	})
}

// SendRequestUpdate tells a tenant that an admin reviewed their request.
func (c *Client) SendRequestUpdate(toEmail, title, status, notes string) error {
	text := fmt.Sprintf("Your request %q is now %s.", title, status)
	if notes != "" {
		text += "\n\n" + notes
	}
	return c.send(toEmail, message{
		tag:     "request-updated",
		subject: "Request " + status,
		text:    text,
		html: fmt.Sprintf(`<p>Your request &ldquo;%s&rdquo; is now <strong>%s</strong>.</p><p>%s</p>`,
			html.EscapeString(title), html.EscapeString(status), html.EscapeString(notes)),
	})
}

func (c *Client) send(toEmail string, m message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(postmarkEmail{
		From:          c.fromEmail,
		To:            toEmail,
		Subject:       m.subject,
		HtmlBody:      m.html,
		TextBody:      m.text,
		Tag:           m.tag,
		MessageStream: messageStream,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	var detail struct {
		ErrorCode int    `json:"ErrorCode"`
		Message   string `json:"Message"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(data, &detail) == nil {
		apiErr.Code, apiErr.Message = detail.ErrorCode, detail.Message
	}
	return apiErr
}
