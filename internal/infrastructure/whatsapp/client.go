// Package whatsapp sends verification codes as WhatsApp Business template messages.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config carries the Cloud API credentials. Empty values mean "not configured".
type Config struct {
	AccessToken      string
	PhoneNumberID    string
	TemplateName     string
	TemplateLanguage string
	BaseURL          string
	APIVersion       string
}

// APIError is the decoded error object of a non-2xx Cloud API response.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api: status %d code %d: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.TemplateLanguage == "" {
		cfg.TemplateLanguage = "en"
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Configured reports whether token, phone-number id and template are all present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.AccessToken != "" && c.cfg.PhoneNumberID != "" && c.cfg.TemplateName != ""
}

type textParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []textParam `json:"parameters"`
}

type templateMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name       string      `json:"name"`
		Language   struct{ Code string `json:"code"` } `json:"language"`
		Components []component `json:"components"`
	} `json:"template"`
}

// SendTemplate posts the configured template with code as its single body parameter.
func (c *Client) SendTemplate(ctx context.Context, to, code string) error {
	var msg templateMessage
	msg.MessagingProduct = "whatsapp"
	msg.To = strings.TrimPrefix(to, "+")
	msg.Type = "template"
	msg.Template.Name = c.cfg.TemplateName
	msg.Template.Language.Code = c.cfg.TemplateLanguage
	msg.Template.Components = []component{{
		Type:       "body",
		Parameters: []textParam{{Type: "text", Text: code}},
	}}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeError(resp)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error == nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	envelope.Error.Status = resp.StatusCode
	return envelope.Error
}
