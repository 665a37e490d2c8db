package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/sundaybot/internal/domain"
)

// Graph API limits and defaults.
const (
	maxTextBody       = 4096
	maxInteractive    = 1024
	maxButtons        = 3
	maxButtonTitle    = 20
	maxListRows       = 10
	maxRowTitle       = 24
	maxRowDesc        = 72
	maxHeader         = 60
	maxFooter         = 60
	maxListButton     = 20
	maxSectionTitle   = 24
	defaultAPIBase    = "https://graph.facebook.com"
	defaultAPIVersion = "v19.0"
)

var (
	// ErrNotConfigured is returned by Send when credentials are missing.
	ErrNotConfigured = errors.New("whatsapp credentials not configured")
	// ErrTooManyOptions is returned when a message exceeds the option limit of its layout.
	ErrTooManyOptions = errors.New("too many options for message layout")
)

// Config holds Graph API settings.
type Config struct {
	Token         string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
}

// Client sends messages through the Graph API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

type graphHTTPError struct {
	StatusCode int
	Body       string
}

func (e *graphHTTPError) Error() string {
	return fmt.Sprintf("graph api http %d: %s", e.StatusCode, e.Body)
}

// NewClient returns a client. Missing credentials are reported on Send.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("service", "WhatsAppClient"),
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.Token != "" && c.cfg.PhoneNumberID != ""
}

// Send delivers msg to the user. Long text bodies are split across
// several messages.
func (c *Client) Send(ctx context.Context, to string, msg domain.Message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payloads, err := BuildPayloads(to, msg)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := c.post(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &graphHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	c.logger.Debug("Message sent", "to", payload["to"], "type", payload["type"])
	return nil
}

// BuildPayloads renders msg as one or more Graph API message bodies.
func BuildPayloads(to string, msg domain.Message) ([]map[string]any, error) {
	base := func() map[string]any {
		return map[string]any{"messaging_product": "whatsapp", "recipient_type": "individual", "to": to}
	}

	switch msg.Kind {
	case domain.MessageButtons:
		if len(msg.Options) == 0 || len(msg.Options) > maxButtons {
			return nil, fmt.Errorf("%w: %d buttons", ErrTooManyOptions, len(msg.Options))
		}
		buttons := make([]map[string]any, 0, len(msg.Options))
		for _, o := range msg.Options {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": o.ID, "title": clip(o.Title, maxButtonTitle)},
			})
		}
		interactive := map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": clip(msg.Body, maxInteractive)},
			"action": map[string]any{"buttons": buttons},
		}
		addHeaderFooter(interactive, msg)
		p := base()
		p["type"] = "interactive"
		p["interactive"] = interactive
		return []map[string]any{p}, nil

	case domain.MessageList:
		if len(msg.Options) == 0 || len(msg.Options) > maxListRows {
			return nil, fmt.Errorf("%w: %d rows", ErrTooManyOptions, len(msg.Options))
		}
		rows := make([]map[string]any, 0, len(msg.Options))
		for _, o := range msg.Options {
			row := map[string]any{"id": o.ID, "title": clip(o.Title, maxRowTitle)}
			if o.Description != "" {
				row["description"] = clip(o.Description, maxRowDesc)
			}
			rows = append(rows, row)
		}
		button := msg.Button
		if button == "" {
			button = "Choose"
		}
		section := msg.Section
		if section == "" {
			section = "Options"
		}
		interactive := map[string]any{
			"type": "list",
			"body": map[string]any{"text": clip(msg.Body, maxInteractive)},
			"action": map[string]any{
				"button":   clip(button, maxListButton),
				"sections": []map[string]any{{"title": clip(section, maxSectionTitle), "rows": rows}},
			},
		}
		addHeaderFooter(interactive, msg)
		p := base()
		p["type"] = "interactive"
		p["interactive"] = interactive
		return []map[string]any{p}, nil
	}

	var out []map[string]any
	for _, chunk := range SplitText(msg.Body, maxTextBody) {
		p := base()
		p["type"] = "text"
		p["text"] = map[string]any{"body": chunk, "preview_url": false}
		out = append(out, p)
	}
	return out, nil
}

func addHeaderFooter(interactive map[string]any, msg domain.Message) {
	if msg.Header != "" {
		interactive["header"] = map[string]any{"type": "text", "text": clip(msg.Header, maxHeader)}
	}
	if msg.Footer != "" {
		interactive["footer"] = map[string]any{"text": clip(msg.Footer, maxFooter)}
	}
}

// SplitText breaks s into chunks of at most limit bytes, preferring
// paragraph then line boundaries.
func SplitText(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var chunks []string
	for len(s) > limit {
		cut := strings.LastIndex(s[:limit], "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(s[:limit], "\n")
		}
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		chunks = append(chunks, strings.TrimRight(s[:cut], "\n"))
		s = strings.TrimLeft(s[cut:], "\n")
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
