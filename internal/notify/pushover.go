// Package notify delivers fire-and-forget operator alerts. Delivery must
// never stall the decision loop: HTTP calls run with a short client timeout
// and identical messages are suppressed inside a cooldown window.
package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Severity distinguishes routine alerts from ones that need a human now.
type Severity int

const (
	SeverityNormal Severity = 0
	SeverityHigh   Severity = 1
)

// Notifier is the outbound alerting collaborator.
type Notifier interface {
	Notify(title, message string, severity Severity)
}

const defaultCooldown = 5 * time.Minute

// Pushover posts alerts to the Pushover message API.
type Pushover struct {
	apiURL   string
	token    string
	userKey  string
	client   *http.Client
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewPushover creates a notifier. Empty credentials produce a notifier that
// logs and drops every alert, so callers never need to nil-check.
func NewPushover(token, userKey string) *Pushover {
	return &Pushover{
		apiURL:   "https://api.pushover.net/1/messages.json",
		token:    token,
		userKey:  userKey,
		client:   &http.Client{Timeout: 5 * time.Second},
		cooldown: defaultCooldown,
		lastSent: make(map[string]time.Time),
	}
}

type pushoverPayload struct {
	Token    string `json:"token"`
	User     string `json:"user"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	Sound    string `json:"sound,omitempty"`
}

// Notify sends the alert in the background. Duplicate title+message pairs
// inside the cooldown window are dropped.
func (p *Pushover) Notify(title, message string, severity Severity) {
	key := title + "\x00" + message

	p.mu.Lock()
	if last, ok := p.lastSent[key]; ok && time.Since(last) < p.cooldown {
		p.mu.Unlock()
		slog.Debug("alert suppressed by cooldown", slog.String("title", title))
		return
	}
	p.lastSent[key] = time.Now()
	p.mu.Unlock()

	if p.token == "" || p.userKey == "" {
		slog.Warn("pushover keys not configured, dropping alert",
			slog.String("title", title), slog.String("message", message))
		return
	}

	go p.post(title, message, severity)
}

func (p *Pushover) post(title, message string, severity Severity) {
	payload := pushoverPayload{
		Token:    p.token,
		User:     p.userKey,
		Title:    "TRADING BOT: " + title,
		Message:  message,
		Priority: int(severity),
	}
	if severity >= SeverityHigh {
		payload.Sound = "persistent"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal alert", slog.Any("error", err))
		return
	}

	resp, err := p.client.Post(p.apiURL, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to send alert", slog.String("title", title), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Error("alert rejected", slog.String("title", title), slog.Int("status", resp.StatusCode))
		return
	}
	slog.Info("alert sent", slog.String("title", title))
}
