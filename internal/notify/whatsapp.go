package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

var ErrWhatsAppNotConfigured = errors.New("twilio account sid, auth token and sender number are required")

type WhatsAppConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// To is the default recipient used by Send.
	To      string
	BaseURL string
	Client  *http.Client
}

// WhatsApp sends messages through the Twilio Messages API.
type WhatsApp struct {
	cfg WhatsAppConfig
}

func NewWhatsApp(cfg WhatsAppConfig) (*WhatsApp, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, ErrWhatsAppNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.TwilioAPIBase
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	cfg.From = whatsappAddress(cfg.From)
	if cfg.To != "" {
		cfg.To = whatsappAddress(cfg.To)
	}
	return &WhatsApp{cfg: cfg}, nil
}

func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// Send delivers message to the default recipient.
func (w *WhatsApp) Send(ctx context.Context, message string) bool {
	if w.cfg.To == "" {
		logger.Warn("WhatsApp recipient not configured, dropping notification")
		return false
	}
	sid, err := w.SendTo(ctx, w.cfg.To, message)
	if err != nil {
		logger.Error("Failed to send WhatsApp message", "error", err)
		return false
	}
	logger.Debug("WhatsApp message sent", "sid", sid)
	return true
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SendTo posts body to recipient and returns the Twilio message SID.
func (w *WhatsApp) SendTo(ctx context.Context, recipient, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(w.cfg.BaseURL, "/"), url.PathEscape(w.cfg.AccountSID))
	form := url.Values{
		"From": {w.cfg.From},
		"To":   {whatsappAddress(recipient)},
		"Body": {body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(w.cfg.AccountSID, w.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := w.cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read twilio response: %w", err)
	}
	var tr twilioResponse
	_ = json.Unmarshal(data, &tr)
	if res.StatusCode >= 300 {
		if tr.Message != "" {
			return "", fmt.Errorf("twilio returned %d (code %d): %s", res.StatusCode, tr.Code, tr.Message)
		}
		return "", fmt.Errorf("twilio returned %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	return tr.SID, nil
}
