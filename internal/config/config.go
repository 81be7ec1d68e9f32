// Package config declares every runtime setting as kong flags with
// environment and YAML file fallbacks.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/keyring"
	"github.com/julianstephens/habitenforcer/internal/utils"
)

// Config is embedded into the CLI struct.
type Config struct {
	DB       string `name:"db" help:"SQLite database path or PostgreSQL connection string. PostgreSQL credentials must NOT be embedded; use the OS keyring or .pgpass." env:"HABITENFORCER_DB" default:"${default_db}"`
	Timezone string `help:"IANA time zone that defines the day boundary." env:"HABITENFORCER_TIMEZONE" default:"${default_timezone}"`
	Debug    bool   `help:"Enable debug logging to stderr." env:"HABITENFORCER_DEBUG"`
	LogJSON  bool   `name:"log-json" help:"Write logs as JSON lines." env:"HABITENFORCER_LOG_JSON"`

	GraceMinutes       int     `name:"grace-minutes" help:"Minutes after a deadline during which proof is still accepted." env:"DEADLINE_GRACE_PERIOD_MINUTES" default:"10"`
	StrikeTwoAmountUSD float64 `name:"strike-two-amount-usd" help:"USDC sent on the second strike of a day." env:"STRIKE_2_CRYPTO_AMOUNT_USD" default:"10"`

	GeminiAPIKey  string `name:"gemini-api-key" help:"Gemini API key (falls back to the keyring)." env:"GEMINI_API_KEY"`
	ChatModel     string `name:"chat-model" help:"Model used for conversation." env:"HABITENFORCER_CHAT_MODEL" default:"${default_chat_model}"`
	VisionModel   string `name:"vision-model" help:"Model used for proof verification." env:"HABITENFORCER_VISION_MODEL" default:"${default_vision_model}"`
	MaxToolRounds int    `name:"max-tool-rounds" help:"Maximum oracle rounds per message (0 = unlimited)." env:"HABITENFORCER_MAX_TOOL_ROUNDS" default:"0"`

	TwilioAccountSID     string `name:"twilio-account-sid" help:"Twilio account SID." env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `name:"twilio-auth-token" help:"Twilio auth token (falls back to the keyring)." env:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppNumber string `name:"twilio-whatsapp-number" help:"Sender WhatsApp number." env:"TWILIO_WHATSAPP_NUMBER" default:"${default_whatsapp_number}"`
	WhatsAppRecipient    string `name:"whatsapp-recipient" help:"WhatsApp number that receives reminders and strikes." env:"WHATSAPP_RECIPIENT"`

	BaseRPCURL        string `name:"base-rpc-url" help:"Base JSON-RPC endpoint. URLs containing 'sepolia' select the testnet." env:"BASE_RPC_URL" default:"${default_rpc_url}"`
	WalletPrivateKey  string `name:"wallet-private-key" help:"Hex private key of the punishment wallet (falls back to the keyring)." env:"PUNISHMENT_WALLET_PRIVATE_KEY"`
	PunishmentAddress string `name:"punishment-address" help:"Address that receives strike-two transfers." env:"PUNISHMENT_RECEIVING_ADDRESS"`

	CheckInterval  time.Duration `name:"check-interval" help:"How often reminders and deadlines are checked." env:"HABITENFORCER_CHECK_INTERVAL" default:"10s"`
	CleanupAt      string        `name:"cleanup-at" help:"Daily HH:MM at which expired punishment habits are deleted." env:"HABITENFORCER_CLEANUP_AT" default:"${default_cleanup_at}"`
	SessionTimeout time.Duration `name:"session-timeout" help:"Idle time after which a conversation is forgotten." env:"HABITENFORCER_SESSION_TIMEOUT" default:"30m"`
	Tray           bool          `help:"Also send notifications to the desktop tray app." env:"HABITENFORCER_TRAY"`
}

// Vars supplies the ${...} defaults referenced by Config tags.
func Vars() map[string]string {
	return map[string]string{
		"default_db":              constants.DefaultConfigPath,
		"default_timezone":        constants.DefaultTimezone,
		"default_chat_model":      constants.DefaultChatModel,
		"default_vision_model":    constants.DefaultVisionModel,
		"default_whatsapp_number": constants.DefaultTwilioWhatsAppNumber,
		"default_rpc_url":         constants.DefaultBaseRPCURL,
		"default_cleanup_at":      constants.DefaultCleanupAt,
		"default_addr":            constants.DefaultListenAddr,
		"version":                 constants.Version,
	}
}

// Secret lookups are swappable in tests.
var lookupSecret = keyring.Lookup

// ResolveSecrets fills empty secret settings from the OS keyring.
func (c *Config) ResolveSecrets() {
	fill := func(dst *string, s keyring.Secret) {
		if *dst == "" {
			*dst = lookupSecret(s)
		}
	}
	fill(&c.GeminiAPIKey, keyring.GeminiAPIKey)
	fill(&c.TwilioAuthToken, keyring.TwilioAuthToken)
	fill(&c.WalletPrivateKey, keyring.WalletPrivateKey)
}

// Validate checks values kong cannot check on its own.
func (c *Config) Validate() error {
	if !clock.ValidateTimezone(c.Timezone) {
		return errors.Newf(errors.KindConfiguration, "invalid timezone %q", c.Timezone)
	}
	if _, err := clock.ParseHHMM(c.CleanupAt); err != nil {
		return errors.Newf(errors.KindConfiguration, "invalid cleanup-at %q: use HH:MM (24-hour)", c.CleanupAt)
	}
	if c.GraceMinutes < 0 {
		return errors.Newf(errors.KindConfiguration, "grace-minutes must not be negative, got %d", c.GraceMinutes)
	}
	if c.StrikeTwoAmountUSD <= 0 {
		return errors.Newf(errors.KindConfiguration, "strike-two-amount-usd must be positive, got %v", c.StrikeTwoAmountUSD)
	}
	if c.MaxToolRounds < 0 {
		return errors.Newf(errors.KindConfiguration, "max-tool-rounds must not be negative, got %d", c.MaxToolRounds)
	}
	if c.CheckInterval <= 0 {
		return errors.Newf(errors.KindConfiguration, "check-interval must be positive, got %s", c.CheckInterval)
	}
	return nil
}

func (c *Config) Grace() time.Duration { return time.Duration(c.GraceMinutes) * time.Minute }

// ConfigDir is where logs and the tray lockfile live. For SQLite it is the
// database's directory.
func (c *Config) ConfigDir() (string, error) {
	if c.DB != "" && !isPostgres(c.DB) {
		p, err := utils.ExpandHome(c.DB)
		if err != nil {
			return "", fmt.Errorf("failed to expand database path: %w", err)
		}
		return filepath.Dir(p), nil
	}
	return utils.ExpandHome(constants.DefaultConfigDir)
}
