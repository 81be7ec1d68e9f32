package constants

import "time"

const (
	AppName            = "habitenforcer"
	DefaultKeyringUser = "database-connection"
	DefaultConfigDir   = "~/.config/habitenforcer"
	DefaultConfigPath  = "~/.config/habitenforcer/habitenforcer.db"
	DefaultConfigFile  = "~/.config/habitenforcer/config.yaml"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the user-facing time format (HH:MM)
	TimeFormat = "15:04"

	// StoredTimeFormat is how times of day are persisted (HH:MM:SS)
	StoredTimeFormat = "15:04:05"

	DefaultTimezone = "America/Los_Angeles"

	// Policy defaults
	DefaultGracePeriodMin     = 10
	DefaultStrikeTwoAmountUSD = 10.0
	DefaultCheckInterval      = 10 * time.Second
	DefaultCleanupAt          = "23:59"
	DefaultSessionTimeout     = 30 * time.Minute
	StrikeSummaryDays         = 7

	// Punishment habit injected on the first strike of the day
	PunishmentHabitTitle    = "PUNISHMENT: 5K Run"
	PunishmentHabitDeadline = "23:59"

	// LLM defaults
	DefaultChatModel   = "gemini-2.5-flash"
	DefaultVisionModel = "gemini-2.5-flash"

	// Twilio
	DefaultTwilioWhatsAppNumber = "whatsapp:+14155238886"
	TwilioAPIBase               = "https://api.twilio.com/2010-04-01"

	// Ledger
	DefaultBaseRPCURL = "https://mainnet.base.org"

	// Tray notifier
	NotifierLockfileName   = "habitenforcer-notifier.lock"
	NotificationDurationMs = 8000
	TrayAppIdentifier      = "com.julianstephens.habitenforcer"
	TrayExecutablePrefix   = "habitenforcer-tray"

	// HTTP
	DefaultListenAddr = ":8000"

	// Read-only query guard
	MaxQueryRows = 200
)
