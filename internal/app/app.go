// Package app builds every component from a Config. Commands own the
// returned App and must Close it.
package app

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/chat"
	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/config"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/gemini"
	"github.com/julianstephens/habitenforcer/internal/habits"
	"github.com/julianstephens/habitenforcer/internal/keyring"
	"github.com/julianstephens/habitenforcer/internal/ledger"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/notify"
	"github.com/julianstephens/habitenforcer/internal/oracle"
	"github.com/julianstephens/habitenforcer/internal/orchestrator"
	"github.com/julianstephens/habitenforcer/internal/proof"
	"github.com/julianstephens/habitenforcer/internal/punishment"
	"github.com/julianstephens/habitenforcer/internal/reminders"
	"github.com/julianstephens/habitenforcer/internal/scheduler"
	"github.com/julianstephens/habitenforcer/internal/server"
	"github.com/julianstephens/habitenforcer/internal/session"
	"github.com/julianstephens/habitenforcer/internal/storage"
	"github.com/julianstephens/habitenforcer/internal/storage/postgres"
	"github.com/julianstephens/habitenforcer/internal/storage/sqlite"
	"github.com/julianstephens/habitenforcer/internal/strikes"
	"github.com/julianstephens/habitenforcer/internal/tools"
	"github.com/julianstephens/habitenforcer/internal/utils"
)

// OpenStore selects the backend from db: a PostgreSQL connection string or
// a SQLite path. An empty db falls back to the connection stored in the
// keyring. The store is not loaded.
func OpenStore(db string) (storage.Provider, error) {
	if db == "" {
		db = keyring.Lookup(keyring.DatabaseConnection)
		if db == "" {
			return nil, errors.New(errors.KindConfiguration, "no database configured")
		}
	}
	if postgres.IsConnString(db) {
		if err := postgres.ValidateConnString(db); err != nil {
			if stderrors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, errors.Wrap(errors.KindConfiguration, err,
					"PostgreSQL connection strings with embedded credentials are NOT allowed; store it with 'habitenforcer keyring set database-connection' or use .pgpass")
			}
			return nil, errors.Wrap(errors.KindConfiguration, err, "")
		}
		return postgres.New(db), nil
	}
	path, err := utils.ExpandHome(db)
	if err != nil {
		return nil, fmt.Errorf("failed to expand database path: %w", err)
	}
	return sqlite.NewStore(path), nil
}

type App struct {
	Config config.Config
	Clock  clock.Clock
	Store  storage.Provider
	Sink   notify.Sink

	// Optional integrations; nil when not configured.
	WhatsApp *notify.WhatsApp
	Ledger   *ledger.Executor
	Gemini   *gemini.Client

	Habits       *habits.Service
	Strikes      *strikes.Engine
	Reminders    *reminders.Service
	Verifier     *proof.Verifier
	Images       *proof.Loader
	Tools        *tools.Registry
	Orchestrator *orchestrator.Orchestrator
	Sessions     *session.Store
	Chat         *chat.Service
}

// ErrOracleNotConfigured is what chat reports without a Gemini key.
var ErrOracleNotConfigured = errors.New(errors.KindConfiguration,
	"Gemini API key not configured; set GEMINI_API_KEY or run 'habitenforcer keyring set gemini-api-key'")

// New wires the application around an already loaded store.
func New(ctx context.Context, cfg config.Config, store storage.Provider) (*App, error) {
	cfg.ResolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := clock.NewZoned(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "invalid timezone")
	}
	return build(ctx, cfg, store, c)
}

func build(ctx context.Context, cfg config.Config, store storage.Provider, c clock.Clock) (*App, error) {
	store.SetClock(c)
	a := &App{Config: cfg, Clock: c, Store: store}

	sinks := notify.Multi{notify.LogSink{}}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		wa, err := notify.NewWhatsApp(notify.WhatsAppConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioWhatsAppNumber,
			To:         cfg.WhatsAppRecipient,
		})
		if err != nil {
			return nil, errors.Wrap(errors.KindConfiguration, err, "")
		}
		a.WhatsApp = wa
		if cfg.WhatsAppRecipient != "" {
			sinks = append(sinks, wa)
		} else {
			logger.Warn("WhatsApp recipient not configured, reminders stay local")
		}
	}
	if cfg.Tray {
		sinks = append(sinks, notify.NewTray())
	}
	a.Sink = sinks

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, ChatModel: cfg.ChatModel, VisionModel: cfg.VisionModel})
		if err != nil {
			return nil, errors.Wrap(errors.KindExternalService, err, "failed to create Gemini client")
		}
		a.Gemini = g
	}

	opts := strikes.Options{Sink: a.Sink, AmountUSD: cfg.StrikeTwoAmountUSD}
	if cfg.WalletPrivateKey != "" && cfg.PunishmentAddress != "" {
		a.Ledger = ledger.NewExecutor(ledger.Config{
			RPCURL:     cfg.BaseRPCURL,
			PrivateKey: cfg.WalletPrivateKey,
			Recipient:  cfg.PunishmentAddress,
		}, nil)
		opts.Transfer = a.Ledger
	}

	var (
		matcher habits.Matcher
		vision  proof.Vision
		model   oracle.Oracle = oracle.Func(func(context.Context, oracle.Request) (oracle.Response, error) {
			return oracle.Response{}, ErrOracleNotConfigured
		})
	)
	if a.Gemini != nil {
		matcher, vision, model = a.Gemini, a.Gemini, a.Gemini
	}

	a.Habits = habits.NewService(store, c, matcher)
	a.Strikes = strikes.NewEngine(store, c, opts)
	a.Reminders = reminders.NewService(store, c, a.Sink)
	a.Verifier = proof.NewVerifier(vision, c, cfg.Grace())
	a.Images = proof.NewLoader(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
	a.Tools = tools.Default(tools.Deps{
		Store:    store,
		Clock:    c,
		Habits:   a.Habits,
		Strikes:  a.Strikes,
		Verifier: a.Verifier,
		Images:   a.Images,
	})
	a.Orchestrator = orchestrator.New(model, a.Tools,
		orchestrator.Baseline{Clock: c, Habits: a.Habits, Strikes: a.Strikes},
		orchestrator.Options{MaxRounds: cfg.MaxToolRounds})
	a.Sessions = session.NewStore(c, cfg.SessionTimeout)
	a.Chat = chat.NewService(a.Orchestrator, a.Sessions)

	logger.Debug("Application wired",
		"whatsapp", a.WhatsApp != nil, "ledger", a.Ledger != nil, "gemini", a.Gemini != nil, "tray", cfg.Tray)
	return a, nil
}

// Check runs one reminder pass and one missed-deadline pass.
func (a *App) Check(ctx context.Context) error {
	sent, err := a.Reminders.Check(ctx)
	if err != nil {
		return fmt.Errorf("reminder check failed: %w", err)
	}
	results, err := a.Strikes.CheckMissedDeadlines(ctx)
	if err != nil {
		return fmt.Errorf("missed deadline check failed: %w", err)
	}
	if sent > 0 || len(results) > 0 {
		logger.Info("Check complete", "reminders_sent", sent, "strikes", len(results))
	}
	return nil
}

// Cleanup deletes punishment habits expiring on or before today.
func (a *App) Cleanup(context.Context) (int, error) {
	return punishment.Cleanup(a.Store, clock.Today(a.Clock))
}

// Scheduler returns the background jobs: the check pass and session sweep
// on every tick, cleanup once a day at cleanup-at.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	at, err := clock.ParseHHMM(a.Config.CleanupAt)
	if err != nil {
		return nil, errors.Newf(errors.KindConfiguration, "invalid cleanup-at %q", a.Config.CleanupAt)
	}
	s := scheduler.New(a.Clock, a.Config.CheckInterval)
	s.Every("reminders", func(ctx context.Context) error {
		_, err := a.Reminders.Check(ctx)
		return err
	})
	s.Every("missed-deadlines", func(ctx context.Context) error {
		_, err := a.Strikes.CheckMissedDeadlines(ctx)
		return err
	})
	s.Every("sessions", func(context.Context) error {
		if n := a.Sessions.Sweep(); n > 0 {
			logger.Debug("Expired sessions removed", "count", n)
		}
		return nil
	})
	s.Daily("cleanup", at, func(ctx context.Context) error {
		_, err := a.Cleanup(ctx)
		return err
	})
	return s, nil
}

// CatchUpCleanup removes punishment habits left over from days the process
// was not running.
func (a *App) CatchUpCleanup() (int, error) {
	yesterday := a.Clock.Now().AddDate(0, 0, -1).Format(constants.DateFormat)
	return punishment.Cleanup(a.Store, yesterday)
}

func (a *App) Server() *server.Server {
	d := server.Deps{Habits: a.Habits, Strikes: a.Strikes, Chat: a.Chat}
	if a.WhatsApp != nil {
		d.WhatsApp = a.WhatsApp
	}
	return server.New(d)
}

func (a *App) Close() error {
	return a.Store.Close()
}
