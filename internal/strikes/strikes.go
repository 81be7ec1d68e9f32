// Package strikes records strikes and runs the daily escalation policy.
package strikes

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/deadline"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/ledger"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/notify"
	"github.com/julianstephens/habitenforcer/internal/punishment"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

const transferNotConfigured = "value transfer not configured"

// Transferrer moves the strike-two amount. *ledger.Executor satisfies it.
type Transferrer interface {
	Transfer(ctx context.Context, amountUSD float64) ledger.TransferResult
}

// Result is what LogStrike reports back.
type Result struct {
	Entry   models.StrikeEntry
	Count   int
	Outcome models.PunishmentOutcome
}

type Options struct {
	// Transfer may be nil, in which case tier two reports a failure.
	Transfer  Transferrer
	Sink      notify.Sink
	AmountUSD float64
}

type Engine struct {
	store     storage.Provider
	clock     clock.Clock
	evaluator *deadline.Evaluator
	injector  *punishment.Injector
	transfer  Transferrer
	sink      notify.Sink
	amount    float64
}

func NewEngine(store storage.Provider, c clock.Clock, opts Options) *Engine {
	if opts.Sink == nil {
		opts.Sink = notify.Discard{}
	}
	if opts.AmountUSD <= 0 {
		opts.AmountUSD = constants.DefaultStrikeTwoAmountUSD
	}
	return &Engine{
		store:     store,
		clock:     c,
		evaluator: deadline.NewEvaluator(store, c),
		injector:  punishment.NewInjector(store, c),
		transfer:  opts.Transfer,
		sink:      opts.Sink,
		amount:    opts.AmountUSD,
	}
}

// LogStrike appends a strike dated today, counts every strike logged today
// across all habits and executes the punishment for that count.
func (e *Engine) LogStrike(ctx context.Context, habitID string, reason models.StrikeReason, notes string) (Result, error) {
	now := e.clock.Now()
	entry := models.StrikeEntry{
		ID:        uuid.New().String(),
		HabitID:   habitID,
		Date:      now.Format(constants.DateFormat),
		Reason:    reason,
		Notes:     notes,
		CreatedAt: now,
	}
	if err := e.store.AddStrike(entry); err != nil {
		return Result{}, fmt.Errorf("failed to add strike: %w", err)
	}
	count, err := e.store.CountStrikesForDate(entry.Date)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count strikes: %w", err)
	}
	logger.Info("Strike logged", "habit_id", habitID, "reason", reason, "strike_count", count)

	outcome, err := e.AssignPunishment(ctx, count)
	if err != nil {
		return Result{Entry: entry, Count: count}, err
	}
	return Result{Entry: entry, Count: count, Outcome: outcome}, nil
}

// AssignPunishment executes the tier for the n-th strike of the day. Every
// call executes again; de-duplication happens before a strike is logged.
// Value-transfer failures are reported as an outcome, never as an error.
func (e *Engine) AssignPunishment(ctx context.Context, n int) (models.PunishmentOutcome, error) {
	tier := punishment.TierFor(n)
	logger.Debug("Assigning punishment", "strike_count", n, "tier", tier)
	switch tier {
	case punishment.TierHabitInjection:
		injected, err := e.injector.Inject()
		if err != nil {
			return nil, err
		}
		logger.Info("Punishment habit injected", "habit_id", injected.HabitID)
		return injected, nil
	case punishment.TierValueTransfer:
		return e.executeTransfer(ctx), nil
	default:
		return models.Deferred{StrikeCount: n}, nil
	}
}

func (e *Engine) executeTransfer(ctx context.Context) (outcome models.PunishmentOutcome) {
	if e.transfer == nil {
		return models.ValueTransferFailed{Reason: transferNotConfigured}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Value transfer panicked", "panic", r)
			outcome = models.ValueTransferFailed{Reason: fmt.Sprintf("unexpected error: %v", r)}
		}
	}()

	res := e.transfer.Transfer(ctx, e.amount)
	if !res.Success {
		reason := "unknown error"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		logger.Warn("Value transfer failed", "error", reason, "kind", errors.KindOf(res.Err))
		return models.ValueTransferFailed{Reason: reason}
	}
	logger.Info("Value transfer sent", "tx_hash", res.TxHash, "amount_usd", res.AmountUSD, "pending", res.Pending)
	return models.ValueTransferred{
		AmountUSD:    res.AmountUSD,
		ReceiptID:    res.TxHash,
		ExplorerLink: res.ExplorerLink,
		Pending:      res.Pending,
	}
}

// CheckMissedDeadlines strikes every habit whose deadline passed after its
// warning and notifies once per strike. A failing habit is logged and
// skipped; the error return is reserved for state that could not be read.
func (e *Engine) CheckMissedDeadlines(ctx context.Context) ([]Result, error) {
	snap, due, err := e.evaluator.Due()
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, d := range due {
		notes := fmt.Sprintf("Deadline %s missed on %s", d.Deadline, snap.Date)
		res, err := e.LogStrike(ctx, d.HabitID, models.StrikeMissedDeadline, notes)
		if stderrors.Is(err, storage.ErrDuplicate) {
			logger.Debug("Strike already recorded", "habit_id", d.HabitID, "date", snap.Date)
			continue
		}
		if err != nil {
			logger.Error("Failed to log strike", "habit_id", d.HabitID, "error", err)
			continue
		}
		if !e.sink.Send(ctx, notify.Strike(d.Title, res.Count, res.Outcome)) {
			logger.Warn("Strike notification not delivered", "habit_id", d.HabitID)
		}
		results = append(results, res)
	}
	return results, nil
}

// Filter narrows a strike summary. Days <= 0 means all time.
type Filter struct {
	HabitID string
	Days    int
}

type HabitCount struct {
	HabitID string `json:"habit_id"`
	Title   string `json:"title"`
	Count   int    `json:"count"`
}

type Summary struct {
	Total   int                  `json:"total_strikes"`
	Days    int                  `json:"days,omitempty"`
	ByHabit []HabitCount         `json:"by_habit"`
	Strikes []models.StrikeEntry `json:"strikes"`
}

const deletedHabitTitle = "(deleted habit)"

// Summary reports strikes newest first with per-habit totals. The day
// window includes today.
func (e *Engine) Summary(f Filter) (Summary, error) {
	sf := storage.StrikeFilter{HabitID: f.HabitID}
	if f.Days > 0 {
		sf.Since = Since(e.clock.Now(), f.Days)
	}
	list, err := e.store.ListStrikes(sf)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list strikes: %w", err)
	}

	titles := map[string]string{}
	habits, err := e.store.GetAllHabits()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load habits: %w", err)
	}
	for _, h := range habits {
		titles[h.ID] = h.Title
	}

	counts := map[string]int{}
	for _, s := range list {
		counts[s.HabitID]++
	}
	byHabit := make([]HabitCount, 0, len(counts))
	for id, n := range counts {
		title, ok := titles[id]
		if !ok {
			title = deletedHabitTitle
		}
		byHabit = append(byHabit, HabitCount{HabitID: id, Title: title, Count: n})
	}
	sort.Slice(byHabit, func(i, j int) bool {
		if byHabit[i].Count != byHabit[j].Count {
			return byHabit[i].Count > byHabit[j].Count
		}
		return byHabit[i].Title < byHabit[j].Title
	})
	return Summary{Total: len(list), Days: f.Days, ByHabit: byHabit, Strikes: list}, nil
}

// Since returns the first date included in a window of days ending today.
func Since(now time.Time, days int) string {
	return now.AddDate(0, 0, -(days - 1)).Format(constants.DateFormat)
}
