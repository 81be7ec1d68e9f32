package models

import "fmt"

// OutcomeKind tags a PunishmentOutcome variant.
type OutcomeKind string

const (
	OutcomeHabitInjected       OutcomeKind = "habit_injected"
	OutcomeValueTransferred    OutcomeKind = "value_transferred"
	OutcomeValueTransferFailed OutcomeKind = "value_transfer_failed"
	OutcomeDeferred            OutcomeKind = "deferred"
)

// PunishmentOutcome is the result of executing the punishment for a day's
// cumulative strike count. The concrete types below are the only variants.
type PunishmentOutcome interface {
	Kind() OutcomeKind
	Summary() string
	punishmentOutcome()
}

type HabitInjected struct {
	HabitID string `json:"habit_id"`
	Title   string `json:"title"`
}

type ValueTransferred struct {
	AmountUSD    float64 `json:"amount_usd"`
	ReceiptID    string  `json:"receipt_id"`
	ExplorerLink string  `json:"explorer_link"`
	// Pending is set when the transfer was broadcast but confirmation did
	// not arrive within the wait window.
	Pending bool `json:"pending,omitempty"`
}

type ValueTransferFailed struct {
	Reason string `json:"reason"`
}

type Deferred struct {
	StrikeCount int `json:"strike_count"`
}

func (HabitInjected) Kind() OutcomeKind       { return OutcomeHabitInjected }
func (ValueTransferred) Kind() OutcomeKind    { return OutcomeValueTransferred }
func (ValueTransferFailed) Kind() OutcomeKind { return OutcomeValueTransferFailed }
func (Deferred) Kind() OutcomeKind            { return OutcomeDeferred }

func (o HabitInjected) Summary() string {
	return "Punishment assigned: " + o.Title
}

func (o ValueTransferred) Summary() string {
	s := fmt.Sprintf("$%s USDC sent to punishment address (tx %s)", FormatUSD(o.AmountUSD), o.ReceiptID)
	if o.Pending {
		s += ", confirmation pending"
	}
	return s
}

func (o ValueTransferFailed) Summary() string {
	return "Failed to send USDC: " + o.Reason
}

func (o Deferred) Summary() string {
	return fmt.Sprintf("Strike %d logged. Punishment not yet implemented.", o.StrikeCount)
}

func (HabitInjected) punishmentOutcome()       {}
func (ValueTransferred) punishmentOutcome()    {}
func (ValueTransferFailed) punishmentOutcome() {}
func (Deferred) punishmentOutcome()            {}

// FormatUSD renders whole-dollar amounts without decimals.
func FormatUSD(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// OutcomePayload flattens an outcome for JSON tool results and APIs.
func OutcomePayload(o PunishmentOutcome) map[string]any {
	if o == nil {
		return nil
	}
	p := map[string]any{"kind": string(o.Kind()), "message": o.Summary()}
	switch v := o.(type) {
	case HabitInjected:
		p["habit_id"] = v.HabitID
		p["title"] = v.Title
	case ValueTransferred:
		p["amount_usd"] = v.AmountUSD
		p["tx_hash"] = v.ReceiptID
		p["explorer_link"] = v.ExplorerLink
		p["pending"] = v.Pending
	case ValueTransferFailed:
		p["error"] = v.Reason
	case Deferred:
		p["strike_count"] = v.StrikeCount
	}
	return p
}
