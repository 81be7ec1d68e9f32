package notify

import (
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/models"
)

func StartReminder(title string) string {
	return fmt.Sprintf("🔔 TIME TO START: %s\n\nGet moving! This habit is scheduled to start now.", title)
}

func DeadlineReminder(title string) string {
	return fmt.Sprintf("⏰ DEADLINE APPROACHING: %s\n\nTime's up! Complete this habit now and send proof.", title)
}

// Strike renders the strike notice followed by the outcome of the punishment.
func Strike(title string, count int, outcome models.PunishmentOutcome) string {
	msg := fmt.Sprintf("⚠️ STRIKE LOGGED: %s\n\nStrike count for today: %d", title, count)
	switch o := outcome.(type) {
	case models.HabitInjected:
		msg += fmt.Sprintf("\n\n⚡ PUNISHMENT ASSIGNED:\n%s\n\nComplete this immediately or face further consequences.", o.Title)
	case models.ValueTransferred:
		msg += fmt.Sprintf("\n\n💸 FINANCIAL PUNISHMENT EXECUTED:\n$%s USDC has been sent from your wallet.\n\nTransaction: %s...\nView on BaseScan: %s",
			models.FormatUSD(o.AmountUSD), shortHash(o.ReceiptID), o.ExplorerLink)
		if o.Pending {
			msg += "\n(confirmation pending)"
		}
		msg += "\n\nThis is the cost of your failure."
	case models.ValueTransferFailed:
		msg += fmt.Sprintf("\n\n⚠️ CRYPTO PUNISHMENT FAILED:\n%s\n\nYou got lucky this time, but fix the payment setup.", o.Reason)
	case models.Deferred:
		msg += fmt.Sprintf("\n\n⚠️ Strike %d logged. Further punishments coming soon.", o.StrikeCount)
	}
	return msg
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10]
}
