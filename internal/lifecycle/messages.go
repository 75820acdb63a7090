// internal/lifecycle/messages.go
package lifecycle

import (
	"fmt"
	"time"
)

// User-facing copy. The transport sends these verbatim.
const (
	msgInvalidRef = "❌ Invalid transaction ID.\n\n" +
		"Wave — 9 digits\n" +
		"KPay — 20 digits\n\n" +
		"Please send a valid ID."

	msgDuplicateRef = "❌ This transaction ID has already been used."

	msgRenewalNotice = "ℹ️ You already have an active subscription.\n" +
		"Send a transaction ID to renew it."

	msgReceipt = "✅ Payment received. An admin is reviewing it."

	msgRejected = "❌ Your payment proof was declined. Please check the transaction ID and resubmit."

	msgGenericFailure = "⚠ Something went wrong. Please try again later."

	msgExpired = "⛔ Subscription expired."

	msgNoActiveSub = "❌ No active subscription."
)

func msgApproved(expireAt time.Time) string {
	return fmt.Sprintf("🎉 Approved!\nExpire: %s", expireAt.Format("2006-01-02"))
}

func msgRenewed(expireAt time.Time) string {
	return fmt.Sprintf("✅ Renewed!\nExpire: %s", expireAt.Format("2006-01-02"))
}

func msgReminder(daysLeft int) string {
	if daysLeft == 1 {
		return "⚠ 1 day left."
	}
	return fmt.Sprintf("⚠ %d days left.", daysLeft)
}

func msgStatus(expireAt time.Time, remainingDays int) string {
	return fmt.Sprintf("📅 Expire Date: %s\n⏳ Remaining: %d days",
		expireAt.Format("2006-01-02"), remainingDays)
}

func msgApprovalRequest(displayName string, userID int64, ref string) string {
	return fmt.Sprintf("💳 New Payment\n👤 %s\n🆔 %d\nID: %s", displayName, userID, ref)
}
