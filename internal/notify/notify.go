// Package notify models the external chat transport as two narrow ports: a
// fire-and-forget notifier and a channel membership checker. Delivery
// failures are logged, never propagated — ledger state is authoritative even
// when the user was never told about it.
package notify

import "context"

// EventKind labels a notification for the transport layer to render.
type EventKind string

const (
	EventNewUser             EventKind = "new_user"
	EventReferralBonus       EventKind = "referral_bonus"
	EventWithdrawalRequested EventKind = "withdrawal_requested"
	EventWithdrawalPaid      EventKind = "withdrawal_paid"
	EventWithdrawalRejected  EventKind = "withdrawal_rejected"
	EventGiftClaimed         EventKind = "gift_claimed"
)

// Notifier delivers an event to one recipient. Implementations bound the
// call with a timeout and swallow failures.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, kind EventKind, payload map[string]string)
}

// MembershipChecker reports whether a user is a member of a channel. An
// indeterminate answer (timeout, transport error) must be returned as an
// error so callers can fail closed.
type MembershipChecker interface {
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
}

// NopNotifier discards every notification. Used when the chat transport is
// disabled.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, EventKind, map[string]string) {}

// StaticChecker answers every membership question with a fixed verdict.
// Used in tests and in deployments with no chat transport.
type StaticChecker struct {
	Member bool
}

func (c StaticChecker) IsMember(context.Context, string, string) (bool, error) {
	return c.Member, nil
}
