package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
)

const (
	notifyTimeout     = 5 * time.Second
	membershipTimeout = 3 * time.Second
)

// TelegramNotifier delivers events as plain text Telegram messages.
type TelegramNotifier struct {
	bot *telebot.Bot
	log *slog.Logger
}

// NewTelegramNotifier constructs a Telegram-backed notifier.
func NewTelegramNotifier(bot *telebot.Bot, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}

	return &TelegramNotifier{bot: bot, log: log}
}

// Notify sends the rendered event to the recipient. Errors and timeouts are
// logged and dropped.
func (n *TelegramNotifier) Notify(ctx context.Context, recipientID string, kind EventKind, payload map[string]string) {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		n.log.Warn("notification recipient is not a chat id", slog.String("recipient", recipientID))
		return
	}

	done := make(chan error, 1)
	go func() {
		_, sendErr := n.bot.Send(&telebot.Chat{ID: chatID}, renderEvent(kind, payload))
		done <- sendErr
	}()

	timer := time.NewTimer(notifyTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			n.log.Error("notification delivery failed",
				slog.String("recipient", recipientID),
				slog.String("event", string(kind)),
				slog.Any("error", err),
			)
		}
	case <-timer.C:
		n.log.Warn("notification delivery timed out",
			slog.String("recipient", recipientID),
			slog.String("event", string(kind)),
		)
	case <-ctx.Done():
	}
}

func renderEvent(kind EventKind, payload map[string]string) string {
	switch kind {
	case EventNewUser:
		return fmt.Sprintf("New user %s (id %s) joined", payload["name"], payload["user_id"])
	case EventReferralBonus:
		return fmt.Sprintf("Referral bonus! You earned %s for %s's verification", payload["amount"], payload["name"])
	case EventWithdrawalRequested:
		return fmt.Sprintf("New withdrawal: %s requested %s (tx %s)", payload["name"], payload["amount"], payload["tx_id"])
	case EventWithdrawalPaid:
		return fmt.Sprintf("Withdrawal paid: %s (ref %s, tx %s)", payload["amount"], payload["settlement_ref"], payload["tx_id"])
	case EventWithdrawalRejected:
		return fmt.Sprintf("Withdrawal rejected: %s refunded (tx %s)", payload["amount"], payload["tx_id"])
	case EventGiftClaimed:
		return fmt.Sprintf("Gift code claimed! %s added to your balance", payload["amount"])
	default:
		return string(kind)
	}
}

// TelegramMembershipChecker resolves channel membership through the bot API,
// guarded by a circuit breaker so a flapping API fails fast.
type TelegramMembershipChecker struct {
	bot     *telebot.Bot
	log     *slog.Logger
	breaker *apperrors.CircuitBreaker
}

// NewTelegramMembershipChecker constructs a checker.
func NewTelegramMembershipChecker(bot *telebot.Bot, log *slog.Logger) *TelegramMembershipChecker {
	if log == nil {
		log = slog.Default()
	}

	return &TelegramMembershipChecker{
		bot:     bot,
		log:     log,
		breaker: apperrors.NewCircuitBreaker(),
	}
}

// IsMember checks the user's status in the channel. Unknown outcomes (parse
// failure, API error, timeout, open breaker) are errors; the caller treats
// them as non-membership.
func (c *TelegramMembershipChecker) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse channel id %q: %w", channelID, err)
	}
	memberID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse user id %q: %w", userID, err)
	}

	var member bool
	callErr := c.breaker.Call(func() error {
		type result struct {
			member bool
			err    error
		}
		done := make(chan result, 1)

		go func() {
			chatMember, err := c.bot.ChatMemberOf(&telebot.Chat{ID: chatID}, &telebot.User{ID: memberID})
			if err != nil {
				done <- result{err: err}
				return
			}
			done <- result{member: isMemberRole(chatMember.Role)}
		}()

		timer := time.NewTimer(membershipTimeout)
		defer timer.Stop()

		select {
		case res := <-done:
			if res.err != nil {
				return res.err
			}
			member = res.member
			return nil
		case <-timer.C:
			return context.DeadlineExceeded
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if callErr != nil {
		return false, callErr
	}

	return member, nil
}

func isMemberRole(role telebot.MemberStatus) bool {
	switch role {
	case telebot.Member, telebot.Administrator, telebot.Creator, telebot.Restricted:
		return true
	default:
		return false
	}
}
