package domain

import "github.com/shopspring/decimal"

// Channel is a membership requirement users must satisfy before verification.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

// Settings is the mutable operational policy. Read-mostly; written only by
// admin actions.
type Settings struct {
	BotName           string
	WelcomeBonus      decimal.Decimal
	MinWithdrawal     decimal.Decimal
	MinReferReward    decimal.Decimal
	MaxReferReward    decimal.Decimal
	AutoWithdraw      bool
	WithdrawDisabled  bool
	IgnoreDeviceCheck bool
	BotsDisabled      bool
	Channels          []Channel
	Admins            []string
}

// IsAdmin reports whether the user id is in the admin set.
func (s *Settings) IsAdmin(userID string) bool {
	for _, id := range s.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate without aliasing the original.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}

	cp := *s
	cp.Channels = append([]Channel(nil), s.Channels...)
	cp.Admins = append([]string(nil), s.Admins...)
	return &cp
}

// DefaultSettings mirrors the policy the system boots with before any admin
// customization.
func DefaultSettings() *Settings {
	return &Settings{
		BotName:        "CYBER EARN ULTIMATE",
		WelcomeBonus:   decimal.NewFromInt(50),
		MinWithdrawal:  decimal.NewFromInt(100),
		MinReferReward: decimal.NewFromInt(10),
		MaxReferReward: decimal.NewFromInt(50),
	}
}
