package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/pkg/metrics"
)

type settingsResponse struct {
	BotName           string           `json:"bot_name"`
	WelcomeBonus      string           `json:"welcome_bonus"`
	MinWithdrawal     string           `json:"min_withdrawal"`
	MinReferReward    string           `json:"min_refer_reward"`
	MaxReferReward    string           `json:"max_refer_reward"`
	AutoWithdraw      bool             `json:"auto_withdraw"`
	WithdrawDisabled  bool             `json:"withdraw_disabled"`
	IgnoreDeviceCheck bool             `json:"ignore_device_check"`
	BotsDisabled      bool             `json:"bots_disabled"`
	Channels          []domain.Channel `json:"channels"`
	Admins            []string         `json:"admins"`
}

// updateSettingsRequest patches only the supplied fields.
type updateSettingsRequest struct {
	BotName           *string           `json:"bot_name"`
	WelcomeBonus      *decimal.Decimal  `json:"welcome_bonus"`
	MinWithdrawal     *decimal.Decimal  `json:"min_withdrawal"`
	MinReferReward    *decimal.Decimal  `json:"min_refer_reward"`
	MaxReferReward    *decimal.Decimal  `json:"max_refer_reward"`
	AutoWithdraw      *bool             `json:"auto_withdraw"`
	WithdrawDisabled  *bool             `json:"withdraw_disabled"`
	IgnoreDeviceCheck *bool             `json:"ignore_device_check"`
	BotsDisabled      *bool             `json:"bots_disabled"`
	Channels          *[]domain.Channel `json:"channels"`
	Admins            *[]string         `json:"admins"`
}

type createGiftCodeRequest struct {
	Code      string          `json:"code"`
	MinAmount decimal.Decimal `json:"min_amount"`
	MaxAmount decimal.Decimal `json:"max_amount"`
	TotalUses int             `json:"total_uses"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

type toggleGiftCodeRequest struct {
	Active bool `json:"active"`
}

type giftCodeResponse struct {
	Code      string     `json:"code"`
	MinAmount string     `json:"min_amount"`
	MaxAmount string     `json:"max_amount"`
	TotalUses int        `json:"total_uses"`
	Used      int        `json:"used"`
	IsActive  bool       `json:"is_active"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type settleRequest struct {
	Approve       bool   `json:"approve"`
	SettlementRef string `json:"settlement_ref"`
}

type statsResponse struct {
	Users           int    `json:"users"`
	PendingPayout   string `json:"pending_payout"`
	PendingRequests int    `json:"pending_requests"`
}

func toSettingsResponse(s *domain.Settings) settingsResponse {
	return settingsResponse{
		BotName:           s.BotName,
		WelcomeBonus:      s.WelcomeBonus.StringFixed(2),
		MinWithdrawal:     s.MinWithdrawal.StringFixed(2),
		MinReferReward:    s.MinReferReward.StringFixed(2),
		MaxReferReward:    s.MaxReferReward.StringFixed(2),
		AutoWithdraw:      s.AutoWithdraw,
		WithdrawDisabled:  s.WithdrawDisabled,
		IgnoreDeviceCheck: s.IgnoreDeviceCheck,
		BotsDisabled:      s.BotsDisabled,
		Channels:          s.Channels,
		Admins:            s.Admins,
	}
}

func toGiftCodeResponse(g *domain.GiftCode) giftCodeResponse {
	return giftCodeResponse{
		Code:      g.Code,
		MinAmount: g.MinAmount.StringFixed(2),
		MaxAmount: g.MaxAmount.StringFixed(2),
		TotalUses: g.TotalUses,
		Used:      len(g.UsedBy),
		IsActive:  g.IsActive,
		Expired:   g.Expired,
		ExpiresAt: g.Expiry,
		CreatedAt: g.CreatedAt,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.settings.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, apperrors.NewUnavailable("settings store", err))
		return
	}

	s.writeData(w, http.StatusOK, toSettingsResponse(snapshot))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.MinReferReward != nil && req.MaxReferReward != nil &&
		req.MaxReferReward.LessThan(*req.MinReferReward) {
		s.writeError(w, r, apperrors.NewInvalidInput("max_refer_reward", "reward ceiling below floor"))
		return
	}

	updated, err := s.settings.Update(r.Context(), func(cur *domain.Settings) {
		if req.BotName != nil {
			cur.BotName = *req.BotName
		}
		if req.WelcomeBonus != nil {
			cur.WelcomeBonus = *req.WelcomeBonus
		}
		if req.MinWithdrawal != nil {
			cur.MinWithdrawal = *req.MinWithdrawal
		}
		if req.MinReferReward != nil {
			cur.MinReferReward = *req.MinReferReward
		}
		if req.MaxReferReward != nil {
			cur.MaxReferReward = *req.MaxReferReward
		}
		if req.AutoWithdraw != nil {
			cur.AutoWithdraw = *req.AutoWithdraw
		}
		if req.WithdrawDisabled != nil {
			cur.WithdrawDisabled = *req.WithdrawDisabled
		}
		if req.IgnoreDeviceCheck != nil {
			cur.IgnoreDeviceCheck = *req.IgnoreDeviceCheck
		}
		if req.BotsDisabled != nil {
			cur.BotsDisabled = *req.BotsDisabled
		}
		if req.Channels != nil {
			cur.Channels = *req.Channels
		}
		if req.Admins != nil {
			cur.Admins = *req.Admins
		}
	})
	if err != nil {
		s.writeError(w, r, apperrors.NewUnavailable("settings store", err))
		return
	}

	s.writeData(w, http.StatusOK, toSettingsResponse(updated))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.users.Count(r.Context())
	if err != nil {
		s.writeError(w, r, apperrors.NewUnavailable("user store", err))
		return
	}

	pending, err := s.ledger.PendingWithdrawals(r.Context(), 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	total := decimal.Zero
	for _, rec := range pending {
		total = total.Add(rec.Amount)
	}

	s.writeData(w, http.StatusOK, statsResponse{
		Users:           count,
		PendingPayout:   total.StringFixed(2),
		PendingRequests: len(pending),
	})
}

func (s *Server) handleListGiftCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]giftCodeResponse, 0, len(codes))
	for _, code := range codes {
		out = append(out, toGiftCodeResponse(code))
	}

	s.writeData(w, http.StatusOK, out)
}

func (s *Server) handleCreateGiftCode(w http.ResponseWriter, r *http.Request) {
	var req createGiftCodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	code, err := s.registry.Create(r.Context(), req.Code, req.MinAmount, req.MaxAmount, req.TotalUses, req.ExpiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeData(w, http.StatusCreated, toGiftCodeResponse(code))
}

func (s *Server) handleToggleGiftCode(w http.ResponseWriter, r *http.Request) {
	var req toggleGiftCodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	code := chi.URLParam(r, "code")
	if err := s.registry.SetActive(r.Context(), code, req.Active); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.registry.Lookup(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeData(w, http.StatusOK, toGiftCodeResponse(updated))
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	var (
		records []*domain.WithdrawalRecord
		err     error
	)

	if r.URL.Query().Get("status") == string(domain.StatusPending) {
		records, err = s.ledger.PendingWithdrawals(r.Context(), 0)
	} else {
		records, err = s.ledger.Withdrawals(r.Context(), 0)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]ledgerRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toLedgerRecordResponse(rec))
	}

	s.writeData(w, http.StatusOK, out)
}

func (s *Server) handleSettleWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.engine.SettleWithdrawal(r.Context(), chi.URLParam(r, "txID"), req.Approve, req.SettlementRef)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	metrics.RecordSettlement(string(rec.Status))
	if !req.Approve {
		s.requestLeaderboardRefresh(r, "withdrawal-rejected")
	}

	s.writeData(w, http.StatusOK, toLedgerRecordResponse(rec))
}
