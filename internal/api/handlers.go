package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
)

type registerRequest struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	ReferredBy string `json:"referred_by"`
}

type verifyRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type withdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PayoutAddress string          `json:"payout_address"`
}

type claimRequest struct {
	Code string `json:"code"`
}

type userResponse struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Balance      string    `json:"balance"`
	Verified     bool      `json:"verified"`
	ReferralCode string    `json:"referral_code,omitempty"`
	JoinedAt     time.Time `json:"joined_at"`
}

type verifyResponse struct {
	AlreadyVerified bool   `json:"already_verified"`
	Bonus           string `json:"bonus"`
	Balance         string `json:"balance"`
}

type withdrawResponse struct {
	TxID          string `json:"tx_id"`
	Amount        string `json:"amount"`
	Balance       string `json:"balance"`
	Status        string `json:"status"`
	SettlementRef string `json:"settlement_ref,omitempty"`
}

type claimResponse struct {
	Code    string `json:"code"`
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
}

type referredUserResponse struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type referralSummaryResponse struct {
	ReferralCode  string                 `json:"referral_code"`
	TotalReferred int                    `json:"total_referred"`
	VerifiedCount int                    `json:"verified_count"`
	PendingCount  int                    `json:"pending_count"`
	Referred      []referredUserResponse `json:"referred"`
}

type ledgerRecordResponse struct {
	TxID          string    `json:"tx_id"`
	UserID        string    `json:"user_id,omitempty"`
	Category      string    `json:"category"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	PayoutAddress string    `json:"payout_address,omitempty"`
	SettlementRef string    `json:"settlement_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toLedgerRecordResponse(rec *domain.WithdrawalRecord) ledgerRecordResponse {
	return ledgerRecordResponse{
		TxID:          rec.TxID,
		UserID:        rec.UserID,
		Category:      string(rec.Category),
		Amount:        rec.Amount.StringFixed(2),
		Status:        string(rec.Status),
		PayoutAddress: rec.PayoutAddress,
		SettlementRef: rec.SettlementRef,
		CreatedAt:     rec.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.engine.RegisterUser(r.Context(), req.UserID, req.Name, req.ReferredBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeData(w, http.StatusCreated, userResponse{
		UserID:       user.ID,
		Name:         user.Name,
		Balance:      user.Balance.StringFixed(2),
		Verified:     user.Verified,
		ReferralCode: user.ReferralCode,
		JoinedAt:     user.JoinedAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeData(w, http.StatusOK, userResponse{
		UserID:   status.UserID,
		Name:     status.Name,
		Balance:  status.Balance.StringFixed(2),
		Verified: status.Verified,
		JoinedAt: status.JoinedAt,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.VerifyUser(r.Context(), chi.URLParam(r, "userID"), req.Fingerprint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !res.AlreadyVerified {
		s.requestLeaderboardRefresh(r, "verify")
	}

	s.writeData(w, http.StatusOK, verifyResponse{
		AlreadyVerified: res.AlreadyVerified,
		Bonus:           res.Bonus.StringFixed(2),
		Balance:         res.Balance.StringFixed(2),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, apperrors.NewInvalidInput("limit", "limit must be an integer"))
			return
		}
		limit = parsed
	}

	records, err := s.engine.History(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]ledgerRecordResponse, 0, len(records))
	for _, rec := range records {
		item := toLedgerRecordResponse(rec)
		item.UserID = ""
		out = append(out, item)
	}

	s.writeData(w, http.StatusOK, out)
}

func (s *Server) handleReferrals(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.GetReferralSummary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := referralSummaryResponse{
		ReferralCode:  summary.ReferralCode,
		TotalReferred: summary.TotalReferred,
		VerifiedCount: summary.VerifiedCount,
		PendingCount:  summary.PendingCount,
		Referred:      make([]referredUserResponse, 0, len(summary.Referred)),
	}
	for _, ref := range summary.Referred {
		out.Referred = append(out.Referred, referredUserResponse(ref))
	}

	s.writeData(w, http.StatusOK, out)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.RequestWithdrawal(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.PayoutAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLeaderboardRefresh(r, "withdraw")

	s.writeData(w, http.StatusCreated, withdrawResponse{
		TxID:          res.TxID,
		Amount:        res.Amount.StringFixed(2),
		Balance:       res.Balance.StringFixed(2),
		Status:        string(res.Status),
		SettlementRef: res.SettlementRef,
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.ClaimGiftCode(r.Context(), chi.URLParam(r, "userID"), req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLeaderboardRefresh(r, "gift-claim")

	s.writeData(w, http.StatusOK, claimResponse{
		Code:    res.Code,
		Amount:  res.Amount.StringFixed(2),
		Balance: res.Balance.StringFixed(2),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.Leaderboard(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeData(w, http.StatusOK, snapshot)
}
