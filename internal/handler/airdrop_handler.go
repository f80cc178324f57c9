package handler

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/creata-games/airdrop-engine/internal/handler/request"
	"github.com/creata-games/airdrop-engine/internal/handler/response"
	"github.com/creata-games/airdrop-engine/internal/repository"
	"github.com/creata-games/airdrop-engine/internal/services"
	"github.com/creata-games/airdrop-engine/internal/utils"
)

type AirdropHandler struct {
	engine *services.Engine
}

func NewAirdropHandler(engine *services.Engine) *AirdropHandler {
	return &AirdropHandler{engine: engine}
}

type entryView struct {
	Id            uint64          `json:"id"`
	BeneficiaryId uint64          `json:"beneficiary_id"`
	RewardType    string          `json:"reward_type"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	TxHash        string          `json:"txhash,omitempty"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

func newEntryView(e *repository.AirdropEntry) entryView {
	view := entryView{
		Id:            e.Id,
		BeneficiaryId: e.BeneficiaryId,
		RewardType:    e.RewardType,
		Amount:        utils.FromWei(new(big.Int).Set(e.Amount.Int)),
		Status:        e.Status.String(),
		TxHash:        e.TxHash,
		Note:          e.Note,
		CreatedAt:     e.CreatedAt,
	}
	if e.ProcessedAt.Valid {
		t := e.ProcessedAt.Time
		view.ProcessedAt = &t
	}
	return view
}

// POST /api/v1/airdrops
func (h *AirdropHandler) HandleEnqueue(c *gin.Context) {
	var req request.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	entry, err := h.engine.Enqueue(c.Request.Context(), req.BeneficiaryId, req.RewardType, req.Amount, req.Note)
	if err != nil {
		engineError(c, err)
		return
	}
	response.Success(c, newEntryView(entry))
}

// POST /api/v1/airdrops/execute
func (h *AirdropHandler) HandleExecute(c *gin.Context) {
	var req request.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	result, err := h.engine.ExecuteBatch(c.Request.Context(), req.BatchSize, req.DryRun)
	if err != nil {
		engineError(c, err)
		return
	}
	response.Success(c, result)
}

// POST /api/v1/airdrops/ranking
func (h *AirdropHandler) HandleRanking(c *gin.Context) {
	var req request.RankingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	report, err := h.engine.GenerateRankingRewards(c.Request.Context(), req.TopN)
	if err != nil {
		engineError(c, err)
		return
	}
	response.Success(c, report)
}

// GET /api/v1/airdrops?status=&page=&page_size=
func (h *AirdropHandler) HandleHistory(c *gin.Context) {
	status, ok := parseStatus(c.Query("status"))
	if !ok {
		response.Error(c, http.StatusBadRequest, "bad_request", "unknown status filter")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.engine.History(c.Request.Context(), status, page, pageSize)
	if err != nil {
		engineError(c, err)
		return
	}

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	response.Success(c, gin.H{"total": total, "entries": views})
}

// GET /api/v1/airdrops/stats
func (h *AirdropHandler) HandleStats(c *gin.Context) {
	report, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		engineError(c, err)
		return
	}
	response.Success(c, report)
}

func parseStatus(raw string) (*repository.EntryStatus, bool) {
	if raw == "" {
		return nil, true
	}
	for _, s := range []repository.EntryStatus{
		repository.EntryStatusPending,
		repository.EntryStatusProcessing,
		repository.EntryStatusSuccess,
		repository.EntryStatusFailed,
	} {
		if s.String() == raw {
			status := s
			return &status, true
		}
	}
	return nil, false
}

func engineError(c *gin.Context, err error) {
	var notEligible *services.NotEligibleError
	switch {
	case errors.Is(err, services.ErrInvalidRewardType):
		response.Error(c, http.StatusUnprocessableEntity, "invalid_reward_type", err.Error())
	case errors.Is(err, services.ErrAmountOutOfRange):
		response.Error(c, http.StatusUnprocessableEntity, "amount_out_of_range", err.Error())
	case errors.As(err, &notEligible):
		response.Error(c, http.StatusUnprocessableEntity, "not_eligible", notEligible.Reason)
	case errors.Is(err, services.ErrDuplicatePending):
		response.Error(c, http.StatusConflict, "duplicate_pending", err.Error())
	case errors.Is(err, services.ErrBatchRunning):
		response.Error(c, http.StatusConflict, "batch_running", err.Error())
	case errors.Is(err, services.ErrInsufficientFunding):
		response.Error(c, http.StatusServiceUnavailable, "insufficient_funding", err.Error())
	case errors.Is(err, services.ErrNoSelector):
		response.Error(c, http.StatusServiceUnavailable, "no_selector", err.Error())
	default:
		logrus.Errorf("api: %s %s: %s", c.Request.Method, c.FullPath(), err)
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
