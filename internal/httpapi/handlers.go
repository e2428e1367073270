package httpapi

import (
	"errors"
	"net/http"
	"time"

	"agent-settlement-platform/internal/audit"
	"agent-settlement-platform/internal/auth"
	"agent-settlement-platform/internal/hierarchy"
	"agent-settlement-platform/internal/perm"
	"agent-settlement-platform/internal/settlement"
	"agent-settlement-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Lifecycle *settlement.LifecycleService
	Rates     *settlement.RateService
	Directory hierarchy.Directory
	Audit     *audit.Service
}

// --- Request shapes ---

type listRequest struct {
	Software    string `json:"software"`
	TargetAgent string `json:"target_agent"`
}

type rateInput struct {
	CardType string `json:"card_type"`
	Price    string `json:"price"`
}

type upsertRequest struct {
	Software    string `json:"software"`
	TargetAgent string `json:"target_agent"`

	Rates            []rateInput `json:"rates"`
	CycleDays        *int        `json:"cycle_days"`
	CycleTimeMinutes *int        `json:"cycle_time_minutes"`
}

type completeRequest struct {
	Software    string `json:"software"`
	TargetAgent string `json:"target_agent"`

	BillID int64  `json:"bill_id"`
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

// --- View shapes: times as RFC3339 UTC, amounts as decimal strings ---

type agentOption struct {
	Username           string `json:"username"`
	DisplayName        string `json:"display_name"`
	HasPendingReminder bool   `json:"has_pending_reminder"`
}

type cycleView struct {
	OwnDays              int    `json:"own_days"`
	OwnTimeMinutes       int    `json:"own_time_minutes"`
	OwnTimeLabel         string `json:"own_time_label"`
	EffectiveDays        int    `json:"effective_days"`
	EffectiveTimeMinutes int    `json:"effective_time_minutes"`
	EffectiveTimeLabel   string `json:"effective_time_label"`
	IsInherited          bool   `json:"is_inherited"`
	IsDue                bool   `json:"is_due"`

	LastSettledAt *string `json:"last_settled_at,omitempty"`
	NextDueAt     *string `json:"next_due_at,omitempty"`
}

type breakdownView struct {
	Agent       string `json:"agent"`
	DisplayName string `json:"display_name"`
	Count       int64  `json:"count"`
	Amount      string `json:"amount"`
}

type billView struct {
	ID              int64           `json:"id"`
	CycleStart      string          `json:"cycle_start"`
	CycleEnd        string          `json:"cycle_end"`
	Amount          string          `json:"amount"`
	SuggestedAmount string          `json:"suggested_amount"`
	Settled         bool            `json:"settled"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       string          `json:"created_at"`
	SettledAt       *string         `json:"settled_at,omitempty"`
	Breakdowns      []breakdownView `json:"breakdowns,omitempty"`
}

type snapshotView struct {
	TargetAgent        string        `json:"target_agent"`
	Agents             []agentOption `json:"agents"`
	Rates              []rateInput   `json:"rates"`
	Cycle              cycleView     `json:"cycle"`
	Bills              []billView    `json:"bills"`
	HasPendingReminder bool          `json:"has_pending_reminder"`
}

// --- Handlers ---

// List returns the settlement snapshot for the caller or a managed agent.
func (h Handlers) List(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "invalid json")
		return
	}
	id, ok := h.identity(c, req.Software)
	if !ok {
		return
	}
	target, ok := h.resolveTarget(c, id, req.TargetAgent)
	if !ok {
		return
	}
	h.respondSnapshot(c, id, target)
}

// Upsert replaces the target agent's price list and/or cycle configuration.
func (h Handlers) Upsert(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "invalid json")
		return
	}
	id, ok := h.identity(c, req.Software)
	if !ok {
		return
	}
	if !perm.Has(id.permissions, perm.EditSettlement) {
		respondError(c, http.StatusForbidden, CodePermissionDenied, "settlement editing not permitted")
		return
	}
	target, ok := h.resolveTarget(c, id, req.TargetAgent)
	if !ok {
		return
	}

	// Validate the whole request before the first write.
	rates := make([]settlement.Rate, 0, len(req.Rates))
	for _, in := range req.Rates {
		price, err := decimal.NewFromString(in.Price)
		if err != nil {
			respondError(c, http.StatusBadRequest, CodeInvalidParam, "invalid price for "+in.CardType)
			return
		}
		rates = append(rates, settlement.Rate{CardType: in.CardType, Price: price})
	}
	if req.CycleTimeMinutes != nil && (*req.CycleTimeMinutes < 0 || *req.CycleTimeMinutes >= 1440) {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "cycle time must be in [0, 1440)")
		return
	}
	if req.CycleDays != nil && *req.CycleDays < 0 {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "cycle days must be >= 0")
		return
	}

	ctx := c.Request.Context()
	if req.Rates != nil {
		if err := h.Rates.ReplaceRates(ctx, id.software, target, rates); err != nil {
			h.respondServiceError(c, err)
			return
		}
		h.auditLog(c, h.Audit.LogRatesReplaced(ctx, id.software, id.username, c.ClientIP(), target, len(rates)))
	}
	if req.CycleDays != nil || req.CycleTimeMinutes != nil {
		info, err := h.Lifecycle.UpdateCycle(ctx, id.software, target, req.CycleDays, req.CycleTimeMinutes)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		h.auditLog(c, h.Audit.LogCycleUpdated(ctx, id.software, id.username, c.ClientIP(), target, info.OwnDays, info.OwnTimeMinutes))
	}

	h.respondSnapshot(c, id, target)
}

// CompleteBill settles a pending bill with the confirmed amount.
func (h Handlers) CompleteBill(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "invalid json")
		return
	}
	id, ok := h.identity(c, req.Software)
	if !ok {
		return
	}
	if !perm.Has(id.permissions, perm.EditSettlement) {
		respondError(c, http.StatusForbidden, CodePermissionDenied, "settlement editing not permitted")
		return
	}
	target, ok := h.resolveTarget(c, id, req.TargetAgent)
	if !ok {
		return
	}
	if req.BillID <= 0 {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "bill_id required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeInvalidParam, "invalid amount")
		return
	}

	ctx := c.Request.Context()
	bill, err := h.Lifecycle.CompleteBill(ctx, id.software, target, req.BillID, amount, req.Note)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.auditLog(c, h.Audit.LogBillCompleted(ctx, id.software, id.username, c.ClientIP(), target, bill.ID, bill.Amount.String()))

	h.respondSnapshot(c, id, target)
}

// --- Shared plumbing ---

type identity struct {
	username    string
	software    string
	permissions int64
	includeAll  bool
}

// identity reads the authenticated caller and checks the tenant in the
// request body against the token.
func (h Handlers) identity(c *gin.Context, requestSoftware string) (identity, bool) {
	ctx := c.Request.Context()
	username, err := auth.Username(ctx)
	if err != nil {
		respondError(c, http.StatusUnauthorized, CodeTokenInvalid, "authentication required")
		return identity{}, false
	}
	software, err := auth.Software(ctx)
	if err != nil {
		respondError(c, http.StatusUnauthorized, CodeTokenInvalid, "authentication required")
		return identity{}, false
	}
	if requestSoftware != "" && requestSoftware != software {
		respondError(c, http.StatusForbidden, CodePermissionDenied, "software mismatch")
		return identity{}, false
	}
	perms := auth.Permissions(ctx)
	return identity{
		username:    username,
		software:    software,
		permissions: perms,
		includeAll:  perm.Has(perms, perm.ViewAllDescendants),
	}, true
}

func (h Handlers) resolveTarget(c *gin.Context, id identity, requested string) (string, bool) {
	target, err := hierarchy.ResolveTargetAgent(c.Request.Context(), h.Directory, id.software, id.username, id.includeAll, requested)
	if err != nil {
		h.respondServiceError(c, err)
		return "", false
	}
	return target, true
}

func (h Handlers) respondSnapshot(c *gin.Context, id identity, target string) {
	ctx := c.Request.Context()

	details, err := h.Lifecycle.GetDetails(ctx, id.software, target, id.username)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	reminders, err := h.Lifecycle.ReminderMap(ctx, id.software, id.username, id.includeAll)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	accessible, err := h.Directory.GetAccessibleAgents(ctx, id.software, id.username, id.includeAll)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	options := make([]agentOption, 0, len(accessible))
	for _, a := range accessible {
		name := a.Remark
		if name == "" {
			name = a.Username
		}
		options = append(options, agentOption{
			Username:           a.Username,
			DisplayName:        name,
			HasPendingReminder: reminders[a.Username],
		})
	}

	rates := make([]rateInput, 0, len(details.Rates))
	for _, r := range details.Rates {
		rates = append(rates, rateInput{CardType: r.CardType, Price: r.Price.String()})
	}

	bills := make([]billView, 0, len(details.Bills))
	for _, b := range details.Bills {
		bills = append(bills, toBillView(b))
	}

	respondOK(c, snapshotView{
		TargetAgent:        details.AgentUsername,
		Agents:             options,
		Rates:              rates,
		Cycle:              toCycleView(details.Cycle),
		Bills:              bills,
		HasPendingReminder: details.HasPendingReminder,
	})
}

func (h Handlers) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settlement.ErrValidation):
		respondError(c, http.StatusBadRequest, CodeInvalidParam, err.Error())
	case errors.Is(err, settlement.ErrBillNotFound):
		respondError(c, http.StatusNotFound, CodeInvalidParam, "bill not found")
	case errors.Is(err, hierarchy.ErrAgentNotFound):
		respondError(c, http.StatusNotFound, CodeAgentNotFound, "agent not found")
	case errors.Is(err, hierarchy.ErrPermissionDenied):
		respondError(c, http.StatusForbidden, CodePermissionDenied, "agent not accessible")
	default:
		logger.FromGin(c).Error("settlement handler failed", "error", err)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}

// auditLog reports a failed audit append without failing the request.
func (h Handlers) auditLog(c *gin.Context, err error) {
	if err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err)
	}
}

func toCycleView(info settlement.CycleInfo) cycleView {
	return cycleView{
		OwnDays:              info.OwnDays,
		OwnTimeMinutes:       info.OwnTimeMinutes,
		OwnTimeLabel:         settlement.TimeLabel(info.OwnTimeMinutes),
		EffectiveDays:        info.EffectiveDays,
		EffectiveTimeMinutes: info.EffectiveTimeMinutes,
		EffectiveTimeLabel:   settlement.TimeLabel(info.EffectiveTimeMinutes),
		IsInherited:          info.IsInherited,
		IsDue:                info.IsDue,
		LastSettledAt:        rfc3339(info.LastSettledAt),
		NextDueAt:            rfc3339(info.NextDueAt),
	}
}

func toBillView(b settlement.Bill) billView {
	rows := make([]breakdownView, 0, len(b.Breakdowns))
	for _, r := range b.Breakdowns {
		rows = append(rows, breakdownView{
			Agent:       r.Agent,
			DisplayName: r.DisplayName,
			Count:       r.Count,
			Amount:      r.Amount.String(),
		})
	}
	return billView{
		ID:              b.ID,
		CycleStart:      b.CycleStart.UTC().Format(time.RFC3339),
		CycleEnd:        b.CycleEnd.UTC().Format(time.RFC3339),
		Amount:          b.Amount.String(),
		SuggestedAmount: b.SuggestedAmount.String(),
		Settled:         b.Settled,
		Note:            b.Note,
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
		SettledAt:       rfc3339(b.SettledAt),
		Breakdowns:      rows,
	}
}

func rfc3339(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
