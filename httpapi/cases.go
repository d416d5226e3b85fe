package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caseflow/casefile"
	"caseflow/delivery"
)

type caseResponse struct {
	ID          string  `json:"id"`
	Reference   string  `json:"reference"`
	ExternalRef *string `json:"external_ref,omitempty"`

	ClientName  string  `json:"client_name"`
	ClientEmail *string `json:"client_email,omitempty"`
	ClientAge   int     `json:"client_age"`

	PropertyValue   float64    `json:"property_value"`
	LoanAmount      float64    `json:"loan_amount"`
	LTV             float64    `json:"ltv"`
	AnnualIncome    float64    `json:"annual_income"`
	IncomeType      string     `json:"income_type"`
	Category        string     `json:"category"`
	Purpose         string     `json:"purpose,omitempty"`
	TimeSensitivity string     `json:"time_sensitivity"`
	TermYears       int        `json:"term_years"`
	Deadline        *time.Time `json:"deadline,omitempty"`

	Stage           string     `json:"stage"`
	StageEnteredAt  time.Time  `json:"stage_entered_at"`
	Paused          bool       `json:"paused"`
	AnalysisStatus  string     `json:"analysis_status"`
	ScheduledSendAt *time.Time `json:"scheduled_send_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	ChaseCount      int        `json:"chase_count"`
	LastChaseAt     *time.Time `json:"last_chase_at,omitempty"`
	ClientDecision  string     `json:"client_decision"`

	TriageScore   *int     `json:"triage_score,omitempty"`
	TriageRating  *string  `json:"triage_rating,omitempty"`
	TriageFactors []string `json:"triage_factors,omitempty"`

	Matched  []casefile.LenderDecision `json:"matched_lenders,omitempty"`
	Rejected []casefile.LenderDecision `json:"rejected_lenders,omitempty"`

	Urgency       *string `json:"urgency,omitempty"`
	DaysRemaining *int    `json:"days_remaining,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCaseResponse(c casefile.Case) caseResponse {
	return caseResponse{
		ID:              c.ID,
		Reference:       c.Reference,
		ExternalRef:     c.ExternalRef,
		ClientName:      c.ClientName,
		ClientEmail:     c.ClientEmail,
		ClientAge:       c.ClientAge,
		PropertyValue:   c.PropertyValue,
		LoanAmount:      c.LoanAmount,
		LTV:             c.LTV,
		AnnualIncome:    c.AnnualIncome,
		IncomeType:      string(c.IncomeType),
		Category:        string(c.Category),
		Purpose:         string(c.Purpose),
		TimeSensitivity: string(c.TimeSensitivity),
		TermYears:       c.TermYears,
		Deadline:        c.Deadline,
		Stage:           string(c.Stage),
		StageEnteredAt:  c.StageEnteredAt,
		Paused:          c.Paused,
		AnalysisStatus:  string(c.AnalysisStatus),
		ScheduledSendAt: c.ScheduledSendAt,
		DeliveredAt:     c.DeliveredAt,
		ChaseCount:      c.ChaseCount,
		LastChaseAt:     c.LastChaseAt,
		ClientDecision:  string(c.ClientDecision),
		TriageScore:     c.TriageScore,
		TriageRating:    c.TriageRating,
		TriageFactors:   c.TriageFactors,
		Matched:         c.Matched,
		Rejected:        c.Rejected,
		Urgency:         c.Urgency,
		DaysRemaining:   c.DaysRemaining,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// writeCaseError maps domain errors onto HTTP statuses.
func (s *Server) writeCaseError(c *gin.Context, err error) {
	var invalid *casefile.InvalidTransitionError
	switch {
	case errors.Is(err, casefile.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
	case errors.Is(err, casefile.ErrCasePaused),
		errors.Is(err, casefile.ErrStageMismatch),
		errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.log.Error("case request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type createCaseRequest struct {
	Reference       string     `json:"reference"`
	ExternalRef     *string    `json:"external_ref"`
	ClientName      string     `json:"client_name"`
	ClientEmail     *string    `json:"client_email"`
	ClientAge       int        `json:"client_age"`
	PropertyValue   float64    `json:"property_value"`
	LoanAmount      float64    `json:"loan_amount"`
	AnnualIncome    float64    `json:"annual_income"`
	IncomeType      string     `json:"income_type"`
	Category        string     `json:"category"`
	Purpose         string     `json:"purpose"`
	TimeSensitivity string     `json:"time_sensitivity"`
	TermYears       int        `json:"term_years"`
	Deadline        *time.Time `json:"deadline"`
}

func (s *Server) handleCreateCase(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := s.cases.Create(c.Request.Context(), casefile.CreateParams{
		Reference:       req.Reference,
		ExternalRef:     req.ExternalRef,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientAge:       req.ClientAge,
		PropertyValue:   req.PropertyValue,
		LoanAmount:      req.LoanAmount,
		AnnualIncome:    req.AnnualIncome,
		IncomeType:      casefile.IncomeType(req.IncomeType),
		Category:        casefile.Category(req.Category),
		Purpose:         casefile.Purpose(req.Purpose),
		TimeSensitivity: casefile.TimeSensitivity(req.TimeSensitivity),
		TermYears:       req.TermYears,
		Deadline:        req.Deadline,
		Actor:           actorFrom(c),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toCaseResponse(created))
}

func (s *Server) handleGetCase(c *gin.Context) {
	found, err := s.reads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeCaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaseResponse(found))
}

func (s *Server) handleListCases(c *gin.Context) {
	stages := casefile.OpenStages
	if raw := c.Query("stage"); raw != "" {
		stage := casefile.Stage(raw)
		if !stage.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stage"})
			return
		}
		stages = []casefile.Stage{stage}
	}

	cases, err := s.reads.ListByStages(c.Request.Context(), stages)
	if err != nil {
		s.writeCaseError(c, err)
		return
	}

	out := make([]caseResponse, 0, len(cases))
	for _, cs := range cases {
		out = append(out, toCaseResponse(cs))
	}
	c.JSON(http.StatusOK, gin.H{"cases": out})
}

type updateCaseRequest struct {
	ExternalRef     *string    `json:"external_ref"`
	ClientName      *string    `json:"client_name"`
	ClientEmail     *string    `json:"client_email"`
	ClientAge       *int       `json:"client_age"`
	PropertyValue   *float64   `json:"property_value"`
	LoanAmount      *float64   `json:"loan_amount"`
	AnnualIncome    *float64   `json:"annual_income"`
	IncomeType      *string    `json:"income_type"`
	Category        *string    `json:"category"`
	Purpose         *string    `json:"purpose"`
	TimeSensitivity *string    `json:"time_sensitivity"`
	TermYears       *int       `json:"term_years"`
	Deadline        *time.Time `json:"deadline"`
	ClearDeadline   bool       `json:"clear_deadline"`
}

func (s *Server) handleUpdateCase(c *gin.Context) {
	var req updateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	params := casefile.UpdateParams{
		CaseID:        c.Param("id"),
		ExternalRef:   req.ExternalRef,
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientAge:     req.ClientAge,
		PropertyValue: req.PropertyValue,
		LoanAmount:    req.LoanAmount,
		AnnualIncome:  req.AnnualIncome,
		TermYears:     req.TermYears,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
		Actor:         actorFrom(c),
	}
	if req.IncomeType != nil {
		v := casefile.IncomeType(*req.IncomeType)
		params.IncomeType = &v
	}
	if req.Category != nil {
		v := casefile.Category(*req.Category)
		params.Category = &v
	}
	if req.Purpose != nil {
		v := casefile.Purpose(*req.Purpose)
		params.Purpose = &v
	}
	if req.TimeSensitivity != nil {
		v := casefile.TimeSensitivity(*req.TimeSensitivity)
		params.TimeSensitivity = &v
	}

	updated, err := s.cases.Update(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, casefile.ErrNotFound) {
			s.writeCaseError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toCaseResponse(updated))
}

func (s *Server) handleRunAnalysis(c *gin.Context) {
	result, err := s.runner.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeCaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaseResponse(result))
}

func (s *Server) handleDeliveryOptions(c *gin.Context) {
	opts := delivery.Options(time.Now())
	out := make([]gin.H, 0, len(opts))
	for _, o := range opts {
		out = append(out, gin.H{
			"mode":    string(o.Mode),
			"send_at": o.SendAt,
			"label":   o.Label,
		})
	}
	c.JSON(http.StatusOK, gin.H{"options": out})
}

type approveRequest struct {
	Mode     string     `json:"mode" binding:"required"`
	CustomAt *time.Time `json:"custom_at"`
}

func (s *Server) handleApprove(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	approved, err := s.delivery.Approve(c.Request.Context(), delivery.ApproveParams{
		CaseID:   c.Param("id"),
		Mode:     delivery.Mode(req.Mode),
		CustomAt: req.CustomAt,
		Actor:    actorFrom(c),
	})
	if err != nil {
		if errors.Is(err, casefile.ErrNotFound) || errors.Is(err, casefile.ErrStageMismatch) {
			s.writeCaseError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toCaseResponse(approved))
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

func (s *Server) handleDecision(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := s.cases.RecordClientDecision(
		c.Request.Context(),
		c.Param("id"),
		casefile.ClientDecision(req.Decision),
		actorFrom(c),
	)
	if err != nil {
		if errors.Is(err, casefile.ErrNotFound) ||
			errors.Is(err, casefile.ErrStageMismatch) {
			s.writeCaseError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toCaseResponse(updated))
}

type transitionRequest struct {
	To     string `json:"to" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) handleTransition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := s.cases.Transition(c.Request.Context(), casefile.TransitionParams{
		CaseID: c.Param("id"),
		To:     casefile.Stage(req.To),
		Actor:  actorFrom(c),
		Reason: req.Reason,
	})
	if err != nil {
		s.writeCaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCaseResponse(updated))
}

func (s *Server) handlePause(c *gin.Context) {
	s.setPaused(c, true)
}

func (s *Server) handleResume(c *gin.Context) {
	s.setPaused(c, false)
}

func (s *Server) setPaused(c *gin.Context, paused bool) {
	updated, err := s.cases.SetPaused(c.Request.Context(), c.Param("id"), paused, actorFrom(c))
	if err != nil {
		s.writeCaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaseResponse(updated))
}

func (s *Server) handleAuditLog(c *gin.Context) {
	entries, err := s.audits.ListForCase(c.Request.Context(), c.Param("id"), 200)
	if err != nil {
		s.writeCaseError(c, err)
		return
	}

	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"id":         e.ID,
			"type":       e.Type,
			"actor":      e.Actor,
			"payload":    json.RawMessage(e.Payload),
			"created_at": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (s *Server) handleListLenders(c *gin.Context) {
	lenders, err := s.lenders.ListActive(c.Request.Context(), c.Query("category"))
	if err != nil {
		s.log.Error("list lenders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]gin.H, 0, len(lenders))
	for _, l := range lenders {
		out = append(out, gin.H{
			"id":       l.ID,
			"name":     l.Name,
			"category": l.Category,
		})
	}
	c.JSON(http.StatusOK, gin.H{"lenders": out})
}
