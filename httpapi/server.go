// Package httpapi exposes the case workflow over HTTP.
package httpapi

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	"caseflow/analysis"
	"caseflow/audit"
	"caseflow/auth"
	"caseflow/casefile"
	"caseflow/chase"
	"caseflow/deadline"
	"caseflow/delivery"
	"caseflow/lender"
)

// Server bundles the services behind the HTTP handlers.
type Server struct {
	auths    *auth.Service
	cases    *casefile.Service
	reads    *casefile.PGRepository
	runner   *analysis.Runner
	delivery *delivery.Service
	chaser   *chase.Scheduler
	urgency  *deadline.Sweep
	audits   *audit.Repository
	lenders  *lender.Repository
	log      *zap.Logger
}

type Deps struct {
	Auth     *auth.Service
	Cases    *casefile.Service
	Reads    *casefile.PGRepository
	Runner   *analysis.Runner
	Delivery *delivery.Service
	Chaser   *chase.Scheduler
	Urgency  *deadline.Sweep
	Audits   *audit.Repository
	Lenders  *lender.Repository
	Log      *zap.Logger
}

func NewServer(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auths:    deps.Auth,
		cases:    deps.Cases,
		reads:    deps.Reads,
		runner:   deps.Runner,
		delivery: deps.Delivery,
		chaser:   deps.Chaser,
		urgency:  deps.Urgency,
		audits:   deps.Audits,
		lenders:  deps.Lenders,
		log:      log,
	}
}

// Router wires every route. All case endpoints sit behind JWT auth; the
// sweep triggers additionally require the admin role.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("")
	authed.Use(s.requireAuth())
	{
		authed.POST("/cases", s.handleCreateCase)
		authed.GET("/cases", s.handleListCases)
		authed.GET("/cases/:id", s.handleGetCase)
		authed.PATCH("/cases/:id", s.handleUpdateCase)
		authed.POST("/cases/:id/analysis", s.handleRunAnalysis)
		authed.GET("/cases/:id/delivery-options", s.handleDeliveryOptions)
		authed.POST("/cases/:id/approve", s.handleApprove)
		authed.POST("/cases/:id/decision", s.handleDecision)
		authed.POST("/cases/:id/transition", s.handleTransition)
		authed.POST("/cases/:id/pause", s.handlePause)
		authed.POST("/cases/:id/resume", s.handleResume)
		authed.GET("/cases/:id/audit", s.handleAuditLog)
		authed.GET("/lenders", s.handleListLenders)
	}

	sweeps := api.Group("/sweeps")
	sweeps.Use(s.requireAuth(), s.requireRole(auth.RoleAdmin))
	{
		sweeps.POST("/chase", s.handleChaseSweep)
		sweeps.POST("/urgency", s.handleUrgencySweep)
		sweeps.POST("/delivery", s.handleDeliverySweep)
	}

	return r
}
