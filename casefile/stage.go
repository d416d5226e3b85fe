package casefile

import "fmt"

// Stage is the case's position in the workflow lifecycle.
type Stage string

const (
	StageIntakeReceived       Stage = "intake_received"
	StageDataCompletion       Stage = "data_completion"
	StageMarketAnalysis       Stage = "market_analysis"
	StageHumanReview          Stage = "human_review"
	StagePendingDelivery      Stage = "pending_delivery"
	StageAwaitingDecision     Stage = "awaiting_decision"
	StageDecisionChase        Stage = "decision_chase"
	StageClientProceeding     Stage = "client_proceeding"
	StageBrokerValidation     Stage = "broker_validation"
	StageApplicationSubmitted Stage = "application_submitted"
	StageOfferReceived        Stage = "offer_received"
	StageCompleted            Stage = "completed"
	StageWithdrawn            Stage = "withdrawn"
	StageUnsuitable           Stage = "unsuitable"
)

// forwardTransitions enumerates the legal happy-path moves. The terminal
// stages withdrawn and unsuitable are additionally reachable from every
// non-terminal stage and are handled in CanTransition.
var forwardTransitions = map[Stage][]Stage{
	StageIntakeReceived:       {StageDataCompletion, StageMarketAnalysis},
	StageDataCompletion:       {StageMarketAnalysis},
	StageMarketAnalysis:       {StageHumanReview},
	StageHumanReview:          {StagePendingDelivery},
	StagePendingDelivery:      {StageAwaitingDecision},
	StageAwaitingDecision:     {StageDecisionChase, StageClientProceeding},
	StageDecisionChase:        {StageAwaitingDecision, StageClientProceeding},
	StageClientProceeding:     {StageBrokerValidation},
	StageBrokerValidation:     {StageApplicationSubmitted},
	StageApplicationSubmitted: {StageOfferReceived},
	StageOfferReceived:        {StageCompleted},
}

// OpenStages is the single authoritative set of stages in which a case
// counts as live. Both the timeline-urgency sweep and stage-aware queries
// consume this constant rather than re-deriving it.
var OpenStages = []Stage{
	StageIntakeReceived,
	StageDataCompletion,
	StageMarketAnalysis,
	StageHumanReview,
	StagePendingDelivery,
	StageAwaitingDecision,
	StageDecisionChase,
	StageClientProceeding,
	StageBrokerValidation,
	StageApplicationSubmitted,
	StageOfferReceived,
}

func (s Stage) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := forwardTransitions[s]
	return ok
}

// Terminal reports whether the stage is absorbing: completed cases and the
// two early-exit stages never transition again.
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageWithdrawn, StageUnsuitable:
		return true
	default:
		return false
	}
}

// Open reports whether the stage is in OpenStages.
func (s Stage) Open() bool {
	for _, open := range OpenStages {
		if s == open {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving from one stage to another is legal.
func CanTransition(from, to Stage) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == StageWithdrawn || to == StageUnsuitable {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an attempted illegal stage move.
type InvalidTransitionError struct {
	From Stage
	To   Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("casefile: invalid transition %s -> %s", e.From, e.To)
}
