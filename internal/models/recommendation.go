package models

import "strings"

// Action is the advised trade direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// ParseAction normalizes s into an Action. ok is false for anything else.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionWait, "HOLD":
		return ActionWait, true
	}
	return "", false
}

// RiskLevel is the provider's own risk grade. Empty means not provided.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel normalizes s into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	}
	return "", false
}

// SourceHeuristic tags recommendations produced by the keyword fallback.
const SourceHeuristic = "fallback-heuristic"

// Recommendation is the structured advice attached to a report.
type Recommendation struct {
	Action    Action    `json:"action"`
	Risk      RiskLevel `json:"risk_level,omitempty"`
	Driver    string    `json:"driver,omitempty"`
	Reasoning string    `json:"reasoning"`
	Source    string    `json:"source"`
	// Parsed is false when the provider answered but the answer did not
	// satisfy the structured contract.
	Parsed bool `json:"parsed"`
}

// LowOrMediumRisk reports whether the recommendation passes the quality gate.
func (r Recommendation) LowOrMediumRisk() bool {
	return r.Parsed && (r.Risk == RiskLow || r.Risk == RiskMedium)
}
