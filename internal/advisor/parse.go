package advisor

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonrepair"

	"github.com/rewired-gh/marketsentry/internal/models"
)

const maxRawReasoning = 1500

type recommendationPayload struct {
	Action    string `json:"action"`
	RiskLevel string `json:"risk_level"`
	Driver    string `json:"driver"`
	Reasoning string `json:"reasoning"`
}

// ParseRecommendation strictly parses a provider answer into a
// Recommendation. Anything that does not satisfy the contract comes back
// with Parsed=false and HIGH risk, so it never passes the quality gate.
// A missing risk level is treated the same way.
func ParseRecommendation(content string) models.Recommendation {
	unparsed := models.Recommendation{
		Action:    models.ActionWait,
		Risk:      models.RiskHigh,
		Reasoning: truncate(strings.TrimSpace(content), maxRawReasoning),
		Parsed:    false,
	}
	if unparsed.Reasoning == "" {
		unparsed.Reasoning = "Provider returned an empty answer."
	}

	body, ok := extractObject(content)
	if !ok {
		return unparsed
	}
	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return unparsed
	}
	var payload recommendationPayload
	if err := sonic.UnmarshalString(repaired, &payload); err != nil {
		return unparsed
	}

	rec := models.Recommendation{
		Driver:    strings.TrimSpace(payload.Driver),
		Reasoning: strings.TrimSpace(payload.Reasoning),
		Parsed:    true,
	}
	if rec.Reasoning == "" {
		rec.Reasoning = "No reasoning provided."
	}

	action, ok := models.ParseAction(payload.Action)
	if !ok {
		rec.Action = models.ActionWait
		rec.Risk = models.RiskHigh
		rec.Parsed = false
		return rec
	}
	rec.Action = action

	risk, ok := models.ParseRiskLevel(payload.RiskLevel)
	if !ok {
		rec.Risk = models.RiskHigh
		rec.Parsed = false
		return rec
	}
	rec.Risk = risk
	return rec
}

// extractObject returns the outermost {...} span, dropping code fences or
// prose around it.
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 {
		return "", false
	}
	if end < start {
		// Truncated answer; let the repair step close it.
		return s[start:], true
	}
	return s[start : end+1], true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
