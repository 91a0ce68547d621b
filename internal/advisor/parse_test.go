package advisor

import (
	"strings"
	"testing"

	"github.com/rewired-gh/marketsentry/internal/models"
)

func TestParseRecommendation(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		action models.Action
		risk   models.RiskLevel
		parsed bool
	}{
		{
			name:   "clean object",
			input:  `{"action":"BUY","risk_level":"LOW","driver":"OPEC cut","reasoning":"Supply shock."}`,
			action: models.ActionBuy, risk: models.RiskLow, parsed: true,
		},
		{
			name:   "code fence and prose",
			input:  "Here you go:\n```json\n{\"action\": \"sell\", \"risk_level\": \"medium\", \"reasoning\": \"Glut.\"}\n```",
			action: models.ActionSell, risk: models.RiskMedium, parsed: true,
		},
		{
			name:   "hold maps to wait",
			input:  `{"action":"HOLD","risk_level":"HIGH","reasoning":"Unclear."}`,
			action: models.ActionWait, risk: models.RiskHigh, parsed: true,
		},
		{
			name:   "trailing comma repaired",
			input:  `{"action":"BUY","risk_level":"LOW","reasoning":"x",}`,
			action: models.ActionBuy, risk: models.RiskLow, parsed: true,
		},
		{
			name:   "missing risk level",
			input:  `{"action":"BUY","reasoning":"No grade."}`,
			action: models.ActionBuy, risk: models.RiskHigh, parsed: false,
		},
		{
			name:   "unknown action",
			input:  `{"action":"SHORT","risk_level":"LOW","reasoning":"?"}`,
			action: models.ActionWait, risk: models.RiskHigh, parsed: false,
		},
		{
			name:   "plain prose",
			input:  "I think you should buy oil now.",
			action: models.ActionWait, risk: models.RiskHigh, parsed: false,
		},
		{
			name:   "empty",
			input:  "",
			action: models.ActionWait, risk: models.RiskHigh, parsed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ParseRecommendation(tt.input)
			if rec.Action != tt.action || rec.Risk != tt.risk || rec.Parsed != tt.parsed {
				t.Errorf("got (%s, %s, %v), want (%s, %s, %v)",
					rec.Action, rec.Risk, rec.Parsed, tt.action, tt.risk, tt.parsed)
			}
			if rec.Reasoning == "" {
				t.Error("reasoning must never be empty")
			}
		})
	}
}

func TestParseRecommendation_ProseKeptAsReasoning(t *testing.T) {
	rec := ParseRecommendation(strings.Repeat("long answer ", 500))
	if n := len([]rune(rec.Reasoning)); n > maxRawReasoning+1 {
		t.Errorf("reasoning length = %d, want capped at %d", n, maxRawReasoning)
	}
	if !strings.HasPrefix(rec.Reasoning, "long answer") {
		t.Errorf("reasoning = %q", rec.Reasoning[:40])
	}
}
