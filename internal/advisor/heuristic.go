package advisor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// DefaultKeywords weights headline words for an oil-bullish bias.
var DefaultKeywords = map[string]int{
	"war":        1,
	"attack":     1,
	"conflict":   1,
	"sanctions":  1,
	"cut":        1,
	"cuts":       1,
	"explosion":  1,
	"hurricane":  1,
	"outage":     1,
	"disruption": 1,
	"strike":     1,
	"peace":      -1,
	"talks":      -1,
	"deal":       -1,
	"ceasefire":  -1,
	"surplus":    -1,
	"glut":       -1,
	"recession":  -1,
	"slowdown":   -1,
}

const (
	oversoldRSI   = 30
	overboughtRSI = 70
)

// Heuristic is the deterministic fallback used when no provider answers.
type Heuristic struct {
	keywords map[string]int
}

func NewHeuristic() *Heuristic {
	return &Heuristic{keywords: DefaultKeywords}
}

// NewHeuristicWithKeywords uses a custom weight table. Keys are matched
// case-insensitively as whole words.
func NewHeuristicWithKeywords(keywords map[string]int) *Heuristic {
	return &Heuristic{keywords: lo.MapKeys(keywords, func(_ int, k string) string { return strings.ToLower(k) })}
}

// Score sums keyword weights over all headlines, one unit per match.
func (h *Heuristic) Score(news []models.NewsItem) (score int, hits []string) {
	for _, n := range news {
		words := strings.FieldsFunc(strings.ToLower(n.Title), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if weight, ok := h.keywords[w]; ok {
				score += weight
				hits = append(hits, w)
			}
		}
	}
	return score, hits
}

// Decide maps a keyword score to an action, then lets RSI extremes override it.
func Decide(score int, rsi float64) models.Action {
	action := models.ActionWait
	switch {
	case score > 0:
		action = models.ActionBuy
	case score < 0:
		action = models.ActionSell
	}

	if models.Defined(rsi) {
		switch {
		case rsi < oversoldRSI:
			action = models.ActionBuy
		case rsi > overboughtRSI:
			action = models.ActionSell
		}
	}
	return action
}

// Recommend builds the fallback recommendation. cause explains why the
// providers were not used and is included in the reasoning.
func (h *Heuristic) Recommend(in Input, cause error) models.Recommendation {
	score, hits := h.Score(in.News)
	action := Decide(score, in.Features.RSI)

	var b strings.Builder
	b.WriteString("AI analysis unavailable")
	if cause != nil {
		fmt.Fprintf(&b, " (%v)", cause)
	}
	b.WriteString(". Keyword fallback: ")
	fmt.Fprintf(&b, "news score %+d", score)
	if len(hits) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(lo.Uniq(hits), ", "))
	}
	if models.Defined(in.Features.RSI) {
		fmt.Fprintf(&b, ", RSI %.1f", in.Features.RSI)
		switch {
		case in.Features.RSI < oversoldRSI:
			b.WriteString(" (oversold override)")
		case in.Features.RSI > overboughtRSI:
			b.WriteString(" (overbought override)")
		}
	}
	fmt.Fprintf(&b, " → %s.", action)

	return models.Recommendation{
		Action:    action,
		Risk:      models.RiskMedium,
		Reasoning: b.String(),
		Source:    models.SourceHeuristic,
		Parsed:    true,
	}
}
