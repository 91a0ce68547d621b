package advisor

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rewired-gh/marketsentry/internal/models"
)

func headlines(titles ...string) []models.NewsItem {
	items := make([]models.NewsItem, len(titles))
	for i, t := range titles {
		items[i] = models.NewsItem{ID: t, Title: t}
	}
	return items
}

func TestHeuristic_Score(t *testing.T) {
	h := NewHeuristic()
	tests := []struct {
		name  string
		news  []models.NewsItem
		score int
	}{
		{"no news", nil, 0},
		{"single bullish", headlines("OPEC announces production cut"), 1},
		{"single bearish", headlines("Ceasefire agreed in the region"), -1},
		{"mixed headlines", headlines("War fears grow", "Peace deal signed"), -1},
		{"whole words only", headlines("Warehouse stocks rise; dealers cautious"), 0},
		{"case insensitive", headlines("HURRICANE hits Gulf"), 1},
		{"punctuation", headlines("Strike! Refinery outage, supply disruption."), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := h.Score(tt.news)
			if got != tt.score {
				t.Errorf("Score = %d, want %d", got, tt.score)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		score int
		rsi   float64
		want  models.Action
	}{
		{"neutral", 0, 50, models.ActionWait},
		{"bullish news", 2, 50, models.ActionBuy},
		{"bearish news", -1, 50, models.ActionSell},
		{"oversold overrides bearish", -3, 25, models.ActionBuy},
		{"overbought overrides bullish", 3, 75, models.ActionSell},
		{"boundaries are not extremes", 0, 30, models.ActionWait},
		{"undefined rsi ignored", 1, math.NaN(), models.ActionBuy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.score, tt.rsi); got != tt.want {
				t.Errorf("Decide(%d, %v) = %s, want %s", tt.score, tt.rsi, got, tt.want)
			}
		})
	}
}

func TestHeuristic_RecommendOversoldCut(t *testing.T) {
	in := neutralInput()
	in.Features.RSI = 25
	in.News = headlines("OPEC announces production cut")

	rec := NewHeuristic().Recommend(in, errors.New("timeout"))
	if rec.Action != models.ActionBuy {
		t.Errorf("action = %s, want BUY", rec.Action)
	}
	if rec.Source != models.SourceHeuristic || !rec.Parsed || rec.Risk != models.RiskMedium {
		t.Errorf("rec = %+v", rec)
	}
	for _, want := range []string{"AI analysis unavailable (timeout)", "+1", "cut", "oversold"} {
		if !strings.Contains(rec.Reasoning, want) {
			t.Errorf("reasoning %q missing %q", rec.Reasoning, want)
		}
	}
}

func TestNewHeuristicWithKeywords(t *testing.T) {
	h := NewHeuristicWithKeywords(map[string]int{"Rally": 2, "SLUMP": -2})
	score, hits := h.Score(headlines("Gold rally continues", "Copper slump"))
	if score != 0 || len(hits) != 2 {
		t.Errorf("score = %d hits = %v", score, hits)
	}
}
