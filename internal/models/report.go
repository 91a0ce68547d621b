package models

import "time"

// Trigger names why a report was produced.
type Trigger string

const (
	TriggerScheduled    Trigger = "scheduled"
	TriggerPriceSpike   Trigger = "price_spike"
	TriggerBreakingNews Trigger = "breaking_news"
)

// Report is one dispatched notification.
type Report struct {
	ID             string         `json:"id"`
	Asset          string         `json:"asset"`
	Symbol         string         `json:"symbol"`
	Time           time.Time      `json:"time"`
	Trigger        Trigger        `json:"trigger"`
	Reason         string         `json:"reason"`
	Emergency      bool           `json:"emergency"`
	Features       FeatureVector  `json:"features"`
	EMACross       string         `json:"ema_cross"`
	Risk           RiskLevels     `json:"risk"`
	Recommendation Recommendation `json:"recommendation"`
	Headlines      []NewsItem     `json:"headlines"`
	Chart          []byte         `json:"-"`
}
