package models

import (
	"errors"
	"time"
)

// NewsItem is a single headline. A zero Published means the age is unknown.
type NewsItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Link      string    `json:"link,omitempty"`
	Published time.Time `json:"published,omitempty"`
}

// Age returns how old the item is at now. ok is false when the publish time is unknown.
func (n NewsItem) Age(now time.Time) (age time.Duration, ok bool) {
	if n.Published.IsZero() {
		return 0, false
	}
	return now.Sub(n.Published), true
}

// Validate checks news item field constraints.
func (n *NewsItem) Validate() error {
	if n.ID == "" {
		return errors.New("news ID must not be empty")
	}
	if n.Title == "" {
		return errors.New("news title must not be empty")
	}
	return nil
}
