// Package events distributes detection notifications to interested consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/koizumiiiii/Baketa-sub013/internal/region"
)

// TextDisappearance announces that previously recognized text vanished from
// a monitored window.
type TextDisappearance struct {
	ID           uuid.UUID     `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Regions      []region.Rect `json:"regions"`
	WindowHandle int64         `json:"windowHandle"`
}

// Publisher accepts disappearance events for distribution.
type Publisher interface {
	Publish(ctx context.Context, event TextDisappearance) error
}
