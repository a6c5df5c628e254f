package domain

import (
	"fmt"
	"time"
)

// WidgetEventKind is a telemetry event from the public embed.
type WidgetEventKind string

const (
	WidgetEventView    WidgetEventKind = "view"
	WidgetEventClick   WidgetEventKind = "click"
	WidgetEventBooking WidgetEventKind = "booking"
)

// ParseWidgetEventKind validates a widget event kind from the wire.
func ParseWidgetEventKind(s string) (WidgetEventKind, error) {
	switch WidgetEventKind(s) {
	case WidgetEventView, WidgetEventClick, WidgetEventBooking:
		return WidgetEventKind(s), nil
	}
	return "", fmt.Errorf("unknown widget event kind %q", s)
}

// WidgetStats is the per-user counter row maintained by the tracker.
type WidgetStats struct {
	UserID    string    `bson:"_id" json:"user_id"`
	Views     int64     `bson:"views" json:"views"`
	Clicks    int64     `bson:"clicks" json:"clicks"`
	Bookings  int64     `bson:"bookings" json:"bookings"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
