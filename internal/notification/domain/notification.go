package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Sender is the fixed label every system notification carries.
const Sender = "Appointment System"

// Notification is one entry in a user's notification feed. The read flag is
// written false and preserved for wire compatibility; unread tracking is the
// fan-out's watermark, not this flag.
type Notification struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	// Timestamp is the creation time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
	IsRead    bool  `json:"isRead"`
}

// DecodeCollection turns a store snapshot of a notifications subtree into a
// typed slice. A null snapshot is an empty collection.
func DecodeCollection(raw json.RawMessage) ([]Notification, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []Notification{}, nil
	}
	var byKey map[string]Notification
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(byKey))
	for _, n := range byKey {
		out = append(out, n)
	}
	return out, nil
}

// SortNewestFirst orders notifications by timestamp descending, the order the
// notification screen shows.
func SortNewestFirst(notifications []Notification) {
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].Timestamp > notifications[j].Timestamp
	})
}

// FormatDateLabel renders an appointment date as the human label the
// notification messages use: "today", "tomorrow", or a formatted date.
func FormatDateLabel(date, now time.Time) string {
	sameDay := func(a, b time.Time) bool {
		ay, am, ad := a.Date()
		by, bm, bd := b.Date()
		return ay == by && am == bm && ad == bd
	}
	switch {
	case sameDay(date, now):
		return "today"
	case sameDay(date, now.AddDate(0, 0, 1)):
		return "tomorrow"
	default:
		return date.Format("1/2/2006")
	}
}

// BookedMessage is the notification text for a new booking.
func BookedMessage(name, email, dateLabel string) string {
	return fmt.Sprintf("%s (%s) has successfully booked an appointment for %s. Please review the appointment details.", name, email, dateLabel)
}

// UpdatedMessage is the notification text for an edited booking.
func UpdatedMessage(name, email, dateLabel string) string {
	return fmt.Sprintf("%s (%s) has updated an appointment for %s. Please review the appointment details.", name, email, dateLabel)
}

// CancelledMessage is the notification text for a cancellation.
func CancelledMessage(name, email, dateLabel string) string {
	return fmt.Sprintf("%s (%s) has cancelled the appointment scheduled for %s.", name, email, dateLabel)
}

// Path returns the store path of uid's notification feed.
func Path(uid string) string { return "notifications/" + uid }

// TokenPath returns the store path of uid's registered device tokens.
func TokenPath(uid string) string { return "fcm-tokens/" + uid }
