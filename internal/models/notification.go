package models

import "time"

// NotificationType tags the event class a notification was born from.
type NotificationType string

const (
	NotificationNewCircular     NotificationType = "new_circular"
	NotificationNewNote         NotificationType = "new_note"
	NotificationMarksUpdate     NotificationType = "marks_update"
	NotificationTimetableUpdate NotificationType = "timetable_update"
)

// Notification is a durable per-user message. Rows are inserted before any
// live push so disconnected clients pick them up on the next poll.
type Notification struct {
	ID        int64            `db:"id" json:"notification_id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Message   string           `db:"message" json:"message"`
	RelatedID *int64           `db:"related_id" json:"related_id,omitempty"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
