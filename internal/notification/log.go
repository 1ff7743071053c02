package notification

import (
	"github.com/google/uuid"
	"github.com/pscheid92/leavenotify/internal/domain"
)

// DefaultLogCapacity bounds the notification log.
const DefaultLogCapacity = 50

// Log is a newest-first list of notification records. Oldest entries are
// evicted when full, read or not. Not safe for concurrent use; the
// dispatcher only touches it on the loop.
type Log struct {
	capacity int
	records  []domain.NotificationRecord
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{capacity: capacity}
}

func (l *Log) Add(r domain.NotificationRecord) {
	l.records = append([]domain.NotificationRecord{r}, l.records...)
	if len(l.records) > l.capacity {
		l.records = l.records[:l.capacity]
	}
}

// Notifications returns a copy, newest first.
func (l *Log) Notifications() []domain.NotificationRecord {
	out := make([]domain.NotificationRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Log) Len() int { return len(l.records) }

func (l *Log) HasNotifications() bool { return len(l.records) > 0 }

func (l *Log) UnreadCount() int {
	n := 0
	for _, r := range l.records {
		if !r.Read {
			n++
		}
	}
	return n
}

func (l *Log) MarkAsRead(id uuid.UUID) error {
	for i := range l.records {
		if l.records[i].ID == id {
			l.records[i].Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (l *Log) MarkAllAsRead() {
	for i := range l.records {
		l.records[i].Read = true
	}
}

func (l *Log) Remove(id uuid.UUID) error {
	for i := range l.records {
		if l.records[i].ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (l *Log) Clear() {
	l.records = nil
}
