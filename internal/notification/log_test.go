package notification

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(msg string) domain.NotificationRecord {
	return domain.NotificationRecord{ID: uuid.New(), Message: msg}
}

func TestLog_NewestFirstAndCapped(t *testing.T) {
	l := NewLog(3)
	for _, m := range []string{"a", "b", "c", "d"} {
		l.Add(record(m))
	}

	got := l.Notifications()
	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].Message)
	assert.Equal(t, "b", got[2].Message)
}

func TestLog_EvictsReadAndUnreadAlike(t *testing.T) {
	l := NewLog(2)
	first := record("first")
	l.Add(first)
	require.NoError(t, l.MarkAsRead(first.ID))
	l.Add(record("second"))
	l.Add(record("third"))

	assert.ErrorIs(t, l.MarkAsRead(first.ID), domain.ErrNotFound)
	assert.Equal(t, 2, l.UnreadCount())
}

func TestLog_DefaultCapacity(t *testing.T) {
	l := NewLog(0)
	for range 60 {
		l.Add(record("x"))
	}
	assert.Equal(t, DefaultLogCapacity, l.Len())
}

func TestLog_ReadRemoveClear(t *testing.T) {
	l := NewLog(10)
	a, b := record("a"), record("b")
	l.Add(a)
	l.Add(b)
	assert.Equal(t, 2, l.UnreadCount())
	assert.True(t, l.HasNotifications())

	require.NoError(t, l.MarkAsRead(a.ID))
	assert.Equal(t, 1, l.UnreadCount())

	l.MarkAllAsRead()
	assert.Equal(t, 0, l.UnreadCount())

	require.NoError(t, l.Remove(a.ID))
	assert.ErrorIs(t, l.Remove(a.ID), domain.ErrNotFound)
	assert.Equal(t, 1, l.Len())

	l.Clear()
	assert.False(t, l.HasNotifications())
}

func TestLog_NotificationsIsACopy(t *testing.T) {
	l := NewLog(10)
	l.Add(record("a"))
	got := l.Notifications()
	got[0].Read = true
	assert.Equal(t, 1, l.UnreadCount())
}
