package notification

import (
	"testing"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		msg  domain.Message
		want string
	}{
		{
			name: "user notification",
			msg: domain.Message{Type: domain.MessageNotification, Data: &domain.NotificationData{
				RequestType: "vacation", Status: "approved", ReviewerName: "Maria",
			}},
			want: "Your vacation request was approved by Maria",
		},
		{
			name: "manager new request",
			msg: domain.Message{Type: domain.MessageManagerNotification, NotificationType: domain.NotificationNewLeaveRequest,
				Data: &domain.NotificationData{RequestType: "sick", UserName: "Tom"}},
			want: "New sick request from Tom",
		},
		{
			name: "manager new request without user",
			msg: domain.Message{Type: domain.MessageManagerNotification, NotificationType: domain.NotificationNewLeaveRequest,
				Data: &domain.NotificationData{RequestType: "sick"}},
			want: "New sick request from a user",
		},
		{
			name: "manager status change",
			msg: domain.Message{Type: domain.MessageManagerNotification, NotificationType: domain.NotificationLeaveRequestStatus,
				Data: &domain.NotificationData{RequestType: "vacation", Status: "rejected", ReviewerName: "Maria", UserName: "Tom"}},
			want: "Tom's vacation request was rejected by Maria",
		},
		{
			name: "manager status change without user",
			msg: domain.Message{Type: domain.MessageManagerNotification, NotificationType: domain.NotificationLeaveRequestStatus,
				Data: &domain.NotificationData{RequestType: "vacation", Status: "rejected", ReviewerName: "Maria"}},
			want: "A user's vacation request was rejected by Maria",
		},
		{
			name: "manager unknown category",
			msg:  domain.Message{Type: domain.MessageManagerNotification, NotificationType: "something_else"},
			want: "New notification received",
		},
		{
			name: "user notification without data",
			msg:  domain.Message{Type: domain.MessageNotification},
			want: "Your leave request was updated by a reviewer",
		},
		{
			name: "other type",
			msg:  domain.Message{Type: "mystery"},
			want: "New notification received",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.msg))
		})
	}
}

func TestAlertBody(t *testing.T) {
	assert.Equal(t, "Doctor appointment", AlertBody(&domain.NotificationData{Reason: "Doctor appointment"}))
	assert.Equal(t, "Check the application for details", AlertBody(&domain.NotificationData{}))
	assert.Equal(t, "Check the application for details", AlertBody(nil))
}

func TestIsAuthenticationError(t *testing.T) {
	assert.True(t, IsAuthenticationError("Authentication failed"))
	assert.True(t, IsAuthenticationError("invalid TOKEN"))
	assert.True(t, IsAuthenticationError("Token has expired"))
	assert.False(t, IsAuthenticationError("Unknown message type"))
	assert.False(t, IsAuthenticationError(""))
}
