package notification

import (
	"fmt"
	"strings"

	"github.com/pscheid92/leavenotify/internal/domain"
)

const (
	fallbackMessage   = "New notification received"
	fallbackAlertBody = "Check the application for details"
)

// Render produces the one-line text shown for a notification frame.
// Missing fields fall back to neutral words instead of empty gaps.
func Render(msg domain.Message) string {
	var data domain.NotificationData
	if msg.Data != nil {
		data = *msg.Data
	}
	requestType := or(data.RequestType, "leave")
	status := or(data.Status, "updated")
	reviewer := or(data.ReviewerName, "a reviewer")

	switch msg.Type {
	case domain.MessageManagerNotification:
		switch msg.NotificationType {
		case domain.NotificationNewLeaveRequest:
			return fmt.Sprintf("New %s request from %s", requestType, or(data.UserName, "a user"))
		case domain.NotificationLeaveRequestStatus:
			return fmt.Sprintf("%s's %s request was %s by %s", or(data.UserName, "A user"), requestType, status, reviewer)
		}
		return fallbackMessage
	case domain.MessageNotification:
		return fmt.Sprintf("Your %s request was %s by %s", requestType, status, reviewer)
	}
	return fallbackMessage
}

// AlertBody is the secondary line of a system alert.
func AlertBody(data *domain.NotificationData) string {
	if data != nil && data.Reason != "" {
		return data.Reason
	}
	return fallbackAlertBody
}

// IsAuthenticationError is the substring heuristic the backend's error
// frames are matched with. The server sends free text, so this stays fuzzy.
func IsAuthenticationError(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "authentication") || strings.Contains(lower, "token")
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
