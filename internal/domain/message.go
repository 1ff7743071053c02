package domain

import "encoding/json"

type MessageType string

const (
	MessageConnectionEstablished MessageType = "connection_established"
	MessageNotification          MessageType = "notification"
	MessageManagerNotification   MessageType = "manager_notification"
	MessagePong                  MessageType = "pong"
	MessageConnectedUsers        MessageType = "connected_users"
	MessageError                 MessageType = "error"

	MessagePing              MessageType = "ping"
	MessageGetConnectedUsers MessageType = "get_connected_users"
)

const (
	NotificationNewLeaveRequest    = "new_leave_request"
	NotificationLeaveRequestStatus = "leave_request_status_changed"
)

// Message is one JSON frame exchanged over the notification connection.
type Message struct {
	Type             MessageType       `json:"type"`
	Message          string            `json:"message,omitempty"`
	NotificationType string            `json:"notification_type,omitempty"`
	Data             *NotificationData `json:"data,omitempty"`
	Timestamp        string            `json:"timestamp,omitempty"`
	Users            []ConnectedUser   `json:"users,omitempty"`
}

// NotificationData is the payload of notification frames. Raw keeps the frame
// as received so fields unknown to this client survive re-encoding.
type NotificationData struct {
	LeaveRequestID int    `json:"leave_request_id,omitempty"`
	Status         string `json:"status,omitempty"`
	RequestType    string `json:"request_type,omitempty"`
	ReviewerName   string `json:"reviewer_name,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (d *NotificationData) UnmarshalJSON(b []byte) error {
	type plain NotificationData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = NotificationData(p)
	d.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (d NotificationData) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	type plain NotificationData
	return json.Marshal(plain(d))
}

type ConnectedUser struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
