package domain

import "context"

type LeaveRequestStatus string

const (
	StatusPending  LeaveRequestStatus = "pending"
	StatusApproved LeaveRequestStatus = "approved"
	StatusRejected LeaveRequestStatus = "rejected"
)

type LeaveRequest struct {
	ID         int                `json:"id"`
	UserID     int                `json:"user_id"`
	StartDate  string             `json:"start_date,omitempty"`
	EndDate    string             `json:"end_date,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Status     LeaveRequestStatus `json:"status"`
	ReviewedBy *int               `json:"reviewed_by,omitempty"`
	ReviewedAt string             `json:"reviewed_at,omitempty"`
	CreatedAt  string             `json:"created_at,omitempty"`
	UpdatedAt  string             `json:"updated_at,omitempty"`
}

// LeaveRequestSource fetches the current list of leave requests.
type LeaveRequestSource interface {
	LeaveRequests(ctx context.Context) ([]LeaveRequest, error)
}

// LeaveRequestCache is the business-data cache refreshed by push notifications.
type LeaveRequestCache interface {
	Refresh()
	Highlight(requestID int)
}
