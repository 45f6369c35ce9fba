package domain

import "time"

// Invitation is a shareable link created by SenderID.
type Invitation struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Sender    Fragment  `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JoinRequestStatus is the lifecycle state of a join request.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestAccepted JoinRequestStatus = "accepted"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest asks the invitation's sender (the receiver) to befriend the
// requester. Both sides' fragments are embedded while the request is pending.
type JoinRequest struct {
	ID           string            `json:"id"`
	InvitationID string            `json:"invitation_id"`
	RequesterID  string            `json:"requester_id"`
	Requester    Fragment          `json:"requester"`
	ReceiverID   string            `json:"receiver_id"`
	Receiver     Fragment          `json:"receiver"`
	Status       JoinRequestStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
