package friendship

import "time"

type UserSummary struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"displayName"`
}

// Friendship rows always hold the lexicographically smaller id in UserID1.
type Friendship struct {
	UserID1   string    `json:"userID1" db:"user_id1"`
	UserID2   string    `json:"userID2" db:"user_id2"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type IncomingRequest struct {
	Sender UserSummary `json:"sender"`
}

type OutgoingRequest struct {
	Receiver UserSummary `json:"receiver"`
}

type RequestList struct {
	Incoming []IncomingRequest `json:"incoming"`
	Outgoing []OutgoingRequest `json:"outgoing"`
}

type CreateRequestBody struct {
	UserID1 string `json:"userID1"`
	UserID2 string `json:"userID2"`
}

type ResolveRequestBody struct {
	RequesterID string `json:"requesterID"`
	ReceiverID  string `json:"receiverID"`
	Accept      bool   `json:"accept"`
}
