package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the read-only view of an account owned by the surrounding application.
type User struct {
	UserID    string    `json:"id" dynamodbav:"user_id"`
	Phone     *string   `json:"phone" dynamodbav:"phone"`
	Role      string    `json:"role" dynamodbav:"role"`
	IsActive  bool      `json:"is_active" dynamodbav:"is_active"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

// SessionStatus is the outcome of a session validity check.
type SessionStatus struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

const ReasonDeactivated = "deactivated"
