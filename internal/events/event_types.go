package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
	EventEmailVerified  EventType = "email_verified"
	EventUserLoggedOut  EventType = "user_logged_out"
)

// Event represents a domain event emitted by the auth service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email            string `json:"email"`
	Role             string `json:"role"`
	VerificationSent bool   `json:"verification_sent"`
}

// UserLoggedInPayload payload.
type UserLoggedInPayload struct {
	Email string `json:"email"`
}

// EmailVerifiedPayload payload.
type EmailVerifiedPayload struct {
	Email string `json:"email,omitempty"`
}

// UserLoggedOutPayload payload.
type UserLoggedOutPayload struct {
	TokenRevoked bool `json:"token_revoked"`
}
