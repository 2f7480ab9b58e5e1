package api

import "github.com/arogyahq/arogya/types"

// ChatRequest is the POST /chat and /chat/stream body.
type ChatRequest struct {
	Text      string             `json:"text"`
	Lang      string             `json:"lang,omitempty"`
	Profile   types.ProfileInput `json:"profile,omitempty"`
	Debug     bool               `json:"debug,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	// CustomerID, when present, must match the token subject.
	CustomerID string `json:"customer_id,omitempty"`
}

// RegisterRequest is the POST /auth/register body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the POST /auth/refresh body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the POST /auth/logout body.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// FeedbackRequest is the POST /message/{mid}/feedback body.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CustomerResponse is the public view of an account.
type CustomerResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// IPCheckResponse is the GET /auth/check-ip body.
type IPCheckResponse struct {
	IP               string `json:"ip"`
	Known            bool   `json:"known"`
	VisitCount       int    `json:"visit_count"`
	HasAuthenticated bool   `json:"has_authenticated"`
	FirstSeen        string `json:"first_seen,omitempty"`
	LastSeen         string `json:"last_seen,omitempty"`
}

// ErrorBody is the error payload inside ErrorResponse.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
