package database

import (
	"time"
)

// Customer is an account owner. Role is "user" or "admin".
type Customer struct {
	ID           string     `gorm:"column:id;primaryKey" json:"id"`
	Email        string     `gorm:"column:email;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"column:password_hash" json:"-"`
	Role         string     `gorm:"column:role;default:user" json:"role"`
	IsActive     bool       `gorm:"column:is_active;default:true" json:"is_active"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName maps Customer onto the customers table.
func (Customer) TableName() string { return "customers" }

// CustomerProfile is the 1:1 medical profile, updated independently of the
// account record. MedicalConditions is a JSON array of lowercase tokens.
type CustomerProfile struct {
	CustomerID        string    `gorm:"column:customer_id;primaryKey" json:"customer_id"`
	Age               *int      `gorm:"column:age" json:"age,omitempty"`
	Sex               string    `gorm:"column:sex" json:"sex,omitempty"`
	Diabetes          bool      `gorm:"column:diabetes" json:"diabetes"`
	Hypertension      bool      `gorm:"column:hypertension" json:"hypertension"`
	Pregnancy         bool      `gorm:"column:pregnancy" json:"pregnancy"`
	City              string    `gorm:"column:city" json:"city,omitempty"`
	MedicalConditions string    `gorm:"column:medical_conditions;type:text" json:"medical_conditions,omitempty"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName maps CustomerProfile onto the customer_profiles table.
func (CustomerProfile) TableName() string { return "customer_profiles" }

// RefreshToken backs the /refresh flow. Tokens are opaque strings.
type RefreshToken struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	Token      string    `gorm:"column:token;uniqueIndex" json:"-"`
	CustomerID string    `gorm:"column:customer_id;index" json:"customer_id"`
	ExpiresAt  time.Time `gorm:"column:expires_at" json:"expires_at"`
	Revoked    bool      `gorm:"column:revoked" json:"revoked"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName maps RefreshToken onto the refresh_tokens table.
func (RefreshToken) TableName() string { return "refresh_tokens" }

// ChatSession groups the messages of one conversation.
type ChatSession struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	CustomerID string    `gorm:"column:customer_id;index:idx_sessions_customer_created" json:"customer_id"`
	Language   string    `gorm:"column:language" json:"language,omitempty"`
	Metadata   string    `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_sessions_customer_created" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName maps ChatSession onto the chat_sessions table.
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatMessage is one immutable turn. The user's original question is copied
// onto both the user and the assistant record for traceability. SafetyData,
// Facts, Citations and Metadata hold serialized JSON.
type ChatMessage struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	SessionID   string    `gorm:"column:session_id;index:idx_messages_session_created" json:"session_id"`
	Role        string    `gorm:"column:role" json:"role"`
	MessageText string    `gorm:"column:message_text;type:text" json:"message_text"`
	Language    string    `gorm:"column:language" json:"language,omitempty"`
	Route       string    `gorm:"column:route" json:"route,omitempty"`
	Answer      string    `gorm:"column:answer;type:text" json:"answer,omitempty"`
	SafetyData  string    `gorm:"column:safety_data;type:text" json:"safety_data,omitempty"`
	Facts       string    `gorm:"column:facts;type:text" json:"facts,omitempty"`
	Citations   string    `gorm:"column:citations;type:text" json:"citations,omitempty"`
	Metadata    string    `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_messages_session_created" json:"created_at"`
}

// TableName maps ChatMessage onto the chat_messages table.
func (ChatMessage) TableName() string { return "chat_messages" }

// MessageFeedback is a thumbs-style rating on one assistant message.
type MessageFeedback struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	MessageID string    `gorm:"column:message_id;index" json:"message_id"`
	Rating    int       `gorm:"column:rating" json:"rating"`
	Comment   string    `gorm:"column:comment;type:text" json:"comment,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName maps MessageFeedback onto the message_feedback table.
func (MessageFeedback) TableName() string { return "message_feedback" }

// IPAddress is an upserted reputation observation. Not security-sensitive.
type IPAddress struct {
	IP               string    `gorm:"column:ip_address;primaryKey" json:"ip_address"`
	FirstSeen        time.Time `gorm:"column:first_seen" json:"first_seen"`
	LastSeen         time.Time `gorm:"column:last_seen" json:"last_seen"`
	VisitCount       int       `gorm:"column:visit_count" json:"visit_count"`
	HasAuthenticated bool      `gorm:"column:has_authenticated" json:"has_authenticated"`
	CustomerID       *string   `gorm:"column:customer_id" json:"customer_id,omitempty"`
}

// TableName maps IPAddress onto the ip_addresses table.
func (IPAddress) TableName() string { return "ip_addresses" }
