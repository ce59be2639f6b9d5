package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        int64
	Username  string
	Email     string
	PassHash  string
	Role      string
	Banned    bool
	BanReason string

	// ResetCodeHash is the sha256 of the pending reset code, empty when none.
	ResetCodeHash      string
	ResetCodeExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is what the gateway attaches to a request or connection.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (u User) Identity() Identity {
	return Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// TokenPair is immutable once issued; rotation produces a new value.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

const (
	PurposeWelcome   = "welcome"
	PurposeResetCode = "reset_code"
	PurposeBanned    = "banned"
	PurposeUnbanned  = "unbanned"
)

// Message is the notification envelope published to the mail queue.
type Message struct {
	Email    string `json:"to"`
	Username string `json:"username"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Purpose  string `json:"purpose"`
}
