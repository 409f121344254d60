package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User represents a registered learner
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never expose
	Preferences  JSONB      `json:"preferences" db:"preferences"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	Role         string     `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at" db:"last_login_at"`
}

// Preferences is the typed view of the preferences JSONB column
type Preferences struct {
	Language   string   `json:"language"`
	MathTopics []string `json:"math_topics"`
}

// GetPreferences decodes the preferences column, defaulting the language to English
func (u *User) GetPreferences() Preferences {
	prefs := Preferences{Language: "en"}
	if u.Preferences == nil {
		return prefs
	}
	if lang, ok := u.Preferences["language"].(string); ok && lang != "" {
		prefs.Language = lang
	}
	if topics, ok := u.Preferences["math_topics"].([]interface{}); ok {
		for _, t := range topics {
			if s, ok := t.(string); ok {
				prefs.MathTopics = append(prefs.MathTopics, s)
			}
		}
	}
	return prefs
}

// TopicProgression is a user's mastery record for a single topic
type TopicProgression struct {
	UserID        uuid.UUID `json:"-" db:"user_id"`
	TopicID       string    `json:"topic_id" db:"topic_id"`
	Progress      int       `json:"progress" db:"progress"`
	Revision      bool      `json:"revision" db:"revision"`
	LastStudyTime time.Time `json:"last_study_time" db:"last_study_time"`
	Notes         string    `json:"notes" db:"notes"`
}

// UserSession represents an active authentication session
type UserSession struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	UserID           uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash        string     `json:"-" db:"token_hash"`
	RefreshTokenHash string     `json:"-" db:"refresh_token_hash"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at" db:"refresh_expires_at"`
	IPAddress        string     `json:"ip_address" db:"ip_address"`
	UserAgent        string     `json:"user_agent" db:"user_agent"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	LastActivity     time.Time  `json:"last_activity" db:"last_activity"`
	RevokedAt        *time.Time `json:"revoked_at" db:"revoked_at"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       *uuid.UUID `json:"user_id" db:"user_id"`
	Action       string     `json:"action" db:"action"`
	ResourceType string     `json:"resource_type" db:"resource_type"`
	ResourceID   string     `json:"resource_id" db:"resource_id"`
	IPAddress    string     `json:"ip_address" db:"ip_address"`
	UserAgent    string     `json:"user_agent" db:"user_agent"`
	Metadata     JSONB      `json:"metadata" db:"metadata"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// UserRole constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserContext represents the authenticated caller for authorization decisions
type UserContext struct {
	UserID   uuid.UUID
	Username string
	Email    string
	Role     string
}

// IsAdmin checks if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// JSONB type for JSON columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}
