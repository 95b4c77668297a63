package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles carried in operator tokens.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Operator is a city staff account allowed to sign in and run imports.
type Operator struct {
	bun.BaseModel `bun:"table:operators,alias:o"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,unique,notnull" json:"email"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	TokenVersion  int        `bun:"token_version,notnull,default:0" json:"token_version"`
	Roles         []string   `bun:"roles" json:"roles"`
	Provider      string     `bun:"provider" json:"provider"`
	Name          string     `bun:"name" json:"name"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	LastLoginAt   *time.Time `bun:"last_login_at" json:"last_login_at"`
}

// HasRole reports whether the operator carries role.
func (o *Operator) HasRole(role string) bool {
	for _, r := range o.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OperatorID    uuid.UUID `bun:"operator_id,type:uuid" json:"operator_id"`
	JTI           string    `bun:"jti" json:"jti"`
	TokenHash     string    `bun:"token_hash" json:"token_hash"`
	DeviceInfo    *string   `bun:"device_info" json:"device_info"`
	Revoked       bool      `bun:"revoked" json:"revoked"`
	CreatedAt     time.Time `bun:"created_at" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at" json:"expires_at"`
}
