package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `bun:",nullzero" json:"username"`
	Email        string    `bun:",nullzero" json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash
	DisplayName  string    `json:"display_name"`
	IsActive     bool      `json:"is_active"`

	// Relations
	Roles []*Role `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
}

// HasPermission checks if any of the user's roles grants the named permission.
func (u *User) HasPermission(name string) bool {
	for _, role := range u.Roles {
		if role.HasPermission(name) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user holds the full admin permission.
func (u *User) IsAdmin() bool {
	return u.HasPermission(PermissionAdminFull)
}

// PermissionNames returns the union of permission names across all roles.
func (u *User) PermissionNames() []string {
	seen := map[string]struct{}{}
	names := make([]string, 0)
	for _, role := range u.Roles {
		for _, p := range role.Permissions {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names
}

type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID     int   `bun:",pk,nullzero" json:"id"`
	UserID int   `json:"user_id"`
	RoleID int   `json:"role_id"`
	User   *User `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Role   *Role `bun:"rel:belongs-to,join:role_id=id" json:"-"`
}
