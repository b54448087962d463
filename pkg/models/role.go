package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Permission names. These are seeded at migration time; the catalog is
// extensible but these names are stable.
const (
	PermissionBooksRead     = "books.read"
	PermissionBooksWrite    = "books.write"
	PermissionBooksManage   = "books.manage"
	PermissionAuthorsRead   = "authors.read"
	PermissionTagsRead      = "tags.read"
	PermissionTagsWrite     = "tags.write"
	PermissionProgressWrite = "progress.write"
	PermissionContentNSFW   = "content.nsfw"
	PermissionAdminFull     = "admin.full"
)

// Predefined role names.
const (
	RoleAdministrator = "administrator"
	RoleMember        = "member"
)

type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `bun:",nullzero" json:"name"`
	Description string    `json:"description"`

	Permissions []*Permission `bun:"m2m:role_permissions,join:Role=Permission" json:"permissions,omitempty"`
}

// HasPermission checks if the role grants the named permission.
func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID           int    `bun:",pk,nullzero" json:"id"`
	Name         string `bun:",nullzero" json:"name"`
	ResourceType string `json:"resource_type"`
	Description  string `json:"description"`
}

type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	ID           int         `bun:",pk,nullzero" json:"id"`
	RoleID       int         `json:"role_id"`
	PermissionID int         `json:"permission_id"`
	Role         *Role       `bun:"rel:belongs-to,join:role_id=id" json:"-"`
	Permission   *Permission `bun:"rel:belongs-to,join:permission_id=id" json:"-"`
}
