package models

import "github.com/uptrace/bun"

// RegisterJoinModels registers the m2m join tables with bun. Must be called
// once per DB handle before any query that traverses these relations.
func RegisterJoinModels(db *bun.DB) {
	db.RegisterModel(
		(*UserRole)(nil),
		(*RolePermission)(nil),
		(*BookTag)(nil),
	)
}
