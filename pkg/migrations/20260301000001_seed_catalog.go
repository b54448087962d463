package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Seed data for roles, the permission catalog, role grants, and the baseline
// tag catalog. Names are stable; code refers to them by constant.
func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			INSERT INTO roles (name, description) VALUES
				('administrator', 'Full access to the server, including user management'),
				('member', 'Browse, read, and track progress in the library')
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			INSERT INTO permissions (name, resource_type, description) VALUES
				('books.read', 'books', 'Browse and stream visible books'),
				('books.write', 'books', 'Tag, archive, and unarchive books'),
				('books.manage', 'books', 'Trigger scans and archive reconciliation'),
				('authors.read', 'authors', 'Browse authors'),
				('tags.read', 'tags', 'Browse the tag catalog'),
				('tags.write', 'tags', 'Manage own tag preferences'),
				('progress.write', 'progress', 'Track reading progress'),
				('content.nsfw', 'tags', 'See books carrying NSFW-rated tags'),
				('admin.full', 'admin', 'Administrative access to users, roles, and settings')
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// administrator gets the whole catalog; member gets the everyday set.
		_, err = db.Exec(`
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p WHERE r.name = 'administrator'
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT r.id, p.id FROM roles r, permissions p
			WHERE r.name = 'member'
			AND p.name IN ('books.read', 'authors.read', 'tags.read', 'tags.write', 'progress.write')
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			INSERT INTO tags (name, category, requires_permission, is_seeded) VALUES
				('EPUB', 'format', NULL, TRUE),
				('PDF', 'format', NULL, TRUE),
				('MOBI', 'format', NULL, TRUE),
				('AZW', 'format', NULL, TRUE),
				('AZW3', 'format', NULL, TRUE),
				('CBZ', 'format', NULL, TRUE),
				('CBR', 'format', NULL, TRUE),
				('DJVU', 'format', NULL, TRUE),
				('Fiction', 'genre', NULL, TRUE),
				('Non-Fiction', 'genre', NULL, TRUE),
				('Science Fiction', 'genre', NULL, TRUE),
				('Fantasy', 'genre', NULL, TRUE),
				('Mystery', 'genre', NULL, TRUE),
				('Romance', 'genre', NULL, TRUE),
				('Horror', 'genre', NULL, TRUE),
				('Biography', 'genre', NULL, TRUE),
				('NSFW', 'content-rating', 'content.nsfw', TRUE)
`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DELETE FROM tags WHERE is_seeded`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DELETE FROM role_permissions`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DELETE FROM permissions`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DELETE FROM roles`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
