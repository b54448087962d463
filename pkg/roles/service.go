package roles

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type CreateRoleOptions struct {
	Name            string
	Description     string
	PermissionNames []string
}

type UpdateRoleOptions struct {
	Description     *string
	PermissionNames *[]string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// List returns the role catalog with permissions loaded.
func (svc *Service) List(ctx context.Context) ([]*models.Role, error) {
	roles := []*models.Role{}
	err := svc.db.
		NewSelect().
		Model(&roles).
		Relation("Permissions").
		Order("r.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return roles, nil
}

// Retrieve fetches a role by ID with its permissions.
func (svc *Service) Retrieve(ctx context.Context, id int) (*models.Role, error) {
	role := &models.Role{}
	err := svc.db.
		NewSelect().
		Model(role).
		Relation("Permissions").
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Role")
		}
		return nil, errors.WithStack(err)
	}

	return role, nil
}

// Create adds a role granting the named permissions.
func (svc *Service) Create(ctx context.Context, opts CreateRoleOptions) (*models.Role, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errcodes.ValidationError("Role name can't be empty.")
	}

	exists, err := svc.db.
		NewSelect().
		Model((*models.Role)(nil)).
		Where("r.name = ? COLLATE NOCASE", name).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if exists {
		return nil, errcodes.Conflict("A role with that name already exists.")
	}

	permissions, err := svc.permissionsByName(ctx, opts.PermissionNames)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	role := &models.Role{
		CreatedAt:   now,
		UpdatedAt:   now,
		Name:        name,
		Description: opts.Description,
	}
	err = svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(role).
			Returning("id").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		return svc.grantPermissions(ctx, tx, role.ID, permissions)
	})
	if err != nil {
		return nil, err
	}

	return svc.Retrieve(ctx, role.ID)
}

// Update changes a role's description and, when permission names are given,
// replaces its grants. Predefined roles keep their grants fixed.
func (svc *Service) Update(ctx context.Context, id int, opts UpdateRoleOptions) (*models.Role, error) {
	role, err := svc.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.PermissionNames != nil && isPredefined(role.Name) {
		return nil, errcodes.Conflict("Predefined role grants can't be changed.")
	}

	var permissions []*models.Permission
	if opts.PermissionNames != nil {
		permissions, err = svc.permissionsByName(ctx, *opts.PermissionNames)
		if err != nil {
			return nil, err
		}
	}

	err = svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if opts.Description != nil {
			role.Description = *opts.Description
		}
		role.UpdatedAt = time.Now()
		_, err := tx.
			NewUpdate().
			Model(role).
			Column("description", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if opts.PermissionNames == nil {
			return nil
		}

		_, err = tx.
			NewDelete().
			Model((*models.RolePermission)(nil)).
			Where("rp.role_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		return svc.grantPermissions(ctx, tx, id, permissions)
	})
	if err != nil {
		return nil, err
	}

	return svc.Retrieve(ctx, id)
}

// Delete removes a custom role and its assignments. The predefined
// administrator and member roles can't be deleted.
func (svc *Service) Delete(ctx context.Context, id int) error {
	role, err := svc.Retrieve(ctx, id)
	if err != nil {
		return err
	}
	if isPredefined(role.Name) {
		return errcodes.Conflict("Predefined roles can't be deleted.")
	}

	return svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.UserRole)(nil)).
			Where("ur.role_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.RolePermission)(nil)).
			Where("rp.role_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.Role)(nil)).
			Where("r.id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

// ListPermissions returns the permission catalog.
func (svc *Service) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	permissions := []*models.Permission{}
	err := svc.db.
		NewSelect().
		Model(&permissions).
		Order("p.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return permissions, nil
}

func (svc *Service) permissionsByName(ctx context.Context, names []string) ([]*models.Permission, error) {
	if len(names) == 0 {
		return nil, nil
	}

	permissions := []*models.Permission{}
	err := svc.db.
		NewSelect().
		Model(&permissions).
		Where("p.name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(permissions) != len(names) {
		return nil, errcodes.ValidationError("One or more permission names are unknown.")
	}

	return permissions, nil
}

func (svc *Service) grantPermissions(ctx context.Context, tx bun.Tx, roleID int, permissions []*models.Permission) error {
	for _, p := range permissions {
		_, err := tx.
			NewInsert().
			Model(&models.RolePermission{RoleID: roleID, PermissionID: p.ID}).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func isPredefined(name string) bool {
	return name == models.RoleAdministrator || name == models.RoleMember
}
