package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type ListUsersOptions struct {
	Limit  *int
	Offset *int
}

type UpdateUserOptions struct {
	Email       *string
	DisplayName *string
	RoleNames   *[]string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// List returns all users, active or not, with roles and permissions loaded.
func (svc *Service) List(ctx context.Context, opts ListUsersOptions) ([]*models.User, int, error) {
	users := []*models.User{}
	q := svc.db.
		NewSelect().
		Model(&users).
		Relation("Roles").
		Relation("Roles.Permissions").
		Order("u.username ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return users, total, nil
}

// Retrieve fetches a single user by ID, regardless of active state.
func (svc *Service) Retrieve(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := svc.db.
		NewSelect().
		Model(user).
		Relation("Roles").
		Relation("Roles.Permissions").
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}

	return user, nil
}

// Update changes a user's profile fields and, when role names are given,
// replaces their role assignments.
func (svc *Service) Update(ctx context.Context, id int, opts UpdateUserOptions) (*models.User, error) {
	user, err := svc.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}

	if opts.Email != nil && *opts.Email != user.Email {
		taken, err := svc.db.
			NewSelect().
			Model((*models.User)(nil)).
			Where("u.email = ? COLLATE NOCASE", *opts.Email).
			Where("u.id != ?", id).
			Exists(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if taken {
			return nil, errcodes.Conflict("A user with that email already exists.")
		}
		user.Email = *opts.Email
	}
	if opts.DisplayName != nil {
		user.DisplayName = *opts.DisplayName
	}

	var roles []*models.Role
	if opts.RoleNames != nil {
		roles = []*models.Role{}
		err := svc.db.
			NewSelect().
			Model(&roles).
			Where("r.name IN (?)", bun.In(*opts.RoleNames)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if len(roles) != len(*opts.RoleNames) {
			return nil, errcodes.ValidationError("One or more role names are unknown.")
		}
	}

	err = svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user.UpdatedAt = time.Now()
		_, err := tx.
			NewUpdate().
			Model(user).
			Column("email", "display_name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if roles == nil {
			return nil
		}

		_, err = tx.
			NewDelete().
			Model((*models.UserRole)(nil)).
			Where("ur.user_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		for _, role := range roles {
			_, err = tx.
				NewInsert().
				Model(&models.UserRole{UserID: id, RoleID: role.ID}).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return svc.Retrieve(ctx, id)
}

// Deactivate disables a user's account. The last active administrator can't
// be deactivated, otherwise the server would be left unmanageable.
func (svc *Service) Deactivate(ctx context.Context, id int) (*models.User, error) {
	user, err := svc.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errcodes.Conflict("User is already deactivated.")
	}

	if user.IsAdmin() {
		others, err := svc.db.
			NewSelect().
			Model((*models.User)(nil)).
			Join("JOIN user_roles ur ON ur.user_id = u.id").
			Join("JOIN roles r ON r.id = ur.role_id").
			Where("r.name = ?", models.RoleAdministrator).
			Where("u.is_active").
			Where("u.id != ?", id).
			Count(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if others == 0 {
			return nil, errcodes.Conflict("The last active administrator can't be deactivated.")
		}
	}

	return svc.setActive(ctx, user, false)
}

// Reactivate re-enables a previously deactivated account.
func (svc *Service) Reactivate(ctx context.Context, id int) (*models.User, error) {
	user, err := svc.Retrieve(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return nil, errcodes.Conflict("User is already active.")
	}

	return svc.setActive(ctx, user, true)
}

func (svc *Service) setActive(ctx context.Context, user *models.User, active bool) (*models.User, error) {
	user.IsActive = active
	user.UpdatedAt = time.Now()
	_, err := svc.db.
		NewUpdate().
		Model(user).
		Column("is_active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return user, nil
}
