package tags

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

type ListTagsOptions struct {
	Category *string
	Limit    *int
	Offset   *int
}

type CreateTagOptions struct {
	Name               string
	Category           string
	RequiresPermission *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// List returns the tag catalog ordered by category then name. Every tag
// carries a book_count of how many non-deleted books reference it.
func (svc *Service) List(ctx context.Context, opts ListTagsOptions) ([]*models.Tag, int, error) {
	tags := []*models.Tag{}
	q := svc.db.
		NewSelect().
		Model(&tags).
		ColumnExpr("t.*").
		ColumnExpr(`(
			SELECT count(*)
			FROM book_tags bt
			JOIN books b ON b.id = bt.book_id
			WHERE bt.tag_id = t.id AND b.status != ?
		) AS book_count`, models.BookStatusDeleted).
		Order("t.category ASC").
		Order("t.name ASC")

	if opts.Category != nil {
		q = q.Where("t.category = ?", *opts.Category)
	}
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

	return tags, total, nil
}

// Categories returns the distinct tag categories present in the catalog.
func (svc *Service) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := svc.db.
		NewSelect().
		Model((*models.Tag)(nil)).
		ColumnExpr("DISTINCT t.category").
		Order("t.category ASC").
		Scan(ctx, &categories)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return categories, nil
}

// Retrieve fetches a single tag by ID.
func (svc *Service) Retrieve(ctx context.Context, id int) (*models.Tag, error) {
	tag := &models.Tag{}
	err := svc.db.
		NewSelect().
		Model(tag).
		Where("t.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Tag")
		}
		return nil, errors.WithStack(err)
	}

	return tag, nil
}

// Create adds a new tag to the catalog. Names are unique regardless of case.
func (svc *Service) Create(ctx context.Context, opts CreateTagOptions) (*models.Tag, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errcodes.ValidationError("Tag name can't be empty.")
	}

	exists, err := svc.db.
		NewSelect().
		Model((*models.Tag)(nil)).
		Where("t.name = ? COLLATE NOCASE", name).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if exists {
		return nil, errcodes.Conflict("A tag with that name already exists.")
	}

	now := time.Now()
	tag := &models.Tag{
		CreatedAt:          now,
		UpdatedAt:          now,
		Name:               name,
		Category:           opts.Category,
		RequiresPermission: opts.RequiresPermission,
	}
	_, err = svc.db.
		NewInsert().
		Model(tag).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return tag, nil
}

// Delete removes a non-seeded tag. Applications and preferences referencing
// the tag go with it.
func (svc *Service) Delete(ctx context.Context, id int) error {
	tag, err := svc.Retrieve(ctx, id)
	if err != nil {
		return err
	}
	if tag.IsSeeded {
		return errcodes.Conflict("Seeded tags can't be deleted.")
	}

	return svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.BookTag)(nil)).
			Where("bt.tag_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.UserTagPreference)(nil)).
			Where("utp.tag_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.Tag)(nil)).
			Where("t.id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

// SetPreference records the user's allow or deny state for a tag, replacing
// any prior state.
func (svc *Service) SetPreference(ctx context.Context, user *models.User, tagID int, state string) (*models.UserTagPreference, error) {
	if _, err := svc.Retrieve(ctx, tagID); err != nil {
		return nil, err
	}

	now := time.Now()
	pref := &models.UserTagPreference{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    user.ID,
		TagID:     tagID,
		State:     state,
	}
	_, err := svc.db.
		NewInsert().
		Model(pref).
		On("CONFLICT (user_id, tag_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return pref, nil
}

// ClearPreference removes the user's stored state for a tag, restoring the
// default visibility behavior.
func (svc *Service) ClearPreference(ctx context.Context, user *models.User, tagID int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.UserTagPreference)(nil)).
		Where("utp.user_id = ?", user.ID).
		Where("utp.tag_id = ?", tagID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errcodes.NotFound("Tag preference")
	}

	return nil
}

// ListPreferences returns the user's stored tag preferences with tags attached.
func (svc *Service) ListPreferences(ctx context.Context, user *models.User) ([]*models.UserTagPreference, error) {
	prefs := []*models.UserTagPreference{}
	err := svc.db.
		NewSelect().
		Model(&prefs).
		Relation("Tag").
		Where("utp.user_id = ?", user.ID).
		Order("utp.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return prefs, nil
}
