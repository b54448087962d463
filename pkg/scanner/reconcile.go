package scanner

import (
	"context"
	"os"

	"github.com/dustlibrary/dust/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// ReconcileArchives brings book statuses back in line with the filesystem.
// Active books whose files vanished are archived, archived books whose files
// returned are restored, and books archived beyond the retention window are
// removed for good along with their tag rows and reading progress.
func (svc *Service) ReconcileArchives(ctx context.Context) (int, int, int, error) {
	log := logger.FromContext(ctx)

	archived, err := svc.archiveMissing(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	restored, err := svc.restoreFound(ctx)
	if err != nil {
		return archived, 0, 0, err
	}
	deleted, err := svc.purgeExpired(ctx)
	if err != nil {
		return archived, restored, 0, err
	}

	log.Info("archive reconciliation finished", logger.Data{
		"archived": archived,
		"restored": restored,
		"deleted":  deleted,
	})
	return archived, restored, deleted, nil
}

func (svc *Service) archiveMissing(ctx context.Context) (int, error) {
	books := []*models.Book{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Where("b.status = ?", models.BookStatusActive).
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	archived := 0
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return archived, errors.WithStack(err)
		}
		if _, err := os.Stat(book.FilePath); err == nil {
			continue
		}

		now := svc.now()
		reason := models.ArchiveReasonFileMissing
		book.Status = models.BookStatusArchived
		book.ArchivedAt = &now
		book.ArchiveReason = &reason
		book.UpdatedAt = now

		_, err := svc.db.
			NewUpdate().
			Model(book).
			Column("status", "archived_at", "archive_reason", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return archived, errors.WithStack(err)
		}
		archived++
	}

	return archived, nil
}

func (svc *Service) restoreFound(ctx context.Context) (int, error) {
	books := []*models.Book{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Where("b.status = ?", models.BookStatusArchived).
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	restored := 0
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return restored, errors.WithStack(err)
		}
		if _, err := os.Stat(book.FilePath); err != nil {
			continue
		}

		book.Status = models.BookStatusActive
		book.ArchivedAt = nil
		book.ArchiveReason = nil
		book.UpdatedAt = svc.now()

		_, err := svc.db.
			NewUpdate().
			Model(book).
			Column("status", "archived_at", "archive_reason", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return restored, errors.WithStack(err)
		}
		restored++
	}

	return restored, nil
}

func (svc *Service) purgeExpired(ctx context.Context) (int, error) {
	if svc.retention <= 0 {
		return 0, nil
	}
	cutoff := svc.now().Add(-svc.retention)

	expired := []*models.Book{}
	err := svc.db.
		NewSelect().
		Model(&expired).
		Where("b.status = ?", models.BookStatusArchived).
		Where("b.archived_at IS NOT NULL").
		Where("b.archived_at < ?", cutoff).
		Scan(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	deleted := 0
	for _, book := range expired {
		if err := ctx.Err(); err != nil {
			return deleted, errors.WithStack(err)
		}

		err := svc.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.
				NewDelete().
				Model((*models.BookTag)(nil)).
				Where("bt.book_id = ?", book.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			_, err = tx.
				NewDelete().
				Model((*models.ReadingProgress)(nil)).
				Where("rp.book_id = ?", book.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			_, err = tx.
				NewDelete().
				Model((*models.Book)(nil)).
				Where("b.id = ?", book.ID).
				Exec(ctx)
			return errors.WithStack(err)
		})
		if err != nil {
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}
