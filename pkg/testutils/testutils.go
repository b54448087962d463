// Package testutils provides shared database fixtures for package tests.
package testutils

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dustlibrary/dust/pkg/migrations"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password every fixture user is created with.
const TestPassword = "password123"

// NewDB returns an in-memory database with all migrations applied.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	models.RegisterJoinModels(db)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateUser inserts an active user with the given roles (by name) and the
// TestPassword. Hashing uses the minimum bcrypt cost to keep tests fast.
func CreateUser(t *testing.T, db *bun.DB, username string, roleNames ...string) *models.User {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	for _, roleName := range roleNames {
		role := &models.Role{}
		err = db.NewSelect().Model(role).Where("name = ?", roleName).Scan(ctx)
		require.NoError(t, err)

		_, err = db.NewInsert().Model(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Exec(ctx)
		require.NoError(t, err)
	}

	return LoadUser(t, db, user.ID)
}

// LoadUser reloads a user with role and permission relations.
func LoadUser(t *testing.T, db *bun.DB, id int) *models.User {
	t.Helper()

	user := &models.User{}
	err := db.NewSelect().
		Model(user).
		Relation("Roles").
		Relation("Roles.Permissions").
		Where("u.id = ?", id).
		Scan(context.Background())
	require.NoError(t, err)
	return user
}

// CreateAuthor inserts an author.
func CreateAuthor(t *testing.T, db *bun.DB, name string) *models.Author {
	t.Helper()

	author := &models.Author{
		Name:           name,
		NormalizedName: models.NormalizeAuthorName(name),
	}
	_, err := db.NewInsert().Model(author).Exec(context.Background())
	require.NoError(t, err)
	return author
}

// CreateBook inserts an active book for the author.
func CreateBook(t *testing.T, db *bun.DB, author *models.Author, name, filePath string) *models.Book {
	t.Helper()

	book := &models.Book{
		Name:          name,
		AuthorID:      author.ID,
		FilePath:      filePath,
		FileFormat:    "epub",
		FileSizeBytes: 1024,
		Status:        models.BookStatusActive,
	}
	_, err := db.NewInsert().Model(book).Exec(context.Background())
	require.NoError(t, err)
	return book
}

// CreateTag inserts a non-seeded tag.
func CreateTag(t *testing.T, db *bun.DB, name, category string, requiresPermission *string) *models.Tag {
	t.Helper()

	tag := &models.Tag{
		Name:               name,
		Category:           category,
		RequiresPermission: requiresPermission,
	}
	_, err := db.NewInsert().Model(tag).Exec(context.Background())
	require.NoError(t, err)
	return tag
}

// TagByName fetches a tag from the seed catalog.
func TagByName(t *testing.T, db *bun.DB, name string) *models.Tag {
	t.Helper()

	tag := &models.Tag{}
	err := db.NewSelect().Model(tag).Where("name = ? COLLATE NOCASE", name).Scan(context.Background())
	require.NoError(t, err)
	return tag
}

// ApplyTag links a tag to a book.
func ApplyTag(t *testing.T, db *bun.DB, book *models.Book, tag *models.Tag) {
	t.Helper()

	_, err := db.NewInsert().Model(&models.BookTag{
		BookID:    book.ID,
		TagID:     tag.ID,
		AppliedAt: time.Now(),
	}).Exec(context.Background())
	require.NoError(t, err)
}

// SetTagPreference records a user's allow/deny preference for a tag.
func SetTagPreference(t *testing.T, db *bun.DB, user *models.User, tag *models.Tag, state string) {
	t.Helper()

	_, err := db.NewInsert().Model(&models.UserTagPreference{
		UserID: user.ID,
		TagID:  tag.ID,
		State:  state,
	}).Exec(context.Background())
	require.NoError(t, err)
}
