package tags

import (
	"context"
	"testing"

	"github.com/dustlibrary/dust/pkg/books"
	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/dustlibrary/dust/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceList(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	author := testutils.CreateAuthor(t, db, "Jane Doe")
	book := testutils.CreateBook(t, db, author, "Tagged", "/lib/j/tagged/tagged.epub")
	testutils.CreateBook(t, db, author, "Untagged", "/lib/j/untagged/untagged.epub")
	epub := testutils.TagByName(t, db, "EPUB")
	testutils.ApplyTag(t, db, book, epub)

	tags, total, err := svc.List(ctx, ListTagsOptions{})
	require.NoError(t, err)
	assert.Equal(t, total, len(tags))
	assert.Greater(t, total, 1)

	byName := map[string]*models.Tag{}
	for _, tag := range tags {
		byName[tag.Name] = tag
	}
	require.Contains(t, byName, "EPUB")
	assert.Equal(t, 1, byName["EPUB"].BookCount)
	require.Contains(t, byName, "PDF")
	assert.Equal(t, 0, byName["PDF"].BookCount)

	category := models.TagCategoryContentRating
	rated, _, err := svc.List(ctx, ListTagsOptions{Category: &category})
	require.NoError(t, err)
	require.NotEmpty(t, rated)
	for _, tag := range rated {
		assert.Equal(t, models.TagCategoryContentRating, tag.Category)
	}
}

func TestServiceList_CountExcludesDeletedBooks(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	author := testutils.CreateAuthor(t, db, "Jane Doe")
	book := testutils.CreateBook(t, db, author, "Gone", "/lib/j/gone/gone.epub")
	epub := testutils.TagByName(t, db, "EPUB")
	testutils.ApplyTag(t, db, book, epub)

	_, err := db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("status = ?", models.BookStatusDeleted).
		Where("id = ?", book.ID).
		Exec(ctx)
	require.NoError(t, err)

	tags, _, err := svc.List(ctx, ListTagsOptions{})
	require.NoError(t, err)
	for _, tag := range tags {
		if tag.Name == "EPUB" {
			assert.Equal(t, 0, tag.BookCount)
		}
	}
}

func TestServiceCategories(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		models.TagCategoryContentRating,
		models.TagCategoryFormat,
		models.TagCategoryGenre,
	}, categories)
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	tag, err := svc.Create(ctx, CreateTagOptions{Name: "Cyberpunk", Category: models.TagCategoryGenre})
	require.NoError(t, err)
	assert.NotZero(t, tag.ID)
	assert.False(t, tag.IsSeeded)

	got, err := svc.Retrieve(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cyberpunk", got.Name)
	assert.Equal(t, models.TagCategoryGenre, got.Category)

	// Names collide regardless of case.
	_, err = svc.Create(ctx, CreateTagOptions{Name: "CYBERPUNK", Category: models.TagCategoryGenre})
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	_, err = svc.Create(ctx, CreateTagOptions{Name: "  ", Category: models.TagCategoryGenre})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.HTTPCode)
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	author := testutils.CreateAuthor(t, db, "Jane Doe")
	book := testutils.CreateBook(t, db, author, "Book", "/lib/j/book/book.epub")

	tag, err := svc.Create(ctx, CreateTagOptions{Name: "Ephemeral", Category: models.TagCategoryGenre})
	require.NoError(t, err)
	testutils.ApplyTag(t, db, book, tag)
	testutils.SetTagPreference(t, db, member, tag, models.TagPreferenceDeny)

	require.NoError(t, svc.Delete(ctx, tag.ID))

	_, err = svc.Retrieve(ctx, tag.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)

	// Applications and preferences are gone with the tag.
	n, err := db.NewSelect().Model((*models.BookTag)(nil)).Where("bt.tag_id = ?", tag.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = db.NewSelect().Model((*models.UserTagPreference)(nil)).Where("utp.tag_id = ?", tag.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// The deny preference no longer hides the book.
	visible, _, err := books.NewService(db, nil, nil).List(ctx, member, books.ListBooksOptions{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, book.ID, visible[0].ID)
}

func TestServiceDelete_SeededProtected(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	nsfw := testutils.TagByName(t, db, "NSFW")
	err := svc.Delete(ctx, nsfw.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	err = svc.Delete(ctx, 9999)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)
}

func TestServiceSetPreference(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	author := testutils.CreateAuthor(t, db, "Jane Doe")
	book := testutils.CreateBook(t, db, author, "Horror Story", "/lib/j/horror/horror.epub")
	horror := testutils.TagByName(t, db, "Horror")
	testutils.ApplyTag(t, db, book, horror)

	_, err := svc.SetPreference(ctx, member, horror.ID, models.TagPreferenceDeny)
	require.NoError(t, err)

	bookService := books.NewService(db, nil, nil)
	visible, _, err := bookService.List(ctx, member, books.ListBooksOptions{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	// Replacing the state keeps a single row.
	_, err = svc.SetPreference(ctx, member, horror.ID, models.TagPreferenceAllow)
	require.NoError(t, err)

	prefs, err := svc.ListPreferences(ctx, member)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, models.TagPreferenceAllow, prefs[0].State)
	require.NotNil(t, prefs[0].Tag)
	assert.Equal(t, "Horror", prefs[0].Tag.Name)

	visible, _, err = bookService.List(ctx, member, books.ListBooksOptions{})
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	_, err = svc.SetPreference(ctx, member, 9999, models.TagPreferenceDeny)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)
}

func TestServiceClearPreference(t *testing.T) {
	t.Parallel()

	db := testutils.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	horror := testutils.TagByName(t, db, "Horror")

	_, err := svc.SetPreference(ctx, member, horror.ID, models.TagPreferenceDeny)
	require.NoError(t, err)
	require.NoError(t, svc.ClearPreference(ctx, member, horror.ID))

	prefs, err := svc.ListPreferences(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, prefs)

	err = svc.ClearPreference(ctx, member, horror.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)
}
