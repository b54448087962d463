package books

import (
	"context"
	"testing"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/dustlibrary/dust/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func bookIDs(books []*models.Book) []int {
	ids := make([]int, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	return ids
}

func newFixture(t *testing.T) (*bun.DB, *Service) {
	t.Helper()
	db := testutils.NewDB(t)
	return db, NewService(db, nil, nil)
}

func TestServiceList_TagGatedVisibility(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	admin := testutils.CreateUser(t, db, "admin", models.RoleAdministrator)

	author := testutils.CreateAuthor(t, db, "Jane Doe")
	plain := testutils.CreateBook(t, db, author, "Plain", "/lib/a/plain/plain.epub")
	gated := testutils.CreateBook(t, db, author, "Gated", "/lib/a/gated/gated.epub")
	testutils.ApplyTag(t, db, gated, testutils.TagByName(t, db, "NSFW"))

	visible, _, err := svc.List(ctx, member, ListBooksOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{plain.ID}, bookIDs(visible))

	// The gated book is hidden from get as well, indistinguishable from a
	// missing row.
	_, err = svc.Retrieve(ctx, member, gated.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)

	// Admins hold content.nsfw through admin role grants.
	visible, _, err = svc.List(ctx, admin, ListBooksOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{plain.ID, gated.ID}, bookIDs(visible))

	got, err := svc.Retrieve(ctx, admin, gated.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gated", got.Name)
}

func TestServiceList_DenyPreference(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	user := testutils.CreateUser(t, db, "member", models.RoleMember)
	author := testutils.CreateAuthor(t, db, "Jane Doe")
	horror := testutils.CreateBook(t, db, author, "Scary", "/lib/a/scary/scary.epub")
	other := testutils.CreateBook(t, db, author, "Calm", "/lib/a/calm/calm.epub")

	horrorTag := testutils.TagByName(t, db, "Horror")
	testutils.ApplyTag(t, db, horror, horrorTag)
	testutils.SetTagPreference(t, db, user, horrorTag, models.TagPreferenceDeny)

	visible, _, err := svc.List(ctx, user, ListBooksOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{other.ID}, bookIDs(visible))

	_, err = svc.Retrieve(ctx, user, horror.ID)
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)
}

func TestServiceList_Filters(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	user := testutils.CreateUser(t, db, "member", models.RoleMember)
	author := testutils.CreateAuthor(t, db, "Jane Doe")

	scifi := testutils.CreateBook(t, db, author, "Stars", "/lib/a/stars/stars.epub")
	fantasy := testutils.CreateBook(t, db, author, "Dragons", "/lib/a/dragons/dragons.epub")
	untagged := testutils.CreateBook(t, db, author, "Blank", "/lib/a/blank/blank.epub")

	testutils.ApplyTag(t, db, scifi, testutils.TagByName(t, db, "Science Fiction"))
	testutils.ApplyTag(t, db, scifi, testutils.TagByName(t, db, "EPUB"))
	testutils.ApplyTag(t, db, fantasy, testutils.TagByName(t, db, "Fantasy"))

	visible, _, err := svc.List(ctx, user, ListBooksOptions{
		Filter: Filter{IncludeGenres: []string{"Science Fiction"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{scifi.ID}, bookIDs(visible))

	visible, _, err = svc.List(ctx, user, ListBooksOptions{
		Filter: Filter{ExcludeGenres: []string{"Fantasy"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{scifi.ID, untagged.ID}, bookIDs(visible))

	// Tag filters match any category, so the format tag works here.
	visible, _, err = svc.List(ctx, user, ListBooksOptions{
		Filter: Filter{IncludeTags: []string{"epub"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{scifi.ID}, bookIDs(visible))

	visible, _, err = svc.List(ctx, user, ListBooksOptions{
		Filter: Filter{ExcludeTags: []string{"EPUB", "Fantasy"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{untagged.ID}, bookIDs(visible))
}

func TestServiceList_ByTagAndStatus(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	user := testutils.CreateUser(t, db, "member", models.RoleMember)
	admin := testutils.CreateUser(t, db, "admin", models.RoleAdministrator)
	author := testutils.CreateAuthor(t, db, "Jane Doe")

	tagged := testutils.CreateBook(t, db, author, "Tagged", "/lib/a/tagged/tagged.epub")
	plain := testutils.CreateBook(t, db, author, "Plain", "/lib/a/plain/plain.epub")
	testutils.ApplyTag(t, db, tagged, testutils.TagByName(t, db, "Mystery"))

	tagName := "mystery"
	visible, _, err := svc.List(ctx, user, ListBooksOptions{TagName: &tagName})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{tagged.ID}, bookIDs(visible))

	// Archived books drop out of visible listings but show up for an admin
	// status listing.
	_, err = svc.Archive(ctx, plain.ID, "shelved")
	require.NoError(t, err)

	visible, _, err = svc.List(ctx, user, ListBooksOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{tagged.ID}, bookIDs(visible))

	status := models.BookStatusArchived
	archived, _, err := svc.List(ctx, admin, ListBooksOptions{Status: &status})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{plain.ID}, bookIDs(archived))
}

func TestServiceAddRemoveTag(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	user := testutils.CreateUser(t, db, "member", models.RoleMember)
	author := testutils.CreateAuthor(t, db, "Jane Doe")
	book := testutils.CreateBook(t, db, author, "Book", "/lib/a/book/book.epub")

	updated, err := svc.AddTag(ctx, user, book.ID, "Fantasy")
	require.NoError(t, err)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "Fantasy", updated.Tags[0].Name)

	// The applying user is recorded and the row is not auto-applied.
	bookTag := &models.BookTag{}
	err = db.NewSelect().Model(bookTag).Where("book_id = ?", book.ID).Scan(ctx)
	require.NoError(t, err)
	require.NotNil(t, bookTag.AppliedBy)
	assert.Equal(t, user.ID, *bookTag.AppliedBy)
	assert.False(t, bookTag.AutoApplied)

	_, err = svc.AddTag(ctx, user, book.ID, "Fantasy")
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	_, err = svc.AddTag(ctx, user, book.ID, "No Such Tag")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)

	err = svc.RemoveTag(ctx, user, book.ID, "fantasy")
	require.NoError(t, err)

	err = svc.RemoveTag(ctx, user, book.ID, "fantasy")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)

	// Removing the link never touches the catalog entry.
	tag := testutils.TagByName(t, db, "Fantasy")
	assert.Equal(t, "Fantasy", tag.Name)
}

func TestServiceArchiveUnarchive(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	author := testutils.CreateAuthor(t, db, "Jane Doe")
	book := testutils.CreateBook(t, db, author, "Book", "/lib/a/book/book.epub")

	archived, err := svc.Archive(ctx, book.ID, "water damage")
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)
	require.NotNil(t, archived.ArchiveReason)
	assert.Equal(t, "water damage", *archived.ArchiveReason)

	_, err = svc.Archive(ctx, book.ID, "again")
	appErr := &errcodes.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)

	// Managers can still retrieve the archived record; members see a 404.
	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	admin := testutils.CreateUser(t, db, "admin", models.RoleAdministrator)

	_, err = svc.Retrieve(ctx, member, book.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.HTTPCode)

	got, err := svc.Retrieve(ctx, admin, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusArchived, got.Status)

	restored, err := svc.Unarchive(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatusActive, restored.Status)
	assert.Nil(t, restored.ArchivedAt)
	assert.Nil(t, restored.ArchiveReason)

	_, err = svc.Unarchive(ctx, book.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.HTTPCode)
}

func TestServicePermissionMonotonicity(t *testing.T) {
	t.Parallel()

	db, svc := newFixture(t)
	ctx := context.Background()

	member := testutils.CreateUser(t, db, "member", models.RoleMember)
	admin := testutils.CreateUser(t, db, "admin", models.RoleAdministrator)
	author := testutils.CreateAuthor(t, db, "Jane Doe")

	for _, fixture := range []struct {
		name string
		tag  string
	}{
		{"One", ""},
		{"Two", "NSFW"},
		{"Three", "Horror"},
	} {
		book := testutils.CreateBook(t, db, author, fixture.name, "/lib/a/"+fixture.name+"/f.epub")
		if fixture.tag != "" {
			testutils.ApplyTag(t, db, book, testutils.TagByName(t, db, fixture.tag))
		}
	}

	memberBooks, _, err := svc.List(ctx, member, ListBooksOptions{})
	require.NoError(t, err)
	adminBooks, _, err := svc.List(ctx, admin, ListBooksOptions{})
	require.NoError(t, err)

	assert.Subset(t, bookIDs(adminBooks), bookIDs(memberBooks))
	assert.Len(t, adminBooks, 3)
	assert.Len(t, memberBooks, 2)
}
