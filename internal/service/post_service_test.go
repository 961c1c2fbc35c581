package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"cmsmini/internal/model"
	"cmsmini/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

// makeUpload builds a real *multipart.FileHeader by round-tripping a form
func makeUpload(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	files := form.File["image"]
	require.Len(t, files, 1)
	return files[0]
}

func newTestAssets(t *testing.T) *storage.DiskStore {
	t.Helper()
	store, err := storage.NewDiskStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

type fakePostRepo struct {
	posts     map[int64]model.Post
	nextID    int64
	createErr error
	updateErr error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[int64]model.Post{}, nextID: 1}
}

func (f *fakePostRepo) Create(ctx context.Context, p *model.Post) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = f.nextID
	f.nextID++
	f.posts[p.ID] = *p
	return nil
}

func (f *fakePostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	found := p
	return &found, nil
}

func (f *fakePostRepo) FindByAuthor(ctx context.Context, authorID int) ([]model.Post, error) {
	var out []model.Post
	for _, p := range f.posts {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakePostRepo) FindAll(ctx context.Context) ([]model.Post, error) {
	var out []model.Post
	for _, p := range f.posts {
		out = append(out, p)
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakePostRepo) Update(ctx context.Context, p *model.Post) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.posts[p.ID]; !ok {
		return errors.New("no such post")
	}
	f.posts[p.ID] = *p
	return nil
}

func (f *fakePostRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.posts[id]; !ok {
		return errors.New("no such post")
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) CountByAuthor(ctx context.Context) ([]model.AuthorStat, error) {
	counts := map[int]int64{}
	for _, p := range f.posts {
		counts[p.AuthorID]++
	}
	var out []model.AuthorStat
	for id, n := range counts {
		out = append(out, model.AuthorStat{AuthorID: id, PostCount: n})
	}
	return out, nil
}

func sortNewestFirst(posts []model.Post) {
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func newTestService(t *testing.T) (PostService, *fakePostRepo, *storage.DiskStore) {
	t.Helper()
	repo := newFakePostRepo()
	assets := newTestAssets(t)
	return NewPostService(repo, assets), repo, assets
}

// --- Create ---

func TestCreate_EmptyTitle(t *testing.T) {
	svc, repo, _ := newTestService(t)

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := svc.Create(context.Background(), 1, model.PostInput{Title: title, Content: "body"})

		var ve model.ValidationErrors
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve, "title")
		assert.Empty(t, repo.posts, "no record may be created on validation failure")
	}
}

func TestCreate_EmptyContent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), 1, model.PostInput{Title: "t", Content: " "})

	var ve model.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve, "content")
}

func TestCreate_DisallowedExtension(t *testing.T) {
	svc, repo, _ := newTestService(t)

	in := model.PostInput{
		Title:        "t",
		Content:      "c",
		ImageAltText: "alt",
		Image:        makeUpload(t, "evil.exe", "MZ"),
	}
	_, err := svc.Create(context.Background(), 1, in)

	var ve model.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve, "image")
	assert.Empty(t, repo.posts)
}

func TestCreate_MixedCaseExtensionAccepted(t *testing.T) {
	svc, _, assets := newTestService(t)

	in := model.PostInput{
		Title:        "t",
		Content:      "c",
		ImageAltText: "logo",
		Image:        makeUpload(t, "photo.PNG", "png-bytes"),
	}
	post, err := svc.Create(context.Background(), 1, in)

	require.NoError(t, err)
	require.NotNil(t, post.ImageFilename)
	assert.True(t, assets.Exists(*post.ImageFilename))
	assert.NotContains(t, *post.ImageFilename, "photo")
	require.NotNil(t, post.ImageAltText)
	assert.Equal(t, "logo", *post.ImageAltText)
}

func TestCreate_ImageRequiresAltText(t *testing.T) {
	svc, repo, _ := newTestService(t)

	in := model.PostInput{
		Title:   "t",
		Content: "c",
		Image:   makeUpload(t, "a.png", "x"),
	}
	_, err := svc.Create(context.Background(), 1, in)

	var ve model.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve, "image_alt_text")
	assert.Empty(t, repo.posts)
}

func TestCreate_NoImageNeedsNoAltText(t *testing.T) {
	svc, _, _ := newTestService(t)

	post, err := svc.Create(context.Background(), 1, model.PostInput{Title: "t", Content: "c"})

	require.NoError(t, err)
	assert.Nil(t, post.ImageFilename)
	assert.Nil(t, post.ImageAltText)
}

func TestCreate_CollectsAllErrorsAtOnce(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := model.PostInput{Image: makeUpload(t, "evil.exe", "MZ")}
	_, err := svc.Create(context.Background(), 1, in)

	var ve model.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve, "title")
	assert.Contains(t, ve, "content")
	assert.Contains(t, ve, "image")
	assert.Contains(t, ve, "image_alt_text")
}

func TestCreate_RepoFailureCleansUpImage(t *testing.T) {
	repo := newFakePostRepo()
	repo.createErr = errors.New("insert failed")
	uploadsDir := filepath.Join(t.TempDir(), "uploads")
	assets, err := storage.NewDiskStore(uploadsDir)
	require.NoError(t, err)
	svc := NewPostService(repo, assets)

	in := model.PostInput{
		Title:        "t",
		Content:      "c",
		ImageAltText: "alt",
		Image:        makeUpload(t, "a.png", "x"),
	}
	_, err = svc.Create(context.Background(), 1, in)

	require.Error(t, err)
	var ve model.ValidationErrors
	assert.False(t, errors.As(err, &ve), "a persistence failure is not a validation error")

	entries, readErr := os.ReadDir(uploadsDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "the written image must be cleaned up after an insert failure")
}

func TestCreate_TrimsTitleAndContent(t *testing.T) {
	svc, _, _ := newTestService(t)

	post, err := svc.Create(context.Background(), 1, model.PostInput{Title: "  hello  ", Content: "\tworld\n"})

	require.NoError(t, err)
	assert.Equal(t, "hello", post.Title)
	assert.Equal(t, "world", post.Content)
}

// --- Update ---

func seedPost(t *testing.T, svc PostService, authorID int, in model.PostInput) *model.Post {
	t.Helper()
	post, err := svc.Create(context.Background(), authorID, in)
	require.NoError(t, err)
	return post
}

func TestUpdate_NonOwnerEditorForbidden(t *testing.T) {
	svc, repo, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "original", Content: "body"})

	_, err := svc.Update(context.Background(), post.ID, 2, model.RoleEditor, model.PostInput{Title: "hijacked", Content: "x"})

	assert.ErrorIs(t, err, ErrForbidden)
	stored := repo.posts[post.ID]
	assert.Equal(t, "original", stored.Title, "a rejected update must leave the post unchanged")
	assert.Equal(t, "body", stored.Content)
}

func TestUpdate_AdminMayEditAnyPost(t *testing.T) {
	svc, _, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "original", Content: "body"})

	updated, err := svc.Update(context.Background(), post.ID, 99, model.RoleAdmin, model.PostInput{Title: "edited", Content: "body"})

	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Title)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Update(context.Background(), 404, 1, model.RoleAdmin, model.PostInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestUpdate_ValidationFailureLeavesPostUntouched(t *testing.T) {
	svc, repo, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "original", Content: "body"})

	_, err := svc.Update(context.Background(), post.ID, 1, model.RoleEditor, model.PostInput{Title: " ", Content: "new"})

	var ve model.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "original", repo.posts[post.ID].Title)
	assert.Equal(t, "body", repo.posts[post.ID].Content)
}

func TestUpdate_ExistingImageRequiresAltText(t *testing.T) {
	svc, _, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{
		Title: "t", Content: "c", ImageAltText: "alt",
		Image: makeUpload(t, "a.png", "x"),
	})

	// No new upload, but the post still carries an image: alt text stays required.
	_, err := svc.Update(context.Background(), post.ID, 1, model.RoleEditor, model.PostInput{Title: "t", Content: "c"})

	var ve model.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve, "image_alt_text")
}

func TestUpdate_ReplacingImageRemovesOldAsset(t *testing.T) {
	svc, repo, assets := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{
		Title: "t", Content: "c", ImageAltText: "logo",
		Image: makeUpload(t, "a.png", "image-A"),
	})
	oldName := *post.ImageFilename
	require.True(t, assets.Exists(oldName))

	updated, err := svc.Update(context.Background(), post.ID, 1, model.RoleEditor, model.PostInput{
		Title: "t", Content: "c", ImageAltText: "logo",
		Image: makeUpload(t, "b.jpg", "image-B"),
	})

	require.NoError(t, err)
	require.NotNil(t, updated.ImageFilename)
	newName := *updated.ImageFilename
	assert.NotEqual(t, oldName, newName)
	assert.False(t, assets.Exists(oldName), "replaced asset must be removed")
	assert.True(t, assets.Exists(newName), "new asset must be present")
	stored := repo.posts[post.ID]
	require.NotNil(t, stored.ImageFilename)
	assert.Equal(t, newName, *stored.ImageFilename, "record must reference the new asset")
}

func TestUpdate_RepoFailureKeepsOldImage(t *testing.T) {
	svc, repo, assets := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{
		Title: "t", Content: "c", ImageAltText: "alt",
		Image: makeUpload(t, "a.png", "image-A"),
	})
	oldName := *post.ImageFilename
	repo.updateErr = errors.New("update failed")

	_, err := svc.Update(context.Background(), post.ID, 1, model.RoleEditor, model.PostInput{
		Title: "t", Content: "c", ImageAltText: "alt",
		Image: makeUpload(t, "b.png", "image-B"),
	})

	require.Error(t, err)
	assert.True(t, assets.Exists(oldName), "old asset must survive a failed update")
}

// --- Delete ---

func TestDelete_RemovesRecordAndAsset(t *testing.T) {
	svc, repo, assets := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{
		Title: "t", Content: "c", ImageAltText: "alt",
		Image: makeUpload(t, "a.png", "x"),
	})
	imageName := *post.ImageFilename

	require.NoError(t, svc.Delete(context.Background(), post.ID, 1, model.RoleEditor))

	assert.NotContains(t, repo.posts, post.ID)
	assert.False(t, assets.Exists(imageName))
}

func TestDelete_WithoutImage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "t", Content: "c"})

	require.NoError(t, svc.Delete(context.Background(), post.ID, 1, model.RoleEditor))
	assert.NotContains(t, repo.posts, post.ID)
}

func TestDelete_NonOwnerForbidden(t *testing.T) {
	svc, repo, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "t", Content: "c"})

	err := svc.Delete(context.Background(), post.ID, 2, model.RoleEditor)

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, repo.posts, post.ID)
}

func TestDelete_AdminMayDeleteAnyPost(t *testing.T) {
	svc, repo, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "t", Content: "c"})

	require.NoError(t, svc.Delete(context.Background(), post.ID, 99, model.RoleAdmin))
	assert.Empty(t, repo.posts)
}

// --- Get / List ---

func TestGet_OwnershipOrAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	post := seedPost(t, svc, 1, model.PostInput{Title: "t", Content: "c"})

	_, err := svc.Get(context.Background(), post.ID, 1, model.RoleEditor)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), post.ID, 2, model.RoleEditor)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), post.ID, 2, model.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), 404, 1, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestList_RoleScoping(t *testing.T) {
	repo := newFakePostRepo()
	svc := NewPostService(repo, newTestAssets(t))

	now := time.Now()
	repo.posts[1] = model.Post{ID: 1, Title: "oldest", AuthorID: 1, CreatedAt: now.Add(-2 * time.Hour)}
	repo.posts[2] = model.Post{ID: 2, Title: "mine", AuthorID: 2, CreatedAt: now.Add(-1 * time.Hour)}
	repo.posts[3] = model.Post{ID: 3, Title: "newest", AuthorID: 1, CreatedAt: now}

	adminList, err := svc.List(context.Background(), 99, model.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, adminList, 3)
	assert.Equal(t, "newest", adminList[0].Title)
	assert.Equal(t, "oldest", adminList[2].Title)

	editorList, err := svc.List(context.Background(), 2, model.RoleEditor)
	require.NoError(t, err)
	require.Len(t, editorList, 1)
	assert.Equal(t, "mine", editorList[0].Title)
}

// --- Admin ---

func TestExportCSV(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedPost(t, svc, 1, model.PostInput{Title: "first", Content: "body"})
	seedPost(t, svc, 2, model.PostInput{Title: "second", Content: "body"})

	buf, err := svc.ExportCSV(context.Background())

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "ID,AuthorID,Title")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedPost(t, svc, 1, model.PostInput{Title: "a", Content: "b"})
	seedPost(t, svc, 1, model.PostInput{Title: "c", Content: "d"})

	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(2), stats[0].PostCount)
}
