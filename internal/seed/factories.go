package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the plain-text password every seeded account shares.
const DefaultPassword = "password123"

// Factory builds domain entities with fake content and persists them.
// It is a thin helper used by Seed and by tests.
type Factory struct {
	db    *gorm.DB
	posts repository.PostRepository
	faker *gofakeit.Faker
	opts  Options

	passwordHash string
}

// NewFactory creates a Factory bound to db. The faker is seeded from
// opts.RandSeed so runs with the same seed produce the same content.
func NewFactory(db *gorm.DB, opts Options, passwordHash string) *Factory {
	return &Factory{
		db:           db,
		posts:        repository.NewPostRepository(db),
		faker:        gofakeit.New(opts.RandSeed),
		opts:         opts,
		passwordHash: passwordHash,
	}
}

// CreateUser persists a sample user. Overrides may modify it before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s%s%d", first, last, f.faker.Number(100, 9999)))
	user := &models.User{
		Username:  truncate(username, 50),
		Email:     username + "@example.com",
		Password:  f.passwordHash,
		FirstName: first,
		LastName:  last,
		Bio:       f.faker.Sentence(10),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		IsActive:  true,
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Omit(clause.Associations).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureCategory returns the category with the given name, creating it if needed.
func (f *Factory) EnsureCategory(name string) (*models.Category, error) {
	category := models.Category{Name: name}
	if err := f.db.Where(models.Category{Name: name}).FirstOrCreate(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// BuildPost constructs an unsaved post for author. Roughly one in six posts
// is left as a draft; the rest get a published_at inside the last MaxDays days.
func (f *Factory) BuildPost(author *models.User, category *models.Category) *models.Post {
	title := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), ".")
	content := f.faker.Paragraph(f.faker.Number(2, 5), f.faker.Number(3, 6), 12, "\n\n")

	post := &models.Post{
		Title:   truncate(title, 255),
		Content: content,
		Excerpt: truncate(strings.SplitN(content, "\n", 2)[0], 500),
		UserID:  author.ID,
	}
	if category != nil {
		post.CategoryID = &category.ID
	}
	if f.faker.Number(0, 99) < 40 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/450", f.faker.UUID())
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	created := time.Now().UTC().Add(-time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute)
	post.CreatedAt = created
	post.UpdatedAt = created

	if f.faker.Number(0, 5) > 0 {
		post.IsPublished = true
		published := created
		post.PublishedAt = &published
		post.ViewCount = int64(f.faker.Number(0, 5000))
	}
	return post
}

// CreatePost persists a post with the given tags through the post repository.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, category *models.Category, tags []string) (*models.Post, error) {
	post := f.BuildPost(author, category)
	if err := f.posts.Create(ctx, post, tags); err != nil {
		return nil, err
	}
	post.Tags = tags
	return post, nil
}

// CreateComment persists a sample comment on post by user.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: f.faker.Sentence(f.faker.Number(5, 20)),
		UserID:  user.ID,
		PostID:  post.ID,
	}

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records a like of post by user. Liking twice is a no-op.
func (f *Factory) CreateLike(ctx context.Context, user *models.User, post *models.Post) error {
	_, err := f.posts.Like(ctx, user.ID, post.ID)
	return err
}

// pickTags returns between zero and three distinct names from the tag pool.
func (f *Factory) pickTags() []string {
	n := f.faker.Number(0, 3)
	picked := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(picked) < n {
		name := tagPool[f.faker.Number(0, len(tagPool)-1)]
		if seen[name] {
			continue
		}
		seen[name] = true
		picked = append(picked, name)
	}
	return picked
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
