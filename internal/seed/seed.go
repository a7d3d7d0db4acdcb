// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"quill/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// MaxComments and MaxLikes bound the per-post comment and like counts.
	MaxComments int
	MaxLikes    int
	// MaxDays spreads post timestamps over this many days back from now.
	MaxDays int
	// SkipBcrypt hashes the shared password at the minimum cost.
	SkipBcrypt bool
	RandSeed   int64
}

// Result reports how many rows Seed inserted.
type Result struct {
	Users      int
	Categories int
	Posts      int
	Comments   int
	Likes      int
}

var (
	baseUsers = []string{"alice", "bob", "demo"}

	categoryNames = []string{
		"Engineering", "Design", "Product", "Culture", "Tutorials", "Announcements",
	}

	tagPool = []string{
		"go", "postgres", "redis", "api", "testing", "performance", "security",
		"devops", "frontend", "backend", "career", "architecture", "tooling", "release",
	}
)

// Seed populates the database with users, categories, posts, comments and likes.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	hash, err := passwordHash(opts.SkipBcrypt)
	if err != nil {
		return nil, err
	}
	f := NewFactory(db.WithContext(ctx), opts, hash)
	res := &Result{}

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)
	log.Printf("✓ %d users created", len(users))

	categories := make([]*models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		category, err := f.EnsureCategory(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		categories = append(categories, category)
	}
	res.Categories = len(categories)
	log.Printf("✓ %d categories available", len(categories))

	if len(users) == 0 {
		log.Println("🎉 Database seeding completed (no users, skipping posts)")
		return res, nil
	}

	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.faker.Number(0, len(users)-1)]
		var category *models.Category
		if f.faker.Bool() {
			category = categories[f.faker.Number(0, len(categories)-1)]
		}

		post, err := f.CreatePost(ctx, author, category, f.pickTags())
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		res.Posts++

		comments, likes, err := engage(ctx, f, users, post, opts)
		if err != nil {
			return nil, err
		}
		res.Comments += comments
		res.Likes += likes

		if (i+1)%100 == 0 {
			log.Printf("Created %d posts...", i+1)
		}
	}
	log.Printf("✓ %d posts, %d comments, %d likes created", res.Posts, res.Comments, res.Likes)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

// engage adds comments and likes from random users to a published post.
func engage(ctx context.Context, f *Factory, users []*models.User, post *models.Post, opts Options) (int, int, error) {
	if !post.IsPublished {
		return 0, 0, nil
	}

	comments := 0
	if opts.MaxComments > 0 {
		for n := f.faker.Number(0, opts.MaxComments); n > 0; n-- {
			user := users[f.faker.Number(0, len(users)-1)]
			if _, err := f.CreateComment(user, post); err != nil {
				return 0, 0, fmt.Errorf("failed to create comment: %w", err)
			}
			comments++
		}
	}

	likes := 0
	if opts.MaxLikes > 0 {
		n := f.faker.Number(0, opts.MaxLikes)
		if n > len(users) {
			n = len(users)
		}
		// a rotation from a random start gives n distinct likers
		start := f.faker.Number(0, len(users)-1)
		for i := 0; i < n; i++ {
			user := users[(start+i)%len(users)]
			if err := f.CreateLike(ctx, user, post); err != nil {
				return 0, 0, fmt.Errorf("failed to create like: %w", err)
			}
			likes++
		}
	}
	return comments, likes, nil
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	// Fixed accounts so there is always something to log in as.
	for i := 0; i < len(baseUsers) && i < count; i++ {
		name := baseUsers[i]
		user, err := f.CreateUser(func(u *models.User) {
			u.Username = name
			u.Email = name + "@example.com"
			u.Bio = "Seeded demo account."
		})
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	for i := len(users); i < count; i++ {
		user, err := f.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if (i+1)%100 == 0 {
			log.Printf("Created %d users...", i+1)
		}
	}
	return users, nil
}

func passwordHash(skip bool) (string, error) {
	cost := bcrypt.DefaultCost
	if skip {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(hashed), nil
}

// clearData empties every application table. Postgres gets a single TRUNCATE;
// other dialects delete children before parents.
func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE likes, comments, post_tags, posts, tags, categories, users RESTART IDENTITY CASCADE`).Error
	}
	for _, table := range []string{"likes", "comments", "post_tags", "posts", "tags", "categories", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
