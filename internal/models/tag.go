package models

import "time"

// Tag is a unique lower-cased label attached to posts through post_tags.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

// TagCount pairs a tag name with the number of published posts carrying it.
type TagCount struct {
	Name      string `json:"name"`
	PostCount int64  `json:"post_count"`
}

// Category groups posts under a single optional heading.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}
