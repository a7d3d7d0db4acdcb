package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix   = "user:%d"
	TagCountsKey    = "tags:counts"
	CategoriesKey   = "categories:all"
	PendingViewsKey = "posts:views:pending"
	// FlushingViewsKey holds the batch a view sync run has claimed.
	FlushingViewsKey = "posts:views:flushing"
)

const (
	UserTTL       = 5 * time.Minute
	TagCountsTTL  = time.Minute
	CategoriesTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}
