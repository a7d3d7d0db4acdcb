package database

import (
	"testing"

	modelspkg "quill/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_ReferencedTablesFirst(t *testing.T) {
	index := map[string]int{}
	for i, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.User:
			index["users"] = i
		case *modelspkg.Post:
			index["posts"] = i
		case *modelspkg.Tag:
			index["tags"] = i
		case *modelspkg.PostTag:
			index["post_tags"] = i
		case *modelspkg.Like:
			index["likes"] = i
		case *modelspkg.Comment:
			index["comments"] = i
		}
	}
	require.Len(t, index, 6)
	require.Less(t, index["users"], index["posts"])
	require.Less(t, index["posts"], index["post_tags"])
	require.Less(t, index["tags"], index["post_tags"])
	require.Less(t, index["posts"], index["likes"])
	require.Less(t, index["posts"], index["comments"])
}
