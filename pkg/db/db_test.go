package db_test

import (
	"path/filepath"
	"testing"

	"github.com/eric2788/vidpost/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Key  string
	Size int64
}

func openBucket(t *testing.T) *db.Bucket[record] {
	client, err := db.Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	bucket, err := db.NewBucket[record](client, "Records")
	require.NoError(t, err)
	return bucket
}

func TestBucket_PutGetDelete(t *testing.T) {
	bucket := openBucket(t)

	require.NoError(t, bucket.Put("a.mp4", &record{Key: "a.mp4", Size: 10}))
	got, err := bucket.Get("a.mp4")
	require.NoError(t, err)
	assert.Equal(t, &record{Key: "a.mp4", Size: 10}, got)

	require.NoError(t, bucket.Delete("a.mp4"))
	_, err = bucket.Get("a.mp4")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestBucket_ListAndCount(t *testing.T) {
	bucket := openBucket(t)
	for _, k := range []string{"b", "a", "c"} {
		require.NoError(t, bucket.Put(k, &record{Key: k}))
	}

	list, err := bucket.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Key)
	assert.Equal(t, "c", list[2].Key)

	count, err := bucket.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
