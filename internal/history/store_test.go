// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdscan/pkg/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func addRecords(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := s.Add(context.Background(), types.ConversionRecord{
			Title:        fmt.Sprintf("article %d", i),
			MarkdownFile: fmt.Sprintf("/out/a%d/converted.md", i),
			ZipFile:      fmt.Sprintf("/out/a%d.zip", i),
			ImageCount:   i,
		})
		require.NoError(t, err)
	}
}

func TestStore_AddAssignsIDAndTimestamp(t *testing.T) {
	s, _ := newTestStore(t)

	rec, err := s.Add(context.Background(), types.ConversionRecord{
		Title:        "scanned book",
		MarkdownFile: "/out/book/converted.md",
		ZipFile:      "/out/book.zip",
		ImageCount:   12,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "scanned book", got.Title)
	assert.Equal(t, 12, got.ImageCount)
	assert.Equal(t, rec.CreatedAt.UTC(), got.CreatedAt.UTC())
}

func TestStore_RecentMostRecentFirst(t *testing.T) {
	s, _ := newTestStore(t)
	addRecords(t, s, 5)

	records, err := s.Recent(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "article 5", records[0].Title)
	assert.Equal(t, "article 4", records[1].Title)
	assert.Equal(t, "article 3", records[2].Title)
}

func TestStore_RecentEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	records, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_Trim(t *testing.T) {
	s, _ := newTestStore(t)
	addRecords(t, s, 7)

	require.NoError(t, s.Trim(context.Background(), 2))

	records, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "article 7", records[0].Title)
	assert.Equal(t, "article 6", records[1].Title)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	s, dir := newTestStore(t)
	addRecords(t, s, 2)
	require.NoError(t, s.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
