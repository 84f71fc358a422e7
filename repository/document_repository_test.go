package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/photowall/database"
)

func newTestRepository(t *testing.T) *DocumentRepository {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewDocumentRepository(db)
}

func TestDocumentRepositoryMissingKeyLoadsNil(t *testing.T) {
	repo := newTestRepository(t)
	body, err := repo.Load(context.Background(), "navyblue-gallery")
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestDocumentRepositorySaveOverwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "wall", []byte(`[1]`)))
	require.NoError(t, repo.Save(ctx, "wall", []byte(`[1,2]`)))
	require.NoError(t, repo.Save(ctx, "other", []byte(`x`)))

	body, err := repo.Load(ctx, "wall")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(body))

	body, err = repo.Load(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, `x`, string(body))
}

func TestMemoryDocumentStoreCopies(t *testing.T) {
	s := NewMemoryDocumentStore()
	ctx := context.Background()
	in := []byte("abc")
	require.NoError(t, s.Save(ctx, "k", in))
	in[0] = 'z'

	out, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
	assert.Equal(t, 1, s.Writes())

	missing, err := s.Load(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
