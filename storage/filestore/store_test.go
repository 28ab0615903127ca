package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/barakah/core/session"
	testutil "github.com/trezcool/barakah/tests"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := New(path)

	// missing file is an empty session
	_, ok, err := store.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Delete(ctx, session.KeyToken, session.KeyUser))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "deleting nothing must not create the file")

	require.NoError(t, store.Set(ctx, session.KeyToken, "tok"))
	require.NoError(t, store.Set(ctx, session.KeyUser, `{"id":1}`))

	// survives a new store on the same file
	other := New(path)
	v, ok, err := other.Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, other.Delete(ctx, session.KeyToken, session.KeyUser))
	require.NoError(t, other.Delete(ctx, session.KeyToken, session.KeyUser))
	_, ok, err = store.Get(ctx, session.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_emptyAndCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	_, ok, err := New(empty).Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"token":`), 0o600))
	_, _, err = New(corrupt).Get(ctx, session.KeyToken)
	assert.Error(t, err)
}

func TestStore_withManager(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	sessions := session.NewManager(New(path), testutil.NewLogger())

	require.NoError(t, sessions.Begin(ctx, "tok", testutil.Employee()))

	// a restart restores the session from disk
	restored, err := session.NewManager(New(path), testutil.NewLogger()).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", restored.Token)
	require.NotNil(t, restored.User)
	assert.True(t, restored.User.IsEmployee())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sessions.Clear(ctx))
		}()
	}
	wg.Wait()

	state, err := sessions.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Anonymous, state)
}
