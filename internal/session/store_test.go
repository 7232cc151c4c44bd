package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskrelay/widget/internal/infrastructure/logging"
	"github.com/deskrelay/widget/internal/shared/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logging.NewNop())
	require.NoError(t, err)
	return store
}

func sampleTuple(appID string) *types.SessionTuple {
	roomID := int64(42)
	return &types.SessionTuple{
		ApplicationID: appID,
		User: &types.UserRecord{
			ID:          7,
			Identifier:  "visitor-7",
			DisplayName: "Visitor",
			Extras:      map[string]interface{}{"plan": "free"},
		},
		AuthToken: "token-abc",
		RoomID:    &roomID,
	}
}

func TestGetAbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)

	tuple, err := store.Get("acme")
	require.NoError(t, err)
	assert.Nil(t, tuple)
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(sampleTuple("acme")))

	got, err := store.Get("acme")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "acme", got.ApplicationID)
	assert.Equal(t, "token-abc", got.AuthToken)
	require.NotNil(t, got.RoomID)
	assert.Equal(t, int64(42), *got.RoomID)

	// The user record round-trips verbatim, extras included.
	require.NotNil(t, got.User)
	assert.Equal(t, "visitor-7", got.User.Identifier)
	assert.Equal(t, "free", got.User.Extras["plan"])
}

func TestPutOverwrites(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(sampleTuple("acme")))

	next := sampleTuple("acme")
	next.AuthToken = "token-new"
	require.NoError(t, store.Put(next))

	got, err := store.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, "token-new", got.AuthToken)
}

func TestTuplesAreScopedPerApplication(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(sampleTuple("acme")))

	other, err := store.Get("globex")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(sampleTuple("acme")))
	require.NoError(t, store.Clear("acme"))

	got, err := store.Get("acme")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing again is a no-op.
	require.NoError(t, store.Clear("acme"))
}

func TestCorruptTupleTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, logging.NewNop())
	require.NoError(t, err)

	path := filepath.Join(dir, "sessions", "acme.session")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	got, err := store.Get("acme")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRejectsPathologicalApplicationID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("../escape")
	assert.Error(t, err)

	err = store.Put(&types.SessionTuple{ApplicationID: "a/b"})
	assert.Error(t, err)
}
