package root_test

import (
	"testing"

	"github.com/rpggio/mcp-wrangler/internal/domain/root"
	"github.com/stretchr/testify/require"
)

func TestStore_AddListRemove(t *testing.T) {
	store := root.NewStore(root.Root{Name: "home", URI: "file:///home"})

	require.NoError(t, store.Add(root.Root{Name: "src", URI: "file:///src"}))
	require.Equal(t, []root.Root{
		{Name: "home", URI: "file:///home"},
		{Name: "src", URI: "file:///src"},
	}, store.List())

	removed, err := store.Remove("home")
	require.NoError(t, err)
	require.Equal(t, "file:///home", removed.URI)
	require.Equal(t, []root.Root{{Name: "src", URI: "file:///src"}}, store.List())
}

func TestStore_Rejects(t *testing.T) {
	store := root.NewStore()
	require.ErrorIs(t, store.Add(root.Root{Name: "x"}), root.ErrInvalid)

	require.NoError(t, store.Add(root.Root{Name: "x", URI: "file:///x"}))
	require.ErrorIs(t, store.Add(root.Root{Name: "x", URI: "file:///y"}), root.ErrExists)
	require.ErrorIs(t, store.Add(root.Root{Name: "y", URI: "file:///x"}), root.ErrExists)

	_, err := store.Remove("missing")
	require.ErrorIs(t, err, root.ErrNotFound)
}

func TestStore_ListIsCopy(t *testing.T) {
	store := root.NewStore(root.Root{Name: "a", URI: "file:///a"})
	list := store.List()
	list[0].Name = "changed"
	require.Equal(t, "a", store.List()[0].Name)
}
