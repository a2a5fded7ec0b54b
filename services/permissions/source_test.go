package permissions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSource(t *testing.T) {
	source := NewStaticSource(
		map[string][]string{"Moderator": {"posts.delete"}},
		map[uint][]string{42: {"Moderator"}},
	)

	roles, err := source.RolesForAccount(42)
	require.NoError(t, err)
	assert.Equal(t, []string{"Moderator"}, roles)

	roles, err = source.RolesForAccount(7)
	require.NoError(t, err)
	assert.Empty(t, roles)

	perms, err := source.PermissionsForRole("Moderator")
	require.NoError(t, err)
	assert.Equal(t, []string{"posts.delete"}, perms)
}

func TestNewStaticSourceFromFile(t *testing.T) {
	t.Run("valid grants file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "grants.yml")
		content := `
roles:
  Moderator: [posts.delete, comments.delete]
  Admin: [users.ban]
assignments:
  1: [Moderator, Admin]
  2: [Moderator]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		source, err := NewStaticSourceFromFile(path)
		require.NoError(t, err)

		roles, err := source.RolesForAccount(1)
		require.NoError(t, err)
		assert.Equal(t, []string{"Moderator", "Admin"}, roles)

		perms, err := source.PermissionsForRole("Moderator")
		require.NoError(t, err)
		assert.Equal(t, []string{"posts.delete", "comments.delete"}, perms)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewStaticSourceFromFile("/does/not/exist.yml")
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "grants.yml")
		require.NoError(t, os.WriteFile(path, []byte("roles: ["), 0o600))

		_, err := NewStaticSourceFromFile(path)
		assert.Error(t, err)
	})
}
