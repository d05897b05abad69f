package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves the test into a fresh directory so generated files land
// there instead of the package directory.
func chdirTemp(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(originalWD)) })

	return tempDir
}

func TestInitCmd_WritesConfigFile(t *testing.T) {
	tempDir := chdirTemp(t)

	root, _ := newTestRoot(newInitCmd())
	root.SetArgs([]string{"init"})

	require.NoError(t, root.Execute())

	contents, err := os.ReadFile(filepath.Join(tempDir, configFileName))
	require.NoError(t, err)
	assert.NotEmpty(t, contents)
	assert.Contains(t, string(contents), "create:")
	assert.Contains(t, string(contents), "log:")
}

func TestInitCmd_ErrorsWhenFileExists(t *testing.T) {
	tempDir := chdirTemp(t)
	existing := filepath.Join(tempDir, configFileName)
	require.NoError(t, os.WriteFile(existing, []byte("existing: true\n"), 0o600))

	root, _ := newTestRoot(newInitCmd())
	root.SetArgs([]string{"init"})

	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write config file")

	// The existing file is left untouched.
	contents, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, "existing: true\n", string(contents))
}
