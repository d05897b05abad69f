package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "codesift.dev/pkg/codesift/internal/model"
)

func TestMergeCmd(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	out := filepath.Join(dir, "merged.json")

	saveSourceFixture(t, first,
		sourceFixture(t, "a.c", "C", "int shared(void) { return 1; }", "shared"),
		sourceFixture(t, "a.c", "C", "int only_a(void) { return 0; }", "only_a"),
	)
	saveSourceFixture(t, second,
		sourceFixture(t, "a.c", "C", "int shared(void) { return 2; }", "shared"),
	)

	root, output := newTestRoot(newMergeCmd())
	root.SetArgs([]string{"merge", out, first, second, "--log-file", testLogFile(t), "--plain"})

	require.NoError(t, root.Execute())
	assert.Contains(t, output.String(), "Merged 2 dataset(s)")

	functions, err := datasetStore.LoadSource(m.Path(out))
	require.NoError(t, err)
	require.Len(t, functions, 2)

	// The same uid in a later input wins.
	byUID := make(map[string]m.SourceFunction, len(functions))
	for _, fn := range functions {
		byUID[fn.UID] = fn
	}
	require.Contains(t, byUID, "a.c::shared")
	assert.Contains(t, byUID["a.c::shared"].Definition, "return 2")
	require.Contains(t, byUID, "a.c::only_a")
}

func TestMergeCmd_RejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	saveSourceFixture(t, input, sourceFixture(t, "a.c", "C", "int a(void) { return 0; }", "a"))

	root, _ := newTestRoot(newMergeCmd())
	root.SetArgs([]string{"merge", filepath.Join(dir, "out.xyz"), input, "--log-file", testLogFile(t), "--plain"})

	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestMergeCmd_MissingInput(t *testing.T) {
	dir := t.TempDir()

	root, _ := newTestRoot(newMergeCmd())
	root.SetArgs([]string{
		"merge", filepath.Join(dir, "out.json"), filepath.Join(dir, "missing.json"),
		"--log-file", testLogFile(t), "--plain",
	})

	require.Error(t, root.Execute())
}
