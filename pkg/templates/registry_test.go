package templates

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/pkg/errors"
)

func TestLoadAndRender(t *testing.T) {
	reg, err := Load(fstest.MapFS{
		"prompts/greeting.tmpl": {Data: []byte("  Hello {{.Name | upper}}\n")},
		"prompts/README.md":     {Data: []byte("ignored")},
	}, "test")
	require.NoError(t, err)

	assert.Equal(t, []string{"prompts/greeting"}, reg.List())

	out, err := reg.Render("prompts/greeting", map[string]string{"Name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ALICE", out)

	p, err := reg.Lookup("prompts/greeting")
	require.NoError(t, err)
	assert.Equal(t, "test/prompts/greeting.tmpl", p.Source)
}

func TestLoadRejectsBrokenTemplate(t *testing.T) {
	_, err := Load(fstest.MapFS{"prompts/bad.tmpl": {Data: []byte("{{.Name")}}, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompts/bad")
}

func TestMissingTemplate(t *testing.T) {
	reg, err := Load(fstest.MapFS{}, "test")
	require.NoError(t, err)

	_, err = reg.Render("prompts/missing", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func writePrompt(t *testing.T, dir, id, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(id)+".tmpl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestOverlay(t *testing.T) {
	reg, err := Load(fstest.MapFS{
		"prompts/a.tmpl": {Data: []byte("embedded a")},
		"prompts/b.tmpl": {Data: []byte("embedded b")},
	}, "embedded")
	require.NoError(t, err)

	dir := t.TempDir()
	writePrompt(t, dir, "prompts/b", "custom b")
	writePrompt(t, dir, "prompts/c", "custom c")

	n, err := reg.Overlay(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]string{
		"prompts/a": "embedded a",
		"prompts/b": "custom b",
		"prompts/c": "custom c",
	} {
		out, err := reg.Render(id, nil)
		require.NoError(t, err)
		assert.Equal(t, want, out, id)
	}
}

func TestOverlayBrokenFileKeepsRegistry(t *testing.T) {
	reg, err := Load(fstest.MapFS{"prompts/a.tmpl": {Data: []byte("embedded a")}}, "embedded")
	require.NoError(t, err)

	dir := t.TempDir()
	writePrompt(t, dir, "prompts/a", "custom a")
	writePrompt(t, dir, "prompts/z", "{{ broken")

	_, err = reg.Overlay(dir)
	require.Error(t, err)

	out, err := reg.Render("prompts/a", nil)
	require.NoError(t, err)
	assert.Equal(t, "embedded a", out)
}

func TestOverlayMissingDir(t *testing.T) {
	reg, err := Load(fstest.MapFS{}, "embedded")
	require.NoError(t, err)

	_, err = reg.Overlay(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestEmbeddedPromptsParse(t *testing.T) {
	ids := Get().List()

	for _, id := range []string{
		"prompts/conversational/system",
		"prompts/conversational/extract_params",
		"prompts/conversational/identify_strategy",
		"prompts/conversational/chat",
		"prompts/conversational/validation_feedback",
		"prompts/conversational/data_availability",
		"prompts/conversational/visualization",
		"prompts/conversational/indicator",
		"prompts/conversational/data_error",
		"prompts/conversational/data_unknown",
		"prompts/validation/system",
		"prompts/validation/consistency",
	} {
		assert.Contains(t, ids, id)
	}
}
