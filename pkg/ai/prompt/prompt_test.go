package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Abraxas-365/chatmemory/pkg/ai/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  You answer in haiku.\n"), 0o644))

	p := Load(path)
	assert.Equal(t, "You answer in haiku.", p.Text())
	assert.Equal(t, path, p.Source())
	assert.Equal(t, llm.NewSystemMessage("You answer in haiku."), p.SystemMessage())
}

func TestLoad_Fallbacks(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o644))

	for name, path := range map[string]string{
		"no path":      "",
		"missing file": filepath.Join(dir, "missing.txt"),
		"empty file":   empty,
	} {
		t.Run(name, func(t *testing.T) {
			p := Load(path)
			assert.Equal(t, DefaultText, p.Text())
			assert.Equal(t, "default", p.Source())
			assert.True(t, p.SystemMessage().IsSystem())
		})
	}
}

func TestStatic(t *testing.T) {
	assert.Equal(t, "x", Static("x").Text())
}
