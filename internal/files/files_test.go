package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, Exists(dir))
	p := filepath.Join(dir, "a.txt")
	assert.False(t, Exists(p))
	require.NoError(t, os.WriteFile(p, nil, 0644))
	assert.True(t, Exists(p))
}

func TestTrimExt(t *testing.T) {
	assert.Equal(t, "data/train", TrimExt("data/train.json"))
	assert.Equal(t, "data/train", TrimExt("data/train.v1.json"))
	assert.Equal(t, "train", TrimExt("train"))
	assert.Equal(t, "../data/.hidden", TrimExt("../data/.hidden"))
}

func TestReplaceTildeInDir(t *testing.T) {
	got, err := ReplaceTildeInDir("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)

	got, err = ReplaceTildeInDir("~/cache")
	require.NoError(t, err)
	assert.NotContains(t, got, "~")
	assert.Equal(t, "cache", filepath.Base(got))
}
