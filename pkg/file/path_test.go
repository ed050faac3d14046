package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "dir/clip.json", ReplaceExt("dir/clip.mp4", "json"))
	assert.Equal(t, "dir/clip.json", ReplaceExt("dir/clip", ".json"))
	assert.Equal(t, "", ReplaceExt("", ".json"))
}

func TestEnsureExt(t *testing.T) {
	assert.Equal(t, "annotations.json", EnsureExt("annotations", ".json"))
	assert.Equal(t, "annotations.json", EnsureExt("annotations.json", "json"))
	assert.Equal(t, "a.JSON", EnsureExt("a.JSON", ".json"))
	assert.Equal(t, "a.txt.json", EnsureExt("a.txt", ".json"))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "etc_passwd", SafeName("etc/passwd"))
	assert.Equal(t, "_secret", SafeName("../secret"))
	assert.Equal(t, "run 1", SafeName("  run 1 "))
	assert.Equal(t, "", SafeName("..."))
}
