package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(small, []byte("Go developer"), 0600))

	assert.NoError(t, ValidateInputFile(small, 0))
	assert.NoError(t, ValidateInputFile(small, 1024))

	err := ValidateInputFile(small, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 4 B")

	assert.Error(t, ValidateInputFile("", 0))
	assert.Error(t, ValidateInputFile(filepath.Join(dir, "missing.txt"), 0))
	assert.Error(t, ValidateInputFile(dir, 0))
}

func TestValidateOutputFileCreatesDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "reports", "score.md")
	require.NoError(t, ValidateOutputFile(target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, ValidateOutputFile(""))
}

func TestFileKinds(t *testing.T) {
	assert.True(t, IsTextFile("cv.TXT"))
	assert.True(t, IsTextFile("jd.md"))
	assert.False(t, IsTextFile("cv.pdf"))
	assert.True(t, IsJSONFile("input.JSON"))
	assert.False(t, IsJSONFile("input.yaml"))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "10.0 MB", FormatFileSize(10*1024*1024))
}
