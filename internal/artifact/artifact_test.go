package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "pdf"},
		{"archive.tar.GZ", "gz"},
		{"noext", ""},
		{".bashrc", ""},
		{"trailing.", ""},
		{"dir/file.TXT", "txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Extension(tt.filename), "Extension(%q)", tt.filename)
	}
}

func TestSafeBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "report.pdf", SafeBase("report.pdf"))
	assert.Equal(t, "passwd", SafeBase("../../etc/passwd"))
	assert.Equal(t, "file", SafeBase("/abs/path/file"))
	assert.Equal(t, "", SafeBase("."))
	assert.Equal(t, "", SafeBase("/"))
}

func TestWriteOverwrites(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "injects", "alpha")
	require.NoError(t, Write(dir, "resp.txt", []byte("first")))
	require.NoError(t, Write(dir, "resp.txt", []byte("second")))

	data, err := os.ReadFile(filepath.Join(dir, "resp.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}
