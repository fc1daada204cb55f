package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		filename string
		category Category
		want     bool
	}{
		{"photo.png", CategoryImage, true},
		{"photo.JPG", CategoryImage, true},
		{"photo.jpeg", CategoryImage, true},
		{"anim.gif", CategoryImage, true},
		{"pic.WebP", CategoryImage, true},
		{"archive.tar.png", CategoryImage, true},
		{"png", CategoryImage, false},
		{"photo.", CategoryImage, false},
		{"photo.bmp", CategoryImage, false},
		{"doc.pdf", CategoryImage, false},
		{"doc.pdf", CategoryPDF, true},
		{"DOC.PDF", CategoryPDF, true},
		{"photo.png", CategoryPDF, false},
		{"", CategoryPDF, false},
		{"doc.pdf", Category("video"), false},
	}
	for _, tt := range tests {
		t.Run(tt.filename+"/"+string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.filename, tt.category))
		})
	}
}

func TestExtension(t *testing.T) {
	ext, ok := Extension("a.b.JPEG")
	assert.True(t, ok)
	assert.Equal(t, "jpeg", ext)
	_, ok = Extension("noext")
	assert.False(t, ok)
	assert.Equal(t, []string{"pdf"}, Extensions(CategoryPDF))
	assert.Nil(t, Extensions("other"))
}

func TestSniff(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, b []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, b, 0o644))
		return p
	}
	png := write("a.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"))
	pdf := write("a.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"))
	txt := write("a.jpg", []byte("just some text"))

	d := New()
	info, err := d.Sniff(png, CategoryImage)
	require.NoError(t, err)
	assert.True(t, info.Supported)
	assert.Equal(t, "image/png", info.MIMEType)

	info, err = d.Sniff(pdf, CategoryPDF)
	require.NoError(t, err)
	assert.True(t, info.Supported)

	info, err = d.Sniff(pdf, CategoryImage)
	require.NoError(t, err)
	assert.False(t, info.Supported)

	info, err = d.Sniff(txt, CategoryImage)
	require.NoError(t, err)
	assert.False(t, info.Supported)

	_, err = d.Sniff(filepath.Join(dir, "missing"), CategoryImage)
	assert.Error(t, err)
}
