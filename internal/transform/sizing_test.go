package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/fileconv/internal/apperr"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestResolveSize(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		opts  ResizeOptions
		max   int
		wantW int
		wantH int
	}{
		{"percentage halves", 200, 100, ResizeOptions{Percentage: floatp(50)}, 800, 100, 50},
		{"percentage wins over width", 200, 100, ResizeOptions{Percentage: floatp(10), Width: intp(5)}, 800, 20, 10},
		{"percentage rounds to at least one", 3, 3, ResizeOptions{Percentage: floatp(1)}, 800, 1, 1},
		{"percentage may upscale", 10, 20, ResizeOptions{Percentage: floatp(1000)}, 800, 100, 200},
		{"explicit both", 200, 100, ResizeOptions{Width: intp(7), Height: intp(900)}, 800, 7, 900},
		{"width only keeps ratio", 200, 100, ResizeOptions{Width: intp(50)}, 800, 50, 25},
		{"width only rounds", 3, 2, ResizeOptions{Width: intp(2)}, 800, 2, 1},
		{"height only keeps ratio", 200, 100, ResizeOptions{Height: intp(10)}, 800, 20, 10},
		{"height only never zero width", 1000, 10, ResizeOptions{Height: intp(1)}, 800, 100, 1},
		{"default downscales wide image", 1600, 900, ResizeOptions{}, 800, 800, 450},
		{"default never upscales", 400, 300, ResizeOptions{}, 800, 400, 300},
		{"default at exact max unchanged", 800, 10, ResizeOptions{}, 800, 800, 10},
		{"default disabled", 4000, 3000, ResizeOptions{}, 0, 4000, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ResolveSize(tt.w, tt.h, tt.opts, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestResolveSizeAspectRatio(t *testing.T) {
	for _, dims := range [][2]int{{1920, 1080}, {333, 777}, {5000, 17}, {801, 799}} {
		w, h := ResolveSize(dims[0], dims[1], ResizeOptions{}, 800)
		assert.LessOrEqual(t, w, 800)
		orig := float64(dims[0]) / float64(dims[1])
		got := float64(w) / float64(h)
		// one pixel of rounding on the short side
		assert.InDelta(t, orig, got, orig/float64(h)+1e-9)
	}
}

func TestResizeOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    ResizeOptions
		wantErr bool
	}{
		{"defaults", ResizeOptions{Mode: Lossless}, false},
		{"lossy", ResizeOptions{Mode: Lossy, JPEGQuality: 200}, false},
		{"zero percentage", ResizeOptions{Percentage: floatp(0), Mode: Lossless}, true},
		{"negative percentage", ResizeOptions{Percentage: floatp(-5), Mode: Lossless}, true},
		{"percentage over limit", ResizeOptions{Percentage: floatp(1000.5), Mode: Lossless}, true},
		{"percentage at limit", ResizeOptions{Percentage: floatp(1000), Mode: Lossless}, false},
		{"zero width with height", ResizeOptions{Width: intp(0), Height: intp(5), Mode: Lossless}, true},
		{"negative height", ResizeOptions{Height: intp(-1), Mode: Lossless}, true},
		{"zero width", ResizeOptions{Width: intp(0), Mode: Lossless}, true},
		{"percentage checked instead of width", ResizeOptions{Percentage: floatp(50), Width: intp(-3), Mode: Lossless}, false},
		{"unknown mode", ResizeOptions{Mode: "best"}, true},
		{"empty mode", ResizeOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindParameter, apperr.KindOf(err))
		})
	}
}

func TestClampJPEGQuality(t *testing.T) {
	assert.Equal(t, 1, ClampJPEGQuality(-10))
	assert.Equal(t, 1, ClampJPEGQuality(0))
	assert.Equal(t, 50, ClampJPEGQuality(50))
	assert.Equal(t, 95, ClampJPEGQuality(96))
	assert.Equal(t, 95, ClampJPEGQuality(200))
}
