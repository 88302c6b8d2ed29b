package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/sakif/promo-studio/internal/scene"
)

// The layout names Montserrat and Roboto. Both map onto the embedded Go
// fonts so rendering never depends on what is installed on the host.
var (
	fontsOnce sync.Once
	fontsErr  error
	regular   *truetype.Font
	bold      *truetype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regular, fontsErr = truetype.Parse(goregular.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("render: parse regular font: %w", fontsErr)
			return
		}
		if bold, fontsErr = truetype.Parse(gobold.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("render: parse bold font: %w", fontsErr)
		}
	})
	return fontsErr
}

type faceKey struct {
	size float64
	bold bool
}

// faceSet caches faces for a single rasterization. Faces keep glyph caches
// and must not be shared between goroutines; parsed fonts can be.
type faceSet map[faceKey]font.Face

func (fs faceSet) face(f scene.Font) font.Face {
	size := f.Size
	if size <= 0 {
		size = 16
	}
	key := faceKey{size: size, bold: f.Bold}
	if face, ok := fs[key]; ok {
		return face
	}
	src := regular
	if f.Bold {
		src = bold
	}
	face := truetype.NewFace(src, &truetype.Options{Size: size, DPI: 72})
	fs[key] = face
	return face
}

func (fs faceSet) close() {
	for _, face := range fs {
		face.Close()
	}
}
