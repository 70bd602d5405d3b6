package labelimage

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// boldScale enlarges the regular font when it stands in for a missing bold one.
const boldScale = 1.1

// FontSet names the truetype files used for label text.
type FontSet struct {
	Bold    string
	Regular string
}

// DefaultFontSet points at the DejaVu fonts shipped by most distributions.
func DefaultFontSet() FontSet {
	return FontSet{
		Bold:    "/usr/share/fonts/dejavu/DejaVuSans-Bold.ttf",
		Regular: "/usr/share/fonts/dejavu/DejaVuSans.ttf",
	}
}

// FontLoader tries to produce a face of the given pixel size.
type FontLoader func(size float64) (font.Face, bool)

func (c *Compositor) fontChain(bold bool) []FontLoader {
	var chain []FontLoader
	if bold {
		chain = append(chain,
			c.fileFace(c.fonts.Bold, 1),
			c.fileFace(c.fonts.Regular, boldScale),
		)
	}
	return append(chain, c.fileFace(c.fonts.Regular, 1), builtinFace)
}

func (c *Compositor) fileFace(path string, scale float64) FontLoader {
	return func(size float64) (font.Face, bool) {
		if path == "" {
			return nil, false
		}
		v, err := c.parsed.Get(path)
		if err != nil {
			log.Debugf("font %s unavailable: %v", path, err)
			return nil, false
		}
		face, err := opentype.NewFace(v.(*opentype.Font), &opentype.FaceOptions{
			Size:    size * scale,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			log.Warnf("font %s cannot be sized to %.1f: %v", path, size*scale, err)
			return nil, false
		}
		return face, true
	}
}

func builtinFace(float64) (font.Face, bool) {
	return basicfont.Face7x13, true
}

// pickFace returns the first face the chain produces. The built-in bitmap font
// is the last resort, so text is always drawn.
func pickFace(chain []FontLoader, size float64) font.Face {
	for _, load := range chain {
		if face, ok := load(size); ok {
			return face
		}
	}
	return basicfont.Face7x13
}

func parseFontFile(key interface{}) (interface{}, error) {
	path := key.(string)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}
