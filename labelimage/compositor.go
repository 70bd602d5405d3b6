package labelimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/bluele/gcache"
	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"kes/apperr"
)

const (
	// qrModulePixels is the box size of one QR module before resampling.
	qrModulePixels = 10
	baseCacheSize  = 32
)

// Mode is the color mode of a template once decoded.
type Mode int

const (
	ModeRGB Mode = iota
	ModeRGBA
)

type decodedBase struct {
	img  image.Image
	mode Mode
}

// Compositor renders labels onto template images. It is safe for concurrent use.
type Compositor struct {
	fonts  FontSet
	bases  gcache.Cache
	parsed gcache.Cache
}

func NewCompositor(fonts FontSet) *Compositor {
	return &Compositor{
		fonts:  fonts,
		bases:  gcache.New(baseCacheSize).LRU().Build(),
		parsed: gcache.New(4).LRU().LoaderFunc(parseFontFile).Build(),
	}
}

// Render draws the QR code of payload and the display fields onto the template.
// The result always has the template's dimensions.
func (c *Compositor) Render(tpl Template, payload string, fields Display) (image.Image, error) {
	if c == nil {
		return nil, apperr.Unavailable("La génération d'images d'étiquettes n'est pas disponible")
	}
	if err := tpl.Layout.Validate(); err != nil {
		return nil, err
	}
	base, err := c.decode(tpl)
	if err != nil {
		return nil, err
	}
	original := base.img.Bounds().Size()
	if err := tpl.Layout.fits(image.Rectangle{Max: original}); err != nil {
		return nil, err
	}

	canvas := imaging.Clone(base.img)

	qr, err := qrImage(payload, tpl.Layout.QRSize, base.mode == ModeRGBA)
	if err != nil {
		return nil, err
	}
	at := image.Pt(tpl.Layout.QRX, tpl.Layout.QRY)
	op := draw.Src
	if base.mode == ModeRGBA {
		// transparent QR background, so the QR is its own mask
		op = draw.Over
	}
	draw.Draw(canvas, qr.Bounds().Add(at), qr, image.Point{}, op)

	ink, _ := ParseColor(tpl.Layout.FontColor)
	face := pickFace(c.fontChain(tpl.Layout.Bold), tpl.Layout.FontSize)
	defer face.Close()
	if tpl.Layout.textEnabled() {
		drawText(canvas, face, ink, tpl.Layout.TextX, tpl.Layout.TextY, OverlayText(fields, tpl.Layout.truncateAt()))
	}
	if tpl.Layout.codeEnabled() && fields.Code != "" {
		drawText(canvas, face, ink, tpl.Layout.CodeX, tpl.Layout.CodeY, fields.Code)
	}

	if canvas.Bounds().Size() != original {
		return imaging.Resize(canvas, original.X, original.Y, imaging.Lanczos), nil
	}
	return canvas, nil
}

func (c *Compositor) decode(tpl Template) (*decodedBase, error) {
	if len(tpl.Image) == 0 {
		return nil, apperr.Configuration("Le modèle d'étiquette %s n'a pas d'image de base", tpl.Name)
	}
	if tpl.Key != "" {
		if v, err := c.bases.Get(tpl.Key); err == nil {
			return v.(*decodedBase), nil
		}
	}

	img, _, err := image.Decode(bytes.NewReader(tpl.Image))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, apperr.Wrap(apperr.ErrUnavailable, err, "Aucun décodeur pour l'image du modèle %s", tpl.Name)
		}
		return nil, apperr.Wrap(apperr.ErrConfiguration, err, "Image du modèle %s illisible", tpl.Name)
	}
	base := &decodedBase{img: img, mode: ModeRGBA}
	switch img.(type) {
	case *image.YCbCr, *image.RGBA:
		base.mode = ModeRGB
	case *image.NRGBA:
	default:
		base.img = imaging.Clone(img)
	}

	if tpl.Key != "" {
		_ = c.bases.Set(tpl.Key, base)
	}
	return base, nil
}

func qrImage(payload string, size int, transparent bool) (image.Image, error) {
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode QR payload: %w", err)
	}
	if transparent {
		q.BackgroundColor = color.Transparent
	}
	return imaging.Resize(q.Image(-qrModulePixels), size, size, imaging.Lanczos), nil
}

func drawText(dst draw.Image, face font.Face, ink color.Color, x, y int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// QRCodePNG renders text as a standalone QR code PNG.
func QRCodePNG(text string) ([]byte, error) {
	q, err := qrcode.New(text, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	return q.PNG(-qrModulePixels)
}

// EncodePNG serializes a rendered label.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode label png: %w", err)
	}
	return buf.Bytes(), nil
}
