package labelimage

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"kes/apperr"
)

// DefaultTruncate is the per-field character limit of the overlay text.
const DefaultTruncate = 8

// Layout holds the pixel placement and style of a label template.
// A zero text or code position disables that text.
type Layout struct {
	QRX        int     `json:"qrX" yaml:"qr_x"`
	QRY        int     `json:"qrY" yaml:"qr_y"`
	QRSize     int     `json:"qrSize" yaml:"qr_size"`
	TextX      int     `json:"textX" yaml:"text_x"`
	TextY      int     `json:"textY" yaml:"text_y"`
	CodeX      int     `json:"codeX" yaml:"code_x"`
	CodeY      int     `json:"codeY" yaml:"code_y"`
	FontSize   float64 `json:"fontSize" yaml:"font_size"`
	FontColor  string  `json:"fontColor" yaml:"font_color"`
	Bold       bool    `json:"bold" yaml:"bold"`
	TruncateAt int     `json:"truncateAt" yaml:"truncate_at"`
}

// DefaultLayout mirrors the defaults of a freshly created template.
func DefaultLayout() Layout {
	return Layout{
		QRX: 50, QRY: 50, QRSize: 100,
		TextX: 200, TextY: 80,
		FontSize:   12,
		FontColor:  "#000000",
		TruncateAt: DefaultTruncate,
	}
}

// Template is a base image plus its layout. Key identifies the image revision
// for caching; an empty key disables the cache.
type Template struct {
	Key    string
	Name   string
	Image  []byte
	Layout Layout
}

// Display carries the per-label fields drawn on the template.
type Display struct {
	Code     string
	Client   string
	Site     string
	Sequence int
}

// Validate checks the layout on its own, without the image bounds.
func (l Layout) Validate() error {
	if l.QRSize <= 0 {
		return apperr.Configuration("La taille du QR code doit être positive (%d)", l.QRSize)
	}
	if l.QRX < 0 || l.QRY < 0 || l.TextX < 0 || l.TextY < 0 || l.CodeX < 0 || l.CodeY < 0 {
		return apperr.Configuration("Les positions du modèle ne peuvent pas être négatives")
	}
	if l.FontSize <= 0 {
		return apperr.Configuration("La taille de police doit être positive (%g)", l.FontSize)
	}
	if l.TruncateAt < 0 {
		return apperr.Configuration("La longueur maximale des champs ne peut pas être négative")
	}
	if _, err := ParseColor(l.FontColor); err != nil {
		return apperr.Wrap(apperr.ErrConfiguration, err, "Couleur de police invalide %q", l.FontColor)
	}
	return nil
}

// fits reports whether every drawn element starts inside bounds and the QR
// square lies fully within them.
func (l Layout) fits(bounds image.Rectangle) error {
	qr := image.Rect(l.QRX, l.QRY, l.QRX+l.QRSize, l.QRY+l.QRSize)
	if !qr.In(bounds) {
		return apperr.Configuration("Le QR code %v dépasse l'image du modèle %v", qr, bounds)
	}
	if l.textEnabled() && !image.Pt(l.TextX, l.TextY).In(bounds) {
		return apperr.Configuration("La position du texte (%d,%d) est hors de l'image %v", l.TextX, l.TextY, bounds)
	}
	if l.codeEnabled() && !image.Pt(l.CodeX, l.CodeY).In(bounds) {
		return apperr.Configuration("La position du code (%d,%d) est hors de l'image %v", l.CodeX, l.CodeY, bounds)
	}
	return nil
}

// Fits checks the layout against a template image of the given size.
func (l Layout) Fits(size image.Point) error {
	return l.fits(image.Rectangle{Max: size})
}

func (l Layout) textEnabled() bool { return l.TextX > 0 && l.TextY > 0 }
func (l Layout) codeEnabled() bool { return l.CodeX > 0 && l.CodeY > 0 }

func (l Layout) truncateAt() int {
	if l.TruncateAt == 0 {
		return DefaultTruncate
	}
	return l.TruncateAt
}

// OverlayText formats "{client}/{site}/{sequence}" with each text field cut to limit characters.
func OverlayText(d Display, limit int) string {
	return fmt.Sprintf("%s/%s/%d", truncate(d.Client, limit), truncate(d.Site, limit), d.Sequence)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit])
	}
	return s
}

// ParseColor parses #RGB and #RRGGBB colors.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("expected #RGB or #RRGGBB, got %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
