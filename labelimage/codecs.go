//go:build !nolabelcodecs

package labelimage

// Extra template formats. Builds tagged nolabelcodecs report these formats
// as unavailable instead.
import (
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
