package labelzip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kes/apperr"
)

const (
	// MimeType of the archives produced by Pack.
	MimeType    = "application/zip"
	defaultName = "etiquettes"
)

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// Item is one label to pack. Scope is the sub-case name the label belongs to, if any.
type Item struct {
	Code   string
	Scope  string
	Render func() (image.Image, error)
}

// Packager renders items and writes them into a single zip archive.
type Packager struct {
	workers int
	now     func() time.Time
}

// NewPackager returns a packager rendering at most workers items at once.
// workers <= 0 means one per CPU.
func NewPackager(workers int) *Packager {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Packager{workers: workers, now: time.Now}
}

// EntryName is the flat archive entry of a label code.
func EntryName(code string) string {
	return "etiquette_" + pathSeparators.Replace(code) + ".png"
}

// Pack renders every item and returns the zip bytes. Entries keep the input order.
// A single failing item aborts the whole archive.
func (p *Packager) Pack(items []Item) ([]byte, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("Aucune étiquette sélectionnée.")
	}

	encoded := make([][]byte, len(items))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, item := range items {
		g.Go(func() error {
			data, err := encode(item)
			if err != nil {
				return err
			}
			encoded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("labelzip: batch of %d aborted: %v", len(items), err)
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	modified := p.now()
	for i, item := range items {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     EntryName(item.Code),
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create zip entry for %s: %w", item.Code, err)
		}
		if _, err := w.Write(encoded[i]); err != nil {
			return nil, fmt.Errorf("write zip entry for %s: %w", item.Code, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip archive: %w", err)
	}
	return buf.Bytes(), nil
}

func encode(item Item) ([]byte, error) {
	if item.Render == nil {
		return nil, fmt.Errorf("label %s: no renderer", item.Code)
	}
	img, err := item.Render()
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, apperr.Wrap(ae.Kind, err, "Erreur avec l'étiquette %s : %s", item.Code, ae.Message)
		}
		return nil, fmt.Errorf("render label %s: %w", item.Code, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode label %s: %w", item.Code, err)
	}
	return buf.Bytes(), nil
}

// ArchiveName names the archive after the shared scope of its labels.
// scopes holds one entry per label, possibly empty.
func ArchiveName(scopes []string, now time.Time) string {
	name := ""
	distinct := map[string]struct{}{}
	for _, s := range scopes {
		if s != "" {
			distinct[s] = struct{}{}
			name = s
		}
	}
	switch {
	case len(distinct) == 1:
		name = pathSeparators.Replace(name)
	case len(scopes) == 1:
		name = defaultName
	default:
		name = defaultName + "_" + now.Format("20060102_150405")
	}
	return name + ".zip"
}
