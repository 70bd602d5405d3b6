package parsers

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SkipBOM drops a leading UTF-8 byte order mark.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(len(utf8BOM))
	if err == nil && bytes.Equal(peeked, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// DecodeText returns a UTF-8 reader over data. Input that is not valid UTF-8
// is read as Windows-1252, the default export encoding of French spreadsheets.
func DecodeText(data []byte) io.Reader {
	if utf8.Valid(data) {
		return SkipBOM(bytes.NewReader(data))
	}
	return transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder())
}

// getColIndex maps normalized header names to column positions. aliases maps
// each accepted header spelling to its canonical key.
func getColIndex(header []string, aliases map[string]string, required []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, colName := range header {
		name := strings.ToLower(strings.TrimSpace(colName))
		if key, ok := aliases[name]; ok {
			name = key
		}
		if _, dup := colIndex[name]; !dup {
			colIndex[name] = i
		}
	}
	for _, req := range required {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("colonne obligatoire manquante : %s", req)
		}
	}
	return colIndex, nil
}
