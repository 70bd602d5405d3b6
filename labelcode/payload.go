package labelcode

import (
	"fmt"
	"regexp"
	"strings"
)

// LabelURLPath is the path segment under which a label is published in its QR URL.
const LabelURLPath = "/inspection/etiquette/"

var codePattern = regexp.MustCompile(`/ET[0-9]{2,}_[A-Z0-9]{4}$`)

// Scan is the result of parsing a scanned QR payload.
type Scan struct {
	Code    string
	Client  string
	Product string
}

// ParsePayload extracts the label code from scanned QR text. Three shapes are
// accepted: the multi-line payload printed on labels, the label URL, or a bare code.
func ParsePayload(text string) (*Scan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty payload")
	}

	if idx := strings.Index(text, LabelURLPath); idx >= 0 {
		code := text[idx+len(LabelURLPath):]
		if q := strings.IndexAny(code, "?#"); q >= 0 {
			code = code[:q]
		}
		return validate(&Scan{Code: code})
	}

	lines := strings.Split(text, "\n")
	result := &Scan{Code: strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Client:"):
			result.Client = strings.TrimSpace(strings.TrimPrefix(line, "Client:"))
		case strings.HasPrefix(line, "Produit:"):
			result.Product = strings.TrimSpace(strings.TrimPrefix(line, "Produit:"))
		}
	}
	return validate(result)
}

func validate(s *Scan) (*Scan, error) {
	if !codePattern.MatchString(s.Code) {
		return nil, fmt.Errorf("%q is not a label code", s.Code)
	}
	return s, nil
}

// Payload builds the text encoded in a label's QR code.
func Payload(code, client, product string) string {
	return fmt.Sprintf("%s\nClient: %s\nProduit: %s", code, client, product)
}

// URL builds the public URL of a label.
func URL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + LabelURLPath + code
}
