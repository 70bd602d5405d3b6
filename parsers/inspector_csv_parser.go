package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"kes/model"
)

var inspectorHeaders = map[string]string{
	"nom":         "name",
	"name":        "name",
	"email":       "email",
	"e-mail":      "email",
	"mail":        "email",
	"téléphone":   "phone",
	"telephone":   "phone",
	"phone":       "phone",
	"fonction":    "job_title",
	"poste":       "job_title",
	"job_title":   "job_title",
	"description": "description",
	"actif":       "active",
	"active":      "active",
}

// ParseInspectorCSV reads an inspector export. Only the name column is
// required; the separator may be ',' or ';'. Rows without a name are skipped.
func ParseInspectorCSV(r io.Reader) ([]model.Inspector, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lecture du fichier CSV : %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("le fichier CSV est vide")
	}

	reader := csv.NewReader(DecodeText(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.Comma = sniffSeparator(data)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("lecture de l'en-tête CSV : %w", err)
	}
	colIndex, err := getColIndex(header, inspectorHeaders, []string{"name"})
	if err != nil {
		return nil, err
	}

	var records []model.Inspector
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("inspector CSV line %d unreadable, skipped: %v", line, err)
			continue
		}

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		name := get("name")
		if name == "" {
			log.Warnf("inspector CSV line %d has no name, skipped", line)
			continue
		}
		records = append(records, model.Inspector{
			Name:        name,
			Email:       strings.ToLower(get("email")),
			Phone:       get("phone"),
			JobTitle:    get("job_title"),
			Description: get("description"),
			Active:      parseActive(get("active")),
		})
	}
	return records, nil
}

func sniffSeparator(data []byte) rune {
	firstLine := string(data)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

// parseActive treats an empty cell as active.
func parseActive(v string) bool {
	switch strings.ToLower(v) {
	case "0", "non", "no", "false", "faux", "inactif":
		return false
	default:
		return true
	}
}
