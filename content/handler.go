package content

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"

	"kes/database"
	"kes/respond"
)

// Blobs reads stored attachment content.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Handler serves an attachment. With ?download=true the browser is asked to
// save it instead of displaying it.
func Handler(db *sqlx.DB, blobs Blobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		a, err := database.GetAttachment(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		data, err := blobs.Get(r.Context(), a.StorageKey)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		contentType := a.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		disposition := "inline"
		if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
			disposition = "attachment"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": a.Name}))
		if _, err := w.Write(data); err != nil {
			respond.Error(w, r, fmt.Errorf("write attachment %d: %w", id, err))
		}
	}
}
