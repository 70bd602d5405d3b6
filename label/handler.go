package label

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kes/apperr"
	"kes/labels"
	"kes/respond"
)

func generate(fn func(r *http.Request, id int64) (*labels.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		res, err := fn(r, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, res)
	}
}

func GenerateForEquipmentHandler(svc *labels.Service) http.HandlerFunc {
	return generate(func(r *http.Request, id int64) (*labels.Result, error) {
		return svc.GenerateForEquipment(r.Context(), id)
	})
}

func GenerateForLineHandler(svc *labels.Service) http.HandlerFunc {
	return generate(func(r *http.Request, id int64) (*labels.Result, error) {
		return svc.GenerateForProductLine(r.Context(), id)
	})
}

func GenerateForSubCaseHandler(svc *labels.Service) http.HandlerFunc {
	return generate(func(r *http.Request, id int64) (*labels.Result, error) {
		return svc.GenerateForSubCase(r.Context(), id)
	})
}

func GenerateForCaseHandler(svc *labels.Service) http.HandlerFunc {
	return generate(func(r *http.Request, id int64) (*labels.Result, error) {
		return svc.GenerateForCase(r.Context(), id)
	})
}

// ArchiveHandler packs the posted label ids into a zip and returns its download URL.
func ArchiveHandler(svc *labels.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []int64 `json:"ids"`
		}
		if err := respond.Decode(r, &body); err != nil {
			respond.Error(w, r, err)
			return
		}
		dl, err := svc.DownloadArchive(r.Context(), body.IDs)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, dl)
	}
}

func SubCaseArchiveHandler(svc *labels.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		dl, err := svc.DownloadSubCaseArchive(r.Context(), id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, dl)
	}
}

// ImageHandler streams the PNG of one label.
func ImageHandler(svc *labels.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		data, err := svc.RenderLabel(r.Context(), id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(data)
	}
}

func QRCodeHandler(svc *labels.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		dl, err := svc.DownloadQRCode(r.Context(), id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, dl)
	}
}

// ScanHandler resolves the text read from a QR code.
func ScanHandler(svc *labels.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Payload string `json:"payload"`
		}
		if err := respond.Decode(r, &body); err != nil {
			respond.Error(w, r, err)
			return
		}
		d, err := svc.Scan(r.Context(), body.Payload)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, d)
	}
}

// LookupHandler serves the URL printed in label QR codes. The code spans
// several path segments.
func LookupHandler(svc *labels.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.Trim(chi.URLParam(r, "*"), "/")
		if code == "" {
			respond.Error(w, r, apperr.Validation("Code d'étiquette manquant."))
			return
		}
		d, err := svc.Lookup(r.Context(), code)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, d)
	}
}
