package label

import (
	"bytes"
	"errors"
	"image"
	"io"
	"net/http"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/database"
	"kes/labelimage"
	"kes/model"
	"kes/respond"
)

const maxTemplateImageSize = 16 << 20

func layoutOf(t *model.LabelTemplate) labelimage.Layout {
	return labelimage.Layout{
		QRX: t.QRX, QRY: t.QRY, QRSize: t.QRSize,
		TextX: t.TextX, TextY: t.TextY,
		CodeX: t.CodeX, CodeY: t.CodeY,
		FontSize:  t.FontSize,
		FontColor: t.FontColor,
		Bold:      t.Bold,
	}
}

// checkLayout validates the layout and, when the template has an image,
// its placement inside it.
func checkLayout(layout labelimage.Layout, img []byte) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	if len(img) == 0 {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return apperr.Wrap(apperr.ErrUnavailable, err, "Format d'image non pris en charge.")
		}
		return apperr.Wrap(apperr.ErrValidation, err, "Image illisible.")
	}
	return layout.Fits(image.Pt(cfg.Width, cfg.Height))
}

func ListTemplatesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListTemplates(r.Context(), db)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// UpdateTemplateHandler saves the placement and style of a template.
func UpdateTemplateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		current, err := database.GetTemplate(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		next := *current
		if err := respond.Decode(r, &next); err != nil {
			respond.Error(w, r, err)
			return
		}
		next.ID = id
		if err := checkLayout(layoutOf(&next), current.Image); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := database.UpdateTemplateLayout(r.Context(), db, &next); err != nil {
			respond.Error(w, r, err)
			return
		}
		log.Infof("label template %s updated", current.Key)
		respond.Message(w, http.StatusOK, "Modèle d'étiquette enregistré.")
	}
}

// UpdateTemplateImageHandler replaces the base image of a template from the
// "file" field of a multipart form.
func UpdateTemplateImageHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		current, err := database.GetTemplate(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := r.ParseMultipartForm(maxTemplateImageSize); err != nil {
			respond.Error(w, r, apperr.Wrap(apperr.ErrValidation, err, "Formulaire d'envoi invalide."))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respond.Error(w, r, apperr.Wrap(apperr.ErrValidation, err, "Aucune image reçue."))
			return
		}
		defer file.Close()
		img, err := io.ReadAll(file)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := checkLayout(layoutOf(current), img); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := database.UpdateTemplateImage(r.Context(), db, id, img); err != nil {
			respond.Error(w, r, err)
			return
		}
		log.Infof("label template %s: new image (%d bytes)", current.Key, len(img))
		respond.Message(w, http.StatusOK, "Image du modèle enregistrée.")
	}
}
