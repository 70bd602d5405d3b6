package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/database"
	"kes/model"
	"kes/respond"
)

const maxUploadSize = 32 << 20

// Blobs stores report files.
type Blobs interface {
	Put(ctx context.Context, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

var fileTypes = map[string]string{
	".pdf":  model.FileTypePDF,
	".doc":  model.FileTypeWord,
	".docx": model.FileTypeWord,
}

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// FileType derives the report type from a filename. Only PDF and Word files are accepted.
func FileType(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	t, ok := fileTypes[ext]
	if !ok {
		return "", apperr.Validation("Seuls les fichiers PDF et Word (.pdf, .doc, .docx) sont acceptés : %s", filename)
	}
	return t, nil
}

type upload struct {
	name     string
	filename string
	fileType string
	data     []byte
}

func readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err, "Formulaire d'envoi invalide.")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err, "Aucun fichier de rapport reçu.")
	}
	defer file.Close()

	u := &upload{filename: filepath.Base(header.Filename)}
	if u.fileType, err = FileType(u.filename); err != nil {
		return nil, err
	}
	if declared := r.FormValue("file_type"); declared != "" && declared != u.fileType {
		return nil, apperr.Validation("Le type %s ne correspond pas au fichier %s", declared, u.filename)
	}
	if u.data, err = io.ReadAll(file); err != nil {
		return nil, fmt.Errorf("read report %s: %w", u.filename, err)
	}
	if len(u.data) == 0 {
		return nil, apperr.Validation("Le fichier %s est vide.", u.filename)
	}
	u.name = strings.TrimSpace(r.FormValue("name"))
	if u.name == "" {
		u.name = strings.TrimSuffix(u.filename, filepath.Ext(u.filename))
	}
	return u, nil
}

func optionalID(r *http.Request, field string) (*int64, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Validation("Identifiant invalide pour %s : %q", field, raw)
	}
	return &id, nil
}

// store saves the blob and its attachment row, then runs link in the same
// transaction. The blob is removed when anything after Put fails.
func store(ctx context.Context, db *sqlx.DB, blobs Blobs, u *upload, resModel string, link func(tx *sqlx.Tx, attachmentID int64) error) error {
	key, err := blobs.Put(ctx, u.data)
	if err != nil {
		return fmt.Errorf("store report %s: %w", u.filename, err)
	}
	ok := false
	defer func() {
		if !ok {
			if err := blobs.Delete(ctx, key); err != nil {
				log.Warnf("report %s: orphan blob %s: %v", u.filename, key, err)
			}
		}
	}()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	attachmentID, err := database.InsertAttachment(ctx, tx, &model.Attachment{
		Name:       u.filename,
		MimeType:   mimeTypes[strings.ToLower(filepath.Ext(u.filename))],
		StorageKey: key,
		ResModel:   resModel,
		Size:       int64(len(u.data)),
	})
	if err != nil {
		return err
	}
	if err := link(tx, attachmentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	ok = true
	return nil
}

// UploadHandler attaches a report to a label, an equipment item or a sub-case.
// A label report inherits the label's equipment and sub-case.
func UploadHandler(db *sqlx.DB, blobs Blobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := readUpload(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		rep := &model.Report{Name: u.name, Filename: u.filename, FileType: u.fileType}
		if rep.LabelID, err = optionalID(r, "label_id"); err == nil {
			if rep.EquipmentID, err = optionalID(r, "equipment_id"); err == nil {
				rep.SubCaseID, err = optionalID(r, "sub_case_id")
			}
		}
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if rep.LabelID != nil {
			d, err := database.GetLabelDetail(r.Context(), db, *rep.LabelID)
			if err != nil {
				respond.Error(w, r, err)
				return
			}
			rep.EquipmentID = &d.EquipmentID
			if d.SubCaseID != nil {
				rep.SubCaseID = d.SubCaseID
			}
		}
		if rep.LabelID == nil && rep.EquipmentID == nil && rep.SubCaseID == nil {
			respond.Error(w, r, apperr.Validation("Le rapport doit être rattaché à une étiquette, un équipement ou une sous-affaire."))
			return
		}

		err = store(r.Context(), db, blobs, u, model.AttachmentReport, func(tx *sqlx.Tx, attachmentID int64) error {
			rep.AttachmentID = attachmentID
			_, err := database.InsertReportInTx(r.Context(), tx, rep)
			return err
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		log.Infof("report %s stored (id %d)", rep.Filename, rep.ID)
		respond.JSON(w, http.StatusCreated, rep)
	}
}

// UploadCaseReportHandler attaches a report to a whole case.
func UploadCaseReportHandler(db *sqlx.DB, blobs Blobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if _, err := database.GetCase(r.Context(), db, caseID); err != nil {
			respond.Error(w, r, err)
			return
		}
		u, err := readUpload(r)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		rep := &model.CaseReport{CaseID: caseID, Name: u.name, Filename: u.filename, FileType: u.fileType}
		err = store(r.Context(), db, blobs, u, model.AttachmentCaseReport, func(tx *sqlx.Tx, attachmentID int64) error {
			rep.AttachmentID = attachmentID
			_, err := database.InsertCaseReportInTx(r.Context(), tx, rep)
			return err
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, rep)
	}
}

func ListCaseReportsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		items, err := database.ListCaseReports(r.Context(), db, caseID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

func ListLabelReportsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labelID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		items, err := database.ListReportsByLabel(r.Context(), db, labelID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// DownloadHandler redirects to the report's attachment.
func DownloadHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		rep, err := database.GetReport(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/content/%d?download=true", rep.AttachmentID), http.StatusFound)
	}
}
