package inspector

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/database"
	"kes/model"
	"kes/parsers"
	"kes/respond"
)

// maxImportSize bounds the multipart form of a CSV import.
const maxImportSize = 8 << 20

func ListHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListInspectors(r.Context(), db)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

func CreateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := model.Inspector{Active: true}
		if err := respond.Decode(r, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" {
			respond.Error(w, r, apperr.Validation("Le nom de l'inspecteur est requis."))
			return
		}
		if _, err := database.InsertInspector(r.Context(), db, &in); err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, in)
	}
}

// ImportHandler imports inspectors from an uploaded CSV. Rows sharing an email
// with a known inspector update it. Rows that fail are reported, the rest are kept.
func ImportHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			respond.Error(w, r, apperr.Wrap(apperr.ErrValidation, err, "Formulaire d'import invalide."))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respond.Error(w, r, apperr.Wrap(apperr.ErrValidation, err, "Lecture du fichier CSV impossible."))
			return
		}
		defer file.Close()

		records, err := parsers.ParseInspectorCSV(file)
		if err != nil {
			respond.Error(w, r, apperr.Wrap(apperr.ErrValidation, err, "Analyse du fichier CSV impossible : %v", err))
			return
		}
		if len(records) == 0 {
			respond.Error(w, r, apperr.Validation("Le fichier CSV ne contient aucun inspecteur."))
			return
		}

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("begin transaction: %w", err))
			return
		}
		defer tx.Rollback()

		var imported int
		var failures []string
		for i := range records {
			rec := &records[i]
			if err := database.UpsertInspectorInTx(r.Context(), tx, rec); err != nil {
				log.Errorf("inspector import: %s (%s): %v", rec.Name, rec.Email, err)
				failures = append(failures, fmt.Sprintf("%s : %s", rec.Name, apperr.Message(err)))
				continue
			}
			imported++
		}
		if err := tx.Commit(); err != nil {
			respond.Error(w, r, fmt.Errorf("commit inspectors: %w", err))
			return
		}

		message := fmt.Sprintf("Import terminé : %d inspecteur(s).", imported)
		if len(failures) > 0 {
			message += fmt.Sprintf("\n%d ligne(s) en erreur.", len(failures))
		}
		respond.JSON(w, http.StatusOK, map[string]interface{}{
			"message":  message,
			"imported": imported,
			"errors":   failures,
		})
	}
}

func PlanningHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		entries, err := database.GetInspectorPlanning(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, entries)
	}
}
