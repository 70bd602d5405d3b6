package equipment

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"kes/database"
	"kes/labelcode"
	"kes/model"
	"kes/respond"
)

// CreateHandler adds equipment to a case. The code is derived from the case
// name and the equipment type.
func CreateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var e model.Equipment
		if err := respond.Decode(r, &e); err != nil {
			respond.Error(w, r, err)
			return
		}
		e.CaseID = caseID

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("begin transaction: %w", err))
			return
		}
		defer tx.Rollback()
		if _, err := database.InsertEquipmentInTx(r.Context(), tx, &e); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := tx.Commit(); err != nil {
			respond.Error(w, r, fmt.Errorf("commit equipment: %w", err))
			return
		}
		respond.JSON(w, http.StatusCreated, e)
	}
}

func ListHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		items, err := database.ListEquipmentByCase(r.Context(), db, caseID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// ListLabelsHandler returns the labels of one equipment item with their public URLs.
func ListLabelsHandler(db *sqlx.DB, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if _, err := database.GetEquipment(r.Context(), db, id); err != nil {
			respond.Error(w, r, err)
			return
		}
		items, err := database.ListLabelDetailsByEquipment(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		for i := range items {
			items[i].URL = labelcode.URL(baseURL, items[i].Code)
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// TypesHandler lists the equipment types and their code prefixes.
func TypesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type entry struct {
			Type     string `json:"type"`
			Prefix   string `json:"prefix"`
			Template string `json:"template"`
		}
		out := make([]entry, 0, len(labelcode.EquipmentTypes))
		for _, t := range labelcode.EquipmentTypes {
			out = append(out, entry{Type: t, Prefix: labelcode.PrefixFor(t), Template: labelcode.TemplateKeyFor(t)})
		}
		respond.JSON(w, http.StatusOK, out)
	}
}
