package affaire

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/database"
	"kes/model"
	"kes/respond"
)

type caseDetail struct {
	*model.Case
	SubCases  []model.SubCase   `json:"subCases"`
	Equipment []model.Equipment `json:"equipment"`
}

// CreateCaseHandler stores a case and, in the same transaction, its inspectors.
func CreateCaseHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c model.Case
		if err := respond.Decode(r, &c); err != nil {
			respond.Error(w, r, err)
			return
		}
		if c.ClientName == "" {
			respond.Error(w, r, apperr.Validation("Le client est requis."))
			return
		}

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("begin transaction: %w", err))
			return
		}
		defer tx.Rollback()

		if _, err := database.InsertCaseInTx(r.Context(), tx, &c); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := tx.Commit(); err != nil {
			respond.Error(w, r, fmt.Errorf("commit case: %w", err))
			return
		}
		log.Infof("case %s created (id %d)", c.Name, c.ID)
		respond.JSON(w, http.StatusCreated, c)
	}
}

func ListCasesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cases, err := database.ListCases(r.Context(), db)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, cases)
	}
}

// GetCaseHandler returns a case with its sub-cases and equipment.
func GetCaseHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		c, err := database.GetCase(r.Context(), db, id)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		out := caseDetail{Case: c}
		if out.SubCases, err = database.ListSubCases(r.Context(), db, id); err != nil {
			respond.Error(w, r, err)
			return
		}
		if out.Equipment, err = database.ListEquipmentByCase(r.Context(), db, id); err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, out)
	}
}

// UpdateStateHandler moves a case through draft, in_progress and done.
func UpdateStateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var body struct {
			State string `json:"state"`
		}
		if err := respond.Decode(r, &body); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := database.UpdateCaseState(r.Context(), db, id, body.State); err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.Message(w, http.StatusOK, "État de l'affaire mis à jour.")
	}
}

func CreateSubCaseHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var sc model.SubCase
		if err := respond.Decode(r, &sc); err != nil {
			respond.Error(w, r, err)
			return
		}
		sc.CaseID = caseID

		tx, err := db.BeginTxx(r.Context(), nil)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("begin transaction: %w", err))
			return
		}
		defer tx.Rollback()
		if _, err := database.InsertSubCaseInTx(r.Context(), tx, &sc); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := tx.Commit(); err != nil {
			respond.Error(w, r, fmt.Errorf("commit sub-case: %w", err))
			return
		}
		respond.JSON(w, http.StatusCreated, sc)
	}
}

func ListSubCasesHandler(db *sqlx.DB) http.HandlerFunc {
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
		items, err := database.ListSubCases(r.Context(), db, caseID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// CreateLineHandler adds a product line to a sub-case.
func CreateLineHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subCaseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var pl model.ProductLine
		if err := respond.Decode(r, &pl); err != nil {
			respond.Error(w, r, err)
			return
		}
		pl.SubCaseID = subCaseID
		if _, err := database.InsertProductLine(r.Context(), db, &pl); err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusCreated, pl)
	}
}

// AssignInspectorHandler adds an inspector to a sub-case with a role.
func AssignInspectorHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subCaseID, err := respond.ID(r, "id")
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		var body struct {
			InspectorID int64  `json:"inspectorId"`
			Role        string `json:"role"`
		}
		if err := respond.Decode(r, &body); err != nil {
			respond.Error(w, r, err)
			return
		}
		if body.Role == "" {
			body.Role = model.RoleSiteReport
		}
		if _, err := database.GetSubCase(r.Context(), db, subCaseID); err != nil {
			respond.Error(w, r, err)
			return
		}
		if _, err := database.GetInspector(r.Context(), db, body.InspectorID); err != nil {
			respond.Error(w, r, err)
			return
		}
		if err := database.AssignSubCaseInspector(r.Context(), db, subCaseID, body.InspectorID, body.Role); err != nil {
			respond.Error(w, r, err)
			return
		}
		items, err := database.ListSubCaseInspectors(r.Context(), db, subCaseID)
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}
