package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"kes/apperr"
	"kes/model"
)

const caseColumns = `id, name, order_ref, client_name, site, location, manager_id,
	intervention_start, intervention_end, writing_date, alert_period, next_inspection, state, created_at`

// caseNumber extracts NNN from "I<NNN>" or "<order>/I<NNN>".
func caseNumber(name string) (int, bool) {
	last := name[strings.LastIndex(name, "/")+1:]
	if !strings.HasPrefix(last, "I") {
		return 0, false
	}
	n, err := strconv.Atoi(last[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// InsertCaseInTx stores a new case. An empty name is numbered from the CASE
// sequence, prefixed by the order reference when there is one.
func InsertCaseInTx(ctx context.Context, tx *sqlx.Tx, c *model.Case) (int64, error) {
	if c.Name == "" {
		seq, err := NextSequenceInTx(ctx, tx, "CASE", "I", 3)
		if err != nil {
			return 0, err
		}
		c.Name = seq
		if c.OrderRef != "" {
			c.Name = c.OrderRef + "/" + seq
		}
	}
	if c.State == "" {
		c.State = model.StateDraft
	}
	if c.AlertPeriod == "" {
		c.AlertPeriod = model.AlertOneYear
	}
	c.NextInspection = model.NextInspectionDate(c.InterventionEnd, c.AlertPeriod)

	const q = `
		INSERT INTO cases (name, order_ref, client_name, site, location, manager_id,
			intervention_start, intervention_end, writing_date, alert_period, next_inspection, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.Name, c.OrderRef, c.ClientName, c.Site, c.Location, nullableID(c.ManagerID),
		c.InterventionStart, c.InterventionEnd, c.WritingDate, c.AlertPeriod, c.NextInspection, c.State)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, apperr.Validation("L'affaire %s existe déjà", c.Name)
		}
		return 0, fmt.Errorf("InsertCaseInTx (Name: %s) failed: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertCaseInTx: last insert id: %w", err)
	}
	c.ID = id

	for _, inspectorID := range c.InspectorIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO case_inspectors (case_id, inspector_id) VALUES (?, ?)`, id, inspectorID); err != nil {
			return 0, fmt.Errorf("InsertCaseInTx: assign inspector %d: %w", inspectorID, err)
		}
	}
	return id, nil
}

func GetCase(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Case, error) {
	var c model.Case
	err := sqlx.GetContext(ctx, q, &c, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Affaire %d introuvable", id)
		}
		return nil, fmt.Errorf("GetCase (ID: %d) failed: %w", id, err)
	}
	if err := sqlx.SelectContext(ctx, q, &c.InspectorIDs,
		`SELECT inspector_id FROM case_inspectors WHERE case_id = ? ORDER BY inspector_id`, id); err != nil {
		return nil, fmt.Errorf("GetCase (ID: %d) inspectors failed: %w", id, err)
	}
	return &c, nil
}

func ListCases(ctx context.Context, db *sqlx.DB) ([]model.Case, error) {
	cases := []model.Case{}
	if err := db.SelectContext(ctx, &cases, `SELECT `+caseColumns+` FROM cases ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

// UpdateCaseState moves a case to draft, in_progress or done.
func UpdateCaseState(ctx context.Context, db *sqlx.DB, id int64, state string) error {
	switch state {
	case model.StateDraft, model.StateInProgress, model.StateDone:
	default:
		return apperr.Validation("État d'affaire inconnu : %s", state)
	}
	res, err := db.ExecContext(ctx, `UPDATE cases SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("UpdateCaseState (ID: %d) failed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("Affaire %d introuvable", id)
	}
	return nil
}
