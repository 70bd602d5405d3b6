package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"kes/apperr"
	"kes/model"
)

// inspectorSelect computes availability: absent when inactive, busy when
// assigned to an open case.
const inspectorSelect = `
	SELECT i.id, i.name, i.email, i.phone, i.job_title, i.description, i.active,
		CASE
			WHEN i.active = 0 THEN 'absent'
			WHEN EXISTS (
				SELECT 1 FROM case_inspectors ci
				JOIN cases c ON c.id = ci.case_id
				WHERE ci.inspector_id = i.id AND c.state IN ('draft', 'in_progress')
			) THEN 'occupe'
			ELSE 'disponible'
		END AS availability
	FROM inspectors i`

func InsertInspector(ctx context.Context, q sqlx.ExecerContext, in *model.Inspector) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO inspectors (name, email, phone, job_title, description, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Email, in.Phone, in.JobTitle, in.Description, in.Active)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, apperr.Validation("Un inspecteur avec l'email %s existe déjà", in.Email)
		}
		return 0, fmt.Errorf("InsertInspector (Name: %s) failed: %w", in.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertInspector: last insert id: %w", err)
	}
	in.ID = id
	return id, nil
}

// UpsertInspectorInTx inserts an inspector or, when the email is already known,
// updates the existing one.
func UpsertInspectorInTx(ctx context.Context, tx *sqlx.Tx, in *model.Inspector) error {
	if in.Email == "" {
		_, err := InsertInspector(ctx, tx, in)
		return err
	}
	const q = `
		INSERT INTO inspectors (name, email, phone, job_title, description, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) WHERE email <> '' DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			job_title = excluded.job_title,
			description = excluded.description,
			active = excluded.active`
	_, err := tx.ExecContext(ctx, q, in.Name, in.Email, in.Phone, in.JobTitle, in.Description, in.Active)
	if err != nil {
		return fmt.Errorf("UpsertInspectorInTx (Email: %s) failed: %w", in.Email, err)
	}
	return nil
}

func GetInspector(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Inspector, error) {
	var in model.Inspector
	if err := sqlx.GetContext(ctx, q, &in, inspectorSelect+` WHERE i.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Inspecteur %d introuvable", id)
		}
		return nil, fmt.Errorf("GetInspector (ID: %d) failed: %w", id, err)
	}
	return &in, nil
}

func ListInspectors(ctx context.Context, q sqlx.QueryerContext) ([]model.Inspector, error) {
	inspectors := []model.Inspector{}
	if err := sqlx.SelectContext(ctx, q, &inspectors, inspectorSelect+` ORDER BY i.name`); err != nil {
		return nil, fmt.Errorf("failed to list inspectors: %w", err)
	}
	return inspectors, nil
}

// GetInspectorPlanning lists the sub-cases an inspector is assigned to.
func GetInspectorPlanning(ctx context.Context, q sqlx.QueryerContext, inspectorID int64) ([]model.PlanningEntry, error) {
	if _, err := GetInspector(ctx, q, inspectorID); err != nil {
		return nil, err
	}
	entries := []model.PlanningEntry{}
	err := sqlx.SelectContext(ctx, q, &entries, `
		SELECT sc.id AS sub_case_id, sc.name AS sub_case_name, c.name AS case_name, sci.role,
			c.intervention_start, c.intervention_end, sc.state
		FROM sub_case_inspectors sci
		JOIN sub_cases sc ON sc.id = sci.sub_case_id
		JOIN cases c ON c.id = sc.case_id
		WHERE sci.inspector_id = ?
		ORDER BY c.intervention_start, sc.name`, inspectorID)
	if err != nil {
		return nil, fmt.Errorf("GetInspectorPlanning (ID: %d) failed: %w", inspectorID, err)
	}
	return entries, nil
}
