package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"kes/apperr"
	"kes/labelcode"
	"kes/model"
)

const equipmentColumns = `id, case_id, name, sequence, type, code, label_count, location, description, state`

// InsertEquipmentInTx stores equipment of a case and computes its code
// <case>/<PREFIX><NNN>, NNN counting the case's equipment of the same type.
func InsertEquipmentInTx(ctx context.Context, tx *sqlx.Tx, e *model.Equipment) (int64, error) {
	if e.Type == "" {
		e.Type = labelcode.DefaultEquipmentType
	}
	if !labelcode.IsEquipmentType(e.Type) {
		return 0, apperr.Validation("Type d'équipement inconnu : %s", e.Type)
	}
	if e.LabelCount < 0 {
		return 0, apperr.Validation("Le nombre d'étiquettes ne peut pas être négatif")
	}
	parent, err := GetCase(ctx, tx, e.CaseID)
	if err != nil {
		return 0, err
	}

	var sameType int
	if err := tx.GetContext(ctx, &sameType,
		`SELECT COUNT(*) FROM equipment WHERE case_id = ? AND type = ?`, e.CaseID, e.Type); err != nil {
		return 0, fmt.Errorf("InsertEquipmentInTx: count equipment: %w", err)
	}
	e.Code = fmt.Sprintf("%s/%s%03d", parent.Name, labelcode.PrefixFor(e.Type), sameType+1)
	if e.State == "" {
		e.State = model.StateDraft
	}
	if e.Sequence == 0 {
		e.Sequence = 10
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO equipment (case_id, name, sequence, type, code, label_count, location, description, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CaseID, e.Name, e.Sequence, e.Type, e.Code, e.LabelCount, e.Location, e.Description, e.State)
	if err != nil {
		return 0, fmt.Errorf("InsertEquipmentInTx (Name: %s) failed: %w", e.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertEquipmentInTx: last insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

func GetEquipment(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Equipment, error) {
	var e model.Equipment
	err := sqlx.GetContext(ctx, q, &e, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Équipement %d introuvable", id)
		}
		return nil, fmt.Errorf("GetEquipment (ID: %d) failed: %w", id, err)
	}
	return &e, nil
}

func ListEquipmentByCase(ctx context.Context, q sqlx.QueryerContext, caseID int64) ([]model.Equipment, error) {
	items := []model.Equipment{}
	err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+equipmentColumns+` FROM equipment WHERE case_id = ? ORDER BY sequence, name`, caseID)
	if err != nil {
		return nil, fmt.Errorf("ListEquipmentByCase (Case: %d) failed: %w", caseID, err)
	}
	return items, nil
}

// ListEquipmentWithoutLabels returns the case's equipment that has no label yet.
func ListEquipmentWithoutLabels(ctx context.Context, q sqlx.QueryerContext, caseID int64) ([]model.Equipment, error) {
	items := []model.Equipment{}
	err := sqlx.SelectContext(ctx, q, &items, `
		SELECT `+equipmentColumns+` FROM equipment e
		WHERE e.case_id = ? AND NOT EXISTS (SELECT 1 FROM labels l WHERE l.equipment_id = e.id)
		ORDER BY e.sequence, e.name`, caseID)
	if err != nil {
		return nil, fmt.Errorf("ListEquipmentWithoutLabels (Case: %d) failed: %w", caseID, err)
	}
	return items, nil
}
