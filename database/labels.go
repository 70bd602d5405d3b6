package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"kes/apperr"
	"kes/model"
)

// LabelRegistry claims label codes against the labels table.
type LabelRegistry struct {
	q sqlx.QueryerContext
}

// NewLabelRegistry binds the registry to a database or a transaction. Bind it
// to the transaction that inserts the labels: Open starts transactions with
// BEGIN IMMEDIATE, so no other writer can take a code between Reserve and the
// insert.
func NewLabelRegistry(q sqlx.QueryerContext) *LabelRegistry {
	return &LabelRegistry{q: q}
}

func (r *LabelRegistry) Exists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM labels WHERE code = ?`, code); err != nil {
		return false, fmt.Errorf("LabelRegistry.Exists (Code: %s) failed: %w", code, err)
	}
	return n > 0, nil
}

// Reserve reports whether code is still free for the current transaction. The
// claim becomes durable when the caller inserts the label; the UNIQUE index on
// labels.code backs it up for registries bound outside a transaction.
func (r *LabelRegistry) Reserve(ctx context.Context, code string) (bool, error) {
	exists, err := r.Exists(ctx, code)
	return !exists, err
}

// InsertLabelsInTx stores a batch of labels. A code collision fails the whole
// batch with a generation error; the caller rolls back.
func InsertLabelsInTx(ctx context.Context, tx *sqlx.Tx, labels []model.Label) error {
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO labels (code, number, equipment_id, sub_case_id, product_line_id)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertLabelsInTx: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range labels {
		l := &labels[i]
		res, err := stmt.ExecContext(ctx, l.Code, l.Number, l.EquipmentID, nullableID(l.SubCaseID), nullableID(l.ProductLineID))
		if err != nil {
			if IsUniqueViolation(err) {
				return apperr.Wrap(apperr.ErrGenerationExhausted, err, "Le code étiquette %s existe déjà", l.Code)
			}
			return fmt.Errorf("InsertLabelsInTx (Code: %s) failed: %w", l.Code, err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("InsertLabelsInTx: last insert id: %w", err)
		}
	}
	return nil
}

func DeleteLabelsByEquipmentInTx(ctx context.Context, tx *sqlx.Tx, equipmentID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE equipment_id = ?`, equipmentID); err != nil {
		return fmt.Errorf("DeleteLabelsByEquipmentInTx (Equipment: %d) failed: %w", equipmentID, err)
	}
	return nil
}

func DeleteLabelsByProductLineInTx(ctx context.Context, tx *sqlx.Tx, lineID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE product_line_id = ?`, lineID); err != nil {
		return fmt.Errorf("DeleteLabelsByProductLineInTx (Line: %d) failed: %w", lineID, err)
	}
	return nil
}

// ProductLineEquipmentInTx returns the equipment carrying the line's current
// labels, or 0 when the line has none.
func ProductLineEquipmentInTx(ctx context.Context, tx *sqlx.Tx, lineID int64) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT equipment_id FROM labels WHERE product_line_id = ? LIMIT 1`, lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ProductLineEquipmentInTx (Line: %d) failed: %w", lineID, err)
	}
	return id, nil
}

const labelDetailSelect = `
	SELECT l.id, l.code, l.number, l.equipment_id, l.sub_case_id, l.product_line_id, l.generated_at,
		e.name AS equipment_name, e.type AS equipment_type, c.name AS case_name,
		COALESCE(sc.name, '') AS sub_case_name,
		COALESCE(sc.client_name, c.client_name) AS client_name,
		c.site, c.location,
		COALESCE(pl.product_name, '') AS product_name
	FROM labels l
	JOIN equipment e ON e.id = l.equipment_id
	JOIN cases c ON c.id = e.case_id
	LEFT JOIN sub_cases sc ON sc.id = l.sub_case_id
	LEFT JOIN product_lines pl ON pl.id = l.product_line_id`

func GetLabelDetail(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.LabelDetail, error) {
	var d model.LabelDetail
	if err := sqlx.GetContext(ctx, q, &d, labelDetailSelect+` WHERE l.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Étiquette %d introuvable", id)
		}
		return nil, fmt.Errorf("GetLabelDetail (ID: %d) failed: %w", id, err)
	}
	return &d, nil
}

func GetLabelDetailByCode(ctx context.Context, q sqlx.QueryerContext, code string) (*model.LabelDetail, error) {
	var d model.LabelDetail
	if err := sqlx.GetContext(ctx, q, &d, labelDetailSelect+` WHERE l.code = ?`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Étiquette %s introuvable", code)
		}
		return nil, fmt.Errorf("GetLabelDetailByCode (Code: %s) failed: %w", code, err)
	}
	return &d, nil
}

// ListLabelDetails returns the labels in the order of ids, each at most once.
// Unknown ids are an error.
func ListLabelDetails(ctx context.Context, q sqlx.QueryerContext, ids []int64) ([]model.LabelDetail, error) {
	if len(ids) == 0 {
		return []model.LabelDetail{}, nil
	}
	query, args, err := sqlx.In(labelDetailSelect+` WHERE l.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("ListLabelDetails: build query: %w", err)
	}
	var rows []model.LabelDetail
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ListLabelDetails failed: %w", err)
	}

	byID := make(map[int64]model.LabelDetail, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]model.LabelDetail, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		d, ok := byID[id]
		if !ok {
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		out = append(out, d)
	}
	if len(missing) > 0 {
		return nil, apperr.NotFound("Étiquettes introuvables : %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func ListLabelDetailsByEquipment(ctx context.Context, q sqlx.QueryerContext, equipmentID int64) ([]model.LabelDetail, error) {
	rows := []model.LabelDetail{}
	if err := sqlx.SelectContext(ctx, q, &rows, labelDetailSelect+` WHERE l.equipment_id = ? ORDER BY l.number`, equipmentID); err != nil {
		return nil, fmt.Errorf("ListLabelDetailsByEquipment (Equipment: %d) failed: %w", equipmentID, err)
	}
	return rows, nil
}

func ListLabelDetailsBySubCase(ctx context.Context, q sqlx.QueryerContext, subCaseID int64) ([]model.LabelDetail, error) {
	rows := []model.LabelDetail{}
	if err := sqlx.SelectContext(ctx, q, &rows, labelDetailSelect+` WHERE l.sub_case_id = ? ORDER BY l.code`, subCaseID); err != nil {
		return nil, fmt.Errorf("ListLabelDetailsBySubCase (SubCase: %d) failed: %w", subCaseID, err)
	}
	return rows, nil
}
