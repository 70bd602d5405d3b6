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

const reportColumns = `id, name, filename, file_type, attachment_id, label_id, equipment_id, sub_case_id, created_at`

func InsertReportInTx(ctx context.Context, tx *sqlx.Tx, r *model.Report) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reports (name, filename, file_type, attachment_id, label_id, equipment_id, sub_case_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Filename, r.FileType, r.AttachmentID,
		nullableID(r.LabelID), nullableID(r.EquipmentID), nullableID(r.SubCaseID))
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, apperr.Validation("Un rapport nommé %s existe déjà pour cette étiquette", r.Filename)
		}
		return 0, fmt.Errorf("InsertReportInTx (File: %s) failed: %w", r.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertReportInTx: last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

func GetReport(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Report, error) {
	var r model.Report
	if err := sqlx.GetContext(ctx, q, &r, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Rapport %d introuvable", id)
		}
		return nil, fmt.Errorf("GetReport (ID: %d) failed: %w", id, err)
	}
	return &r, nil
}

func ListReportsByLabel(ctx context.Context, q sqlx.QueryerContext, labelID int64) ([]model.Report, error) {
	items := []model.Report{}
	if err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+reportColumns+` FROM reports WHERE label_id = ? ORDER BY created_at DESC, id DESC`, labelID); err != nil {
		return nil, fmt.Errorf("ListReportsByLabel (Label: %d) failed: %w", labelID, err)
	}
	return items, nil
}

func InsertCaseReportInTx(ctx context.Context, tx *sqlx.Tx, r *model.CaseReport) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO case_reports (case_id, name, filename, file_type, attachment_id)
		VALUES (?, ?, ?, ?, ?)`, r.CaseID, r.Name, r.Filename, r.FileType, r.AttachmentID)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, apperr.Validation("Un rapport nommé %s existe déjà pour cette affaire", r.Filename)
		}
		return 0, fmt.Errorf("InsertCaseReportInTx (File: %s) failed: %w", r.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertCaseReportInTx: last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

func ListCaseReports(ctx context.Context, q sqlx.QueryerContext, caseID int64) ([]model.CaseReport, error) {
	items := []model.CaseReport{}
	if err := sqlx.SelectContext(ctx, q, &items, `
		SELECT id, case_id, name, filename, file_type, attachment_id, created_at
		FROM case_reports WHERE case_id = ? ORDER BY created_at DESC, id DESC`, caseID); err != nil {
		return nil, fmt.Errorf("ListCaseReports (Case: %d) failed: %w", caseID, err)
	}
	return items, nil
}
