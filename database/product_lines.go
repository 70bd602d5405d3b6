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

const productLineColumns = `id, sub_case_id, product_name, product_code, label_count`

func InsertProductLine(ctx context.Context, q sqlx.ExtContext, pl *model.ProductLine) (int64, error) {
	if pl.ProductName == "" {
		return 0, apperr.Validation("Le nom du produit est requis")
	}
	if pl.LabelCount < 0 {
		return 0, apperr.Validation("Le nombre d'étiquettes ne peut pas être négatif")
	}
	if _, err := GetSubCase(ctx, q, pl.SubCaseID); err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO product_lines (sub_case_id, product_name, product_code, label_count)
		VALUES (?, ?, ?, ?)`, pl.SubCaseID, pl.ProductName, pl.ProductCode, pl.LabelCount)
	if err != nil {
		return 0, fmt.Errorf("InsertProductLine (Product: %s) failed: %w", pl.ProductName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertProductLine: last insert id: %w", err)
	}
	pl.ID = id
	return id, nil
}

func GetProductLine(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.ProductLine, error) {
	var pl model.ProductLine
	err := sqlx.GetContext(ctx, q, &pl, `SELECT `+productLineColumns+` FROM product_lines WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Ligne produit %d introuvable", id)
		}
		return nil, fmt.Errorf("GetProductLine (ID: %d) failed: %w", id, err)
	}
	return &pl, nil
}

func ListProductLines(ctx context.Context, q sqlx.QueryerContext, subCaseID int64) ([]model.ProductLine, error) {
	lines := []model.ProductLine{}
	err := sqlx.SelectContext(ctx, q, &lines,
		`SELECT `+productLineColumns+` FROM product_lines WHERE sub_case_id = ? ORDER BY id`, subCaseID)
	if err != nil {
		return nil, fmt.Errorf("ListProductLines (SubCase: %d) failed: %w", subCaseID, err)
	}
	return lines, nil
}
