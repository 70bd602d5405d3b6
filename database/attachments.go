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

const attachmentColumns = `id, name, mime_type, storage_key, res_model, res_id, size, created_at`

func InsertAttachment(ctx context.Context, q sqlx.ExecerContext, a *model.Attachment) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO attachments (name, mime_type, storage_key, res_model, res_id, size)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, a.MimeType, a.StorageKey, a.ResModel, nullableID(a.ResID), a.Size)
	if err != nil {
		return 0, fmt.Errorf("InsertAttachment (Name: %s) failed: %w", a.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertAttachment: last insert id: %w", err)
	}
	a.ID = id
	return id, nil
}

func GetAttachment(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Attachment, error) {
	var a model.Attachment
	if err := sqlx.GetContext(ctx, q, &a, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Fichier %d introuvable", id)
		}
		return nil, fmt.Errorf("GetAttachment (ID: %d) failed: %w", id, err)
	}
	return &a, nil
}

// ListAttachmentsCreatedBefore returns attachments of resModel created before
// the given "YYYY-MM-DD HH:MM:SS" UTC timestamp.
func ListAttachmentsCreatedBefore(ctx context.Context, q sqlx.QueryerContext, resModel, before string) ([]model.Attachment, error) {
	items := []model.Attachment{}
	err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+attachmentColumns+` FROM attachments WHERE res_model = ? AND created_at < ? ORDER BY id`,
		resModel, before)
	if err != nil {
		return nil, fmt.Errorf("ListAttachmentsCreatedBefore (Model: %s) failed: %w", resModel, err)
	}
	return items, nil
}

func DeleteAttachment(ctx context.Context, q sqlx.ExecerContext, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteAttachment (ID: %d) failed: %w", id, err)
	}
	return nil
}
