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

const templateColumns = `id, template_key, name, sequence, equipment_type, image, revision,
	qr_x, qr_y, qr_size, text_x, text_y, code_x, code_y, font_size, font_color, bold, active`

func GetTemplate(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.LabelTemplate, error) {
	var t model.LabelTemplate
	if err := sqlx.GetContext(ctx, q, &t, `SELECT `+templateColumns+` FROM label_templates WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Modèle d'étiquette %d introuvable", id)
		}
		return nil, fmt.Errorf("GetTemplate (ID: %d) failed: %w", id, err)
	}
	t.HasImage = len(t.Image) > 0
	return &t, nil
}

// GetTemplateByKey returns nil without error when no active template has key.
func GetTemplateByKey(ctx context.Context, q sqlx.QueryerContext, key string) (*model.LabelTemplate, error) {
	var t model.LabelTemplate
	err := sqlx.GetContext(ctx, q, &t,
		`SELECT `+templateColumns+` FROM label_templates WHERE template_key = ? AND active = 1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetTemplateByKey (Key: %s) failed: %w", key, err)
	}
	t.HasImage = len(t.Image) > 0
	return &t, nil
}

func ListTemplates(ctx context.Context, q sqlx.QueryerContext) ([]model.LabelTemplate, error) {
	templates := []model.LabelTemplate{}
	if err := sqlx.SelectContext(ctx, q, &templates,
		`SELECT `+templateColumns+` FROM label_templates ORDER BY sequence, name`); err != nil {
		return nil, fmt.Errorf("failed to list label templates: %w", err)
	}
	for i := range templates {
		templates[i].HasImage = len(templates[i].Image) > 0
		templates[i].Image = nil
	}
	return templates, nil
}

// InsertTemplateIfMissing seeds a template. Existing keys are left untouched so
// edits made after install survive a restart. It reports whether a row was added.
func InsertTemplateIfMissing(ctx context.Context, q sqlx.ExecerContext, t *model.LabelTemplate) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO label_templates (template_key, name, sequence, equipment_type, image, revision,
			qr_x, qr_y, qr_size, text_x, text_y, code_x, code_y, font_size, font_color, bold, active)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Key, t.Name, t.Sequence, t.EquipmentType, t.Image,
		t.QRX, t.QRY, t.QRSize, t.TextX, t.TextY, t.CodeX, t.CodeY, t.FontSize, t.FontColor, t.Bold, t.Active)
	if err != nil {
		return false, fmt.Errorf("InsertTemplateIfMissing (Key: %s) failed: %w", t.Key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateTemplateLayout saves placement and style. The revision is bumped so
// cached decodes are not reused.
func UpdateTemplateLayout(ctx context.Context, db *sqlx.DB, t *model.LabelTemplate) error {
	res, err := db.ExecContext(ctx, `
		UPDATE label_templates SET
			name = ?, qr_x = ?, qr_y = ?, qr_size = ?, text_x = ?, text_y = ?, code_x = ?, code_y = ?,
			font_size = ?, font_color = ?, bold = ?, active = ?, revision = revision + 1
		WHERE id = ?`,
		t.Name, t.QRX, t.QRY, t.QRSize, t.TextX, t.TextY, t.CodeX, t.CodeY,
		t.FontSize, t.FontColor, t.Bold, t.Active, t.ID)
	if err != nil {
		return fmt.Errorf("UpdateTemplateLayout (ID: %d) failed: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("Modèle d'étiquette %d introuvable", t.ID)
	}
	return nil
}

func UpdateTemplateImage(ctx context.Context, q sqlx.ExecerContext, id int64, image []byte) error {
	res, err := q.ExecContext(ctx,
		`UPDATE label_templates SET image = ?, revision = revision + 1 WHERE id = ?`, image, id)
	if err != nil {
		return fmt.Errorf("UpdateTemplateImage (ID: %d) failed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("Modèle d'étiquette %d introuvable", id)
	}
	return nil
}
