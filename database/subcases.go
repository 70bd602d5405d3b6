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

const subCaseColumns = `id, case_id, name, description, state, client_name, site, location`

// InsertSubCaseInTx stores a sub-case of an existing case, numbered
// <case>/SA<NNN> unless named, and assigns the case manager to it.
func InsertSubCaseInTx(ctx context.Context, tx *sqlx.Tx, sc *model.SubCase) (int64, error) {
	parent, err := GetCase(ctx, tx, sc.CaseID)
	if err != nil {
		return 0, err
	}
	if sc.Name == "" {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM sub_cases WHERE case_id = ?`, sc.CaseID); err != nil {
			return 0, fmt.Errorf("InsertSubCaseInTx: count sub-cases: %w", err)
		}
		sc.Name = fmt.Sprintf("%s/SA%03d", parent.Name, count+1)
	}
	if sc.State == "" {
		sc.State = model.StateDraft
	}
	sc.ClientName, sc.Site, sc.Location = parent.ClientName, parent.Site, parent.Location

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sub_cases (case_id, name, description, state, client_name, site, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.CaseID, sc.Name, sc.Description, sc.State, sc.ClientName, sc.Site, sc.Location)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, apperr.Validation("La sous-affaire %s existe déjà", sc.Name)
		}
		return 0, fmt.Errorf("InsertSubCaseInTx (Name: %s) failed: %w", sc.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertSubCaseInTx: last insert id: %w", err)
	}
	sc.ID = id

	if parent.ManagerID != nil {
		if err := AssignSubCaseInspector(ctx, tx, id, *parent.ManagerID, model.RoleSiteReport); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func GetSubCase(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.SubCase, error) {
	var sc model.SubCase
	err := sqlx.GetContext(ctx, q, &sc, `SELECT `+subCaseColumns+` FROM sub_cases WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Sous-affaire %d introuvable", id)
		}
		return nil, fmt.Errorf("GetSubCase (ID: %d) failed: %w", id, err)
	}
	return &sc, nil
}

func ListSubCases(ctx context.Context, q sqlx.QueryerContext, caseID int64) ([]model.SubCase, error) {
	subCases := []model.SubCase{}
	err := sqlx.SelectContext(ctx, q, &subCases,
		`SELECT `+subCaseColumns+` FROM sub_cases WHERE case_id = ? ORDER BY name`, caseID)
	if err != nil {
		return nil, fmt.Errorf("ListSubCases (Case: %d) failed: %w", caseID, err)
	}
	return subCases, nil
}

// AssignSubCaseInspector adds an inspector to a sub-case, or changes the role
// of one already assigned.
func AssignSubCaseInspector(ctx context.Context, q sqlx.ExecerContext, subCaseID, inspectorID int64, role string) error {
	switch role {
	case model.RoleSite, model.RoleReport, model.RoleSiteReport:
	default:
		return apperr.Validation("Rôle d'inspecteur inconnu : %s", role)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO sub_case_inspectors (sub_case_id, inspector_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT(sub_case_id, inspector_id) DO UPDATE SET role = excluded.role`,
		subCaseID, inspectorID, role)
	if err != nil {
		return fmt.Errorf("AssignSubCaseInspector (SubCase: %d, Inspector: %d) failed: %w", subCaseID, inspectorID, err)
	}
	return nil
}

func ListSubCaseInspectors(ctx context.Context, q sqlx.QueryerContext, subCaseID int64) ([]model.SubCaseInspector, error) {
	rows := []model.SubCaseInspector{}
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT sci.id, sci.sub_case_id, sci.inspector_id, i.name AS inspector_name, sci.role
		FROM sub_case_inspectors sci
		JOIN inspectors i ON i.id = sci.inspector_id
		WHERE sci.sub_case_id = ?
		ORDER BY i.name`, subCaseID)
	if err != nil {
		return nil, fmt.Errorf("ListSubCaseInspectors (SubCase: %d) failed: %w", subCaseID, err)
	}
	return rows, nil
}
