package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// NextSequenceInTx increments the named counter and returns it formatted as
// prefix plus a zero-padded number.
func NextSequenceInTx(ctx context.Context, tx *sqlx.Tx, name, prefix string, padding int) (string, error) {
	var lastNo int
	err := tx.GetContext(ctx, &lastNo, "SELECT last_no FROM code_sequences WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("sequence '%s' not found", name)
		}
		return "", fmt.Errorf("failed to get sequence '%s': %w", name, err)
	}

	newNo := lastNo + 1
	if _, err := tx.ExecContext(ctx, `UPDATE code_sequences SET last_no = ? WHERE name = ?`, newNo, name); err != nil {
		return "", fmt.Errorf("failed to update sequence '%s': %w", name, err)
	}

	code := fmt.Sprintf("%s%0*d", prefix, padding, newNo)
	log.Debugf("sequence %s: %d -> %s", name, lastNo, code)
	return code, nil
}

// InitializeSequenceFromMaxCaseName aligns the CASE counter with the highest
// I<NNN> case number already stored, so imported cases are not renumbered.
func InitializeSequenceFromMaxCaseName(ctx context.Context, tx *sqlx.Tx) error {
	var names []string
	if err := tx.SelectContext(ctx, &names, `SELECT name FROM cases`); err != nil {
		return fmt.Errorf("InitializeSequenceFromMaxCaseName failed: %w", err)
	}

	maxNum := 0
	for _, n := range names {
		if num, ok := caseNumber(n); ok && num > maxNum {
			maxNum = num
		}
	}
	log.Infof("sequence CASE: setting last_no to %d", maxNum)

	_, err := tx.ExecContext(ctx, `UPDATE code_sequences SET last_no = MAX(last_no, ?) WHERE name = 'CASE'`, maxNum)
	return err
}
