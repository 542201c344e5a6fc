package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/health-registry-api/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive LIKE pattern matching term anywhere.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// pageClause returns the LIMIT/OFFSET suffix of a paged request, or nothing when every row was asked for.
func pageClause(page, size int) string {
	if !models.Paged(page, size) {
		return ""
	}
	_, size, offset := models.NormalizePage(page, size)
	return fmt.Sprintf(" LIMIT %d OFFSET %d", size, offset)
}

// requireAffected converts a zero row count into sql.ErrNoRows.
func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// deleteWithEnrollments removes the enrollments referencing the parent row, then the parent row, in one transaction.
func deleteWithEnrollments(ctx context.Context, db *sqlx.DB, table, fkColumn, id string) (removed int64, err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete %s transaction: %w", table, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(fmt.Sprintf("DELETE FROM enrollments WHERE %s = ?", fkColumn)), id)
	if err != nil {
		return 0, fmt.Errorf("delete %s enrollments: %w", table, err)
	}
	if removed, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("delete %s enrollments rows affected: %w", table, err)
	}

	res, err = tx.ExecContext(ctx, tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)), id)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	if err = requireAffected(res, "delete "+table); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete %s: %w", table, err)
	}
	return removed, nil
}
