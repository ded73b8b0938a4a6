package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"glucogate/internal/types"
)

// Listing bounds.
const (
	DefaultRecordLimit = 50
	MaxRecordLimit     = 500
)

// RecordRepository provides data access for the health_records table. One
// table serves every kind; every query is scoped by kind so a glucose route
// can never read an insulin row.
type RecordRepository struct {
	db DBTX
}

// NewRecordRepository creates a RecordRepository backed by the given connection.
func NewRecordRepository(db DBTX) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `r.id, r.user_id, r.kind, r.value, r.unit, r.recorded_at, r.notes, r.details, r.created_at`

func scanRecord(row pgx.Row) (*types.HealthRecord, error) {
	var (
		rec     types.HealthRecord
		notes   *string
		details map[string]any
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Kind,
		&rec.Value,
		&rec.Unit,
		&rec.RecordedAt,
		&notes,
		&details,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		rec.Notes = *notes
	}
	rec.Details = details
	return &rec, nil
}

// Create inserts rec, assigning an ID when empty. CreatedAt is populated from
// the database. A foreign-key failure on user_id is reported as an unknown
// user.
func (r *RecordRepository) Create(ctx context.Context, rec *types.HealthRecord) error {
	if !rec.Kind.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidValue, fmt.Sprintf("unknown record kind %q", rec.Kind), nil)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	var notes *string
	if rec.Notes != "" {
		notes = &rec.Notes
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO health_records (id, user_id, kind, value, unit, recorded_at, notes, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		rec.ID,
		rec.UserID,
		string(rec.Kind),
		rec.Value,
		rec.Unit,
		rec.RecordedAt.UTC(),
		notes,
		rec.Details,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.NewAppError(types.ErrCodeNotFoundUser, "User not found", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create record", err)
	}
	return nil
}

// GetByID retrieves a record of the given kind.
func (r *RecordRepository) GetByID(ctx context.Context, kind types.RecordKind, id string) (*types.HealthRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM health_records r
		 WHERE r.id = $1 AND r.kind = $2`,
		id,
		string(kind),
	)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecord, "Record not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve record", err)
	}
	return rec, nil
}

// List returns records matching f, newest first. Limit is clamped to
// [1, MaxRecordLimit] and defaults to DefaultRecordLimit.
func (r *RecordRepository) List(ctx context.Context, f types.RecordFilter) ([]*types.HealthRecord, error) {
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = DefaultRecordLimit
	case limit > MaxRecordLimit:
		limit = MaxRecordLimit
	}

	conds := []string{"r.user_id = $1", "r.kind = $2"}
	args := []any{f.UserID, string(f.Kind)}
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		conds = append(conds, fmt.Sprintf("r.recorded_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until.UTC())
		conds = append(conds, fmt.Sprintf("r.recorded_at < $%d", len(args)))
	}
	args = append(args, limit)

	query := `SELECT ` + recordColumns + `
		 FROM health_records r
		 WHERE ` + strings.Join(conds, " AND ") + `
		 ORDER BY r.recorded_at DESC, r.id
		 LIMIT $` + fmt.Sprint(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list records", err)
	}
	defer rows.Close()

	out := make([]*types.HealthRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list records", err)
	}
	return out, nil
}

// Delete removes a record of the given kind.
func (r *RecordRepository) Delete(ctx context.Context, kind types.RecordKind, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM health_records WHERE id = $1 AND kind = $2`,
		id,
		string(kind),
	)
	if err != nil {
		if isInvalidText(err) {
			return types.NewAppError(types.ErrCodeNotFoundRecord, "Record not found", nil)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRecord, "Record not found", nil)
	}
	return nil
}
