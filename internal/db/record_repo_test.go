package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glucogate/internal/types"
)

func TestRecordRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	created := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	recordedAt := time.Date(2026, 2, 6, 8, 0, 0, 0, time.FixedZone("EST", -5*3600))

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*time.Time) = created
		return nil
	}}
	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO health_records")
	}), mock.MatchedBy(func(args []any) bool {
		return len(args) == 8 &&
			args[1] == "u-1" &&
			args[2] == "glucose" &&
			args[3] == 110.0 &&
			args[5] == recordedAt.UTC() &&
			args[6] == (*string)(nil)
	})).Return(row)

	rec := &types.HealthRecord{UserID: "u-1", Kind: types.RecordGlucose, Value: 110, Unit: "mg/dL", RecordedAt: recordedAt}
	require.NoError(t, repo.Create(ctx, rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, created, rec.CreatedAt)
	db.AssertExpectations(t)
}

func TestRecordRepository_Create_UnknownKind(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)

	err := repo.Create(context.Background(), &types.HealthRecord{Kind: "sleep"})

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidValue, appErr.Code)
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordRepository_Create_UnknownUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: &pgconn.PgError{Code: "23503"}})

	err := repo.Create(context.Background(), &types.HealthRecord{UserID: "ghost", Kind: types.RecordFood})

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundUser, appErr.Code)
}

func recordRow(id string, kind types.RecordKind, at time.Time) []any {
	notes := "after lunch"
	return []any{
		id, "u-1", kind, 42.5, "g", at, &notes,
		map[string]any{"meal": "lunch"}, at,
	}
}

func TestRecordRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	rows := newMockRows([][]any{recordRow("r-1", types.RecordFood, at)})
	rows.Next()
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"r-1", "food"}).Return(rows)

	rec, err := repo.GetByID(ctx, types.RecordFood, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", rec.ID)
	assert.Equal(t, types.RecordFood, rec.Kind)
	assert.Equal(t, "after lunch", rec.Notes)
	assert.Equal(t, "lunch", rec.Details["meal"])
	db.AssertExpectations(t)
}

func TestRecordRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), types.RecordInsulin, "missing")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundRecord, appErr.Code)
	assert.Equal(t, 404, appErr.HTTPStatus())
}

func TestRecordRepository_List(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	t1 := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(-time.Hour)
	since := t1.Add(-24 * time.Hour)

	rows := newMockRows([][]any{
		recordRow("r-1", types.RecordGlucose, t1),
		recordRow("r-2", types.RecordGlucose, t2),
	})
	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "r.recorded_at >= $3") && strings.Contains(sql, "LIMIT $4")
	}), []any{"u-1", "glucose", since, 10}).Return(rows, nil)

	recs, err := repo.List(ctx, types.RecordFilter{UserID: "u-1", Kind: types.RecordGlucose, Since: since, Limit: 10})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r-1", recs[0].ID)
	assert.Equal(t, "r-2", recs[1].ID)
	assert.True(t, rows.closed)
	db.AssertExpectations(t)
}

func TestRecordRepository_List_ClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultRecordLimit},
		{-5, DefaultRecordLimit},
		{10000, MaxRecordLimit},
	}
	for _, tt := range tests {
		db := new(mockDBTX)
		repo := NewRecordRepository(db)
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"u-1", "activity", tt.want}).
			Return(newMockRows(nil), nil)

		recs, err := repo.List(context.Background(), types.RecordFilter{UserID: "u-1", Kind: types.RecordActivity, Limit: tt.in})
		require.NoError(t, err)
		assert.NotNil(t, recs, "empty list must encode as []")
		db.AssertExpectations(t)
	}
}

func TestRecordRepository_List_Errors(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil, errors.New("timeout"))

	_, err := repo.List(context.Background(), types.RecordFilter{UserID: "u-1", Kind: types.RecordGlucose})
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)

	db2 := new(mockDBTX)
	rows := newMockRows(nil)
	rows.errVal = errors.New("conn reset")
	db2.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)
	_, err = NewRecordRepository(db2).List(context.Background(), types.RecordFilter{UserID: "u-1", Kind: types.RecordGlucose})
	require.Error(t, err)
}

func TestRecordRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"r-1", "insulin"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)
	require.NoError(t, repo.Delete(ctx, types.RecordInsulin, "r-1"))
	db.AssertExpectations(t)
}

func TestRecordRepository_Delete_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRecordRepository(db)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), types.RecordInsulin, "r-404")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundRecord, appErr.Code)
}
