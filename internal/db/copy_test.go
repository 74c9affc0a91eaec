package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "run_violations", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_violations"}, []string{"run_id", "asset_id", "rule_id"}).WillReturnResult(3)

	rows := [][]any{
		{"r1", "ramp-1", "ADAAG-406.2-running-slope"},
		{"r1", "ramp-2", "ADAAG-406.2-running-slope"},
		{"r1", "walk-1", "ADAAG-403.5.1-clear-width"},
	}
	n, err := CopyFrom(context.Background(), mock, "run_violations", []string{"run_id", "asset_id", "rule_id"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_violations"}, []string{"run_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"r1"}}
	_, err = CopyFrom(context.Background(), mock, "run_violations", []string{"run_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO run_violations")
	assert.NoError(t, mock.ExpectationsWereMet())
}
