package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/scmc-ops/hoscad/internal/errs"
	"github.com/scmc-ops/hoscad/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func unitRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"unit_id", "display_name", "unit_type", "active", "status", "note",
		"unit_info", "incident", "destination", "updated_at", "updated_by", "push_token",
	})
}

func TestUnitRepo_GetUnit_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUnitRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM units WHERE unit_id=\$1`).
		WithArgs("M1").
		WillReturnRows(unitRows().AddRow(
			"M1", "Medic 1", "ALS", true, "DE", "", "", "26-0001", "SCMC",
			"2026-08-28T10:00:00.000Z", "STA1/SMITHJ", ""))

	u, err := r.GetUnit(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, "M1", u.UnitID)
	require.Equal(t, model.StatusEnroute, u.Status)
	require.Equal(t, "26-0001", u.Incident)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepo_GetUnit_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUnitRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM units WHERE unit_id=\$1`).
		WithArgs("M9").
		WillReturnRows(unitRows())

	_, err := r.GetUnit(context.Background(), "M9")
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestUnitRepo_PutUnit_UppercasesID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUnitRepo(db)

	mock.ExpectExec(`INSERT INTO units .+ ON CONFLICT \(unit_id\) DO UPDATE SET`).
		WithArgs("M1", "Medic 1", "ALS", true, "AV", "", "", "", "",
			"2026-08-28T10:00:00.000Z", "STA1/SMITHJ", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.PutUnit(context.Background(), &model.Unit{
		UnitID: "m1", DisplayName: "Medic 1", Type: "ALS", Active: true,
		Status: model.StatusAvailable,
		UpdatedAt: "2026-08-28T10:00:00.000Z", UpdatedBy: "STA1/SMITHJ",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRepo_DeleteInactiveUnits(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUnitRepo(db)

	mock.ExpectExec(`DELETE FROM units WHERE active=false`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := r.DeleteInactiveUnits(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
