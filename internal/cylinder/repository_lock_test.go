package cylinder

import (
	"context"
	"testing"

	"cylinder-backend/internal/apperr"
	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDelete_LocksCylinderRowOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cylinders" WHERE .*company_id.*branch_id.* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	svc := NewService(db, zap.NewNop())
	err = svc.Delete(context.Background(), audit.Actor{UserID: 1}, 42, auth.Scope{CompanyID: 1, BranchID: 2})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
