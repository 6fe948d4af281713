package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cryptofundraises/tracker/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurePool(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	configurePool(db, &config.DatabaseConfig{MaxOpenConns: 20, MaxIdleConns: 4, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 20, db.Stats().MaxOpenConnections)

	configurePool(db, &config.DatabaseConfig{})
	assert.Equal(t, 10, db.Stats().MaxOpenConnections)
}

func TestApplySchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS fundraises").WillReturnResult(sqlmock.NewResult(0, 0))

	client := NewFromDB(db)
	require.NoError(t, client.ApplySchema(context.Background(), "CREATE TABLE IF NOT EXISTS fundraises (id UUID)"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
