package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteOpener opens one in-memory database; the held connection keeps it alive between commands
func sqliteOpener(t *testing.T) opener {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	open := func() (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}
	keep, err := open()
	require.NoError(t, err)
	t.Cleanup(func() { closeDB(keep) })
	return open
}

func run(open opener, args ...string) (string, error) {
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckReportsMissingTables(t *testing.T) {
	open := sqliteOpener(t)

	out, err := run(open, "check")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrate up")
	assert.Contains(t, out, "leases")
	assert.Contains(t, out, "missing")
}

func TestUpThenCheck(t *testing.T) {
	open := sqliteOpener(t)

	out, err := run(open, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	out, err = run(open, "check")
	require.NoError(t, err)
	assert.NotContains(t, out, "missing")
	assert.Contains(t, out, "failed_deliveries")
}

func TestOpenFailure(t *testing.T) {
	failing := func() (*gorm.DB, error) { return nil, fmt.Errorf("connection refused") }

	_, err := run(failing, "up")
	assert.EqualError(t, err, "connection refused")
}
