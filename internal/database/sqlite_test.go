package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "violations", "rate_limits", "audit_logs", "sessions"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.Migrate())
}

func TestUniqueConstraint(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	insert := func(username, email string) error {
		_, err := db.Exec(
			`INSERT INTO users (username, email, full_name, password_hash, role, is_active, created_at)
			 VALUES (?, ?, 'Test User', 'x', 'policeman', TRUE, ?)`,
			username, email, time.Now().UTC(),
		)
		return err
	}

	require.NoError(t, insert("officer", "officer@police.local"))

	err = insert("officer", "other@police.local")
	assert.True(t, IsUniqueConstraintError(err, "users.username"))
	assert.False(t, IsUniqueConstraintError(err, "users.email"))

	err = insert("other", "officer@police.local")
	assert.True(t, IsUniqueConstraintError(err, "users.email"))

	assert.False(t, IsUniqueConstraintError(nil, ""))
	assert.False(t, IsUniqueConstraintError(errors.New("disk I/O error"), ""))
}

func TestRoleCheckConstraint(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(
		`INSERT INTO users (username, email, full_name, password_hash, role, created_at)
		 VALUES ('x', 'x@police.local', 'X', 'x', 'mayor', ?)`,
		time.Now().UTC(),
	)
	assert.Error(t, err)
}
