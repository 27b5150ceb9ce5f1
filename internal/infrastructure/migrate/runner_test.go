package migrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner records calls so migration flows can be tested without a
// database.
type mockRunner struct {
	runCalled      bool
	rollbackCalled bool
	versionCalled  bool
	runErr         error
	rollbackErr    error
	version        uint
	dirty          bool
	versionErr     error
}

func (m *mockRunner) Run() error {
	m.runCalled = true
	return m.runErr
}

func (m *mockRunner) Rollback() error {
	m.rollbackCalled = true
	return m.rollbackErr
}

func (m *mockRunner) Version() (uint, bool, error) {
	m.versionCalled = true
	return m.version, m.dirty, m.versionErr
}

func TestNewRunner(t *testing.T) {
	runner := NewRunner(&Config{
		DatabaseURL:    "postgres://localhost:5432/wabroker?sslmode=disable",
		MigrationsPath: "../../../migrations",
	})

	require.NotNil(t, runner)
	assert.Equal(t, "../../../migrations", runner.config.MigrationsPath)
}

func TestMockRunner_Run(t *testing.T) {
	tests := []struct {
		name    string
		runErr  error
		wantErr bool
	}{
		{"successful run", nil, false},
		{"run fails", errors.New("migration failed"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRunner{runErr: tt.runErr}

			err := m.Run()
			assert.True(t, m.runCalled)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMockRunner_Rollback(t *testing.T) {
	m := &mockRunner{}
	require.NoError(t, m.Rollback())
	assert.True(t, m.rollbackCalled)

	m = &mockRunner{rollbackErr: errors.New("nothing to roll back")}
	assert.Error(t, m.Rollback())
}

func TestMockRunner_Version(t *testing.T) {
	tests := []struct {
		name    string
		version uint
		dirty   bool
	}{
		{"no migrations applied", 0, false},
		{"at version two", 2, false},
		{"dirty state", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRunner{version: tt.version, dirty: tt.dirty}

			version, dirty, err := m.Version()
			require.NoError(t, err)
			assert.True(t, m.versionCalled)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.dirty, dirty)
		})
	}
}

func TestRunner_OpenFailsOnBadURL(t *testing.T) {
	runner := NewRunner(&Config{
		DatabaseURL:    "://not-a-url",
		MigrationsPath: "../../../migrations",
	})

	assert.Error(t, runner.Run())
	assert.Error(t, runner.Rollback())

	_, _, err := runner.Version()
	assert.Error(t, err)
}
