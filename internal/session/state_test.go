package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFilePath(t *testing.T) {
	tempDir := t.TempDir()

	path, err := stateFilePath(tempDir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))

	// Directory must exist after the call.
	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

func TestSaveAndLoadCurrentSessionID(t *testing.T) {
	tempDir := t.TempDir()
	testID := uuid.New()

	require.NoError(t, SaveCurrentSessionID(tempDir, testID))

	loaded, err := LoadCurrentSessionID(tempDir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, testID, *loaded)
}

func TestLoadCurrentSessionIDMissingFile(t *testing.T) {
	loaded, err := LoadCurrentSessionID(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveCurrentSessionIDOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	first := uuid.New()
	second := uuid.New()

	require.NoError(t, SaveCurrentSessionID(tempDir, first))
	require.NoError(t, SaveCurrentSessionID(tempDir, second))

	loaded, err := LoadCurrentSessionID(tempDir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, second, *loaded)
}

func TestClearCurrentSessionID(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, SaveCurrentSessionID(tempDir, uuid.New()))

	require.NoError(t, ClearCurrentSessionID(tempDir))

	loaded, err := LoadCurrentSessionID(tempDir)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing again is a no-op.
	require.NoError(t, ClearCurrentSessionID(tempDir))
}

func TestLoadCurrentSessionIDInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantNil bool
		wantErr bool
	}{
		{name: "empty file", content: "", wantNil: true},
		{name: "whitespace only", content: "   \n\t  ", wantNil: true},
		{name: "not a uuid", content: "not-a-valid-uuid", wantErr: true},
		{name: "truncated uuid", content: "12345678-1234-1234-1234", wantErr: true},
		{name: "valid uuid", content: "550e8400-e29b-41d4-a716-446655440000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			path, err := stateFilePath(tempDir)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			loaded, err := LoadCurrentSessionID(tempDir)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, loaded)
			} else {
				require.NotNil(t, loaded)
			}
		})
	}
}
