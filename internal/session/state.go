package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	stateDir  = ".kanoon"
	stateFile = "current_session"
)

// stateFilePath returns the path to the current-session state file
// under baseDir, creating the state directory if needed.
func stateFilePath(baseDir string) (string, error) {
	dir := filepath.Join(baseDir, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(dir, stateFile), nil
}

// StateBaseDir returns the directory under which the CLI keeps its
// state file, normally the user's home directory.
func StateBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return homeDir, nil
}

// LoadCurrentSessionID reads the active session ID from the state
// file under baseDir. A missing or empty file returns (nil, nil).
func LoadCurrentSessionID(baseDir string) (*uuid.UUID, error) {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID in state file: %w", err)
	}
	return &id, nil
}

// SaveCurrentSessionID persists the active session ID. The write is
// atomic (temp file + rename) and serialized across processes with a
// file lock, so concurrent CLI invocations cannot interleave.
func SaveCurrentSessionID(baseDir string, sessionID uuid.UUID) error {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sessionID.String()), 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// ClearCurrentSessionID removes the state file. Idempotent.
func ClearCurrentSessionID(baseDir string) error {
	path, err := stateFilePath(baseDir)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
