// Package credentials stores provider API keys encrypted on disk.
package credentials

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// MasterKeyEnvVar names the environment variable holding the master key.
const MasterKeyEnvVar = "MODELFUSION_MASTER_KEY"

// ErrNotFound is matched by errors.Is for a missing credential.
var ErrNotFound = errors.New("credential not found")

// Store defines the interface for credential storage.
type Store interface {
	// Set stores a key-value pair.
	Set(name, value string) error
	// Get retrieves a value by name. The error matches ErrNotFound when missing.
	Get(name string) (string, error)
	// Delete removes a key by name.
	Delete(name string) error
	// List returns all stored key names in sorted order.
	List() ([]string, error)
}

// NotFoundError is returned when a requested credential does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "credential not found: " + e.Name
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MasterKeySource supplies the secret that file encryption keys derive from.
type MasterKeySource interface {
	MasterKey() ([]byte, error)
}

// StaticMasterKey is a fixed master key.
type StaticMasterKey []byte

func (k StaticMasterKey) MasterKey() ([]byte, error) {
	if len(k) == 0 {
		return nil, errors.New("empty master key")
	}
	return k, nil
}

// EnvMasterKey reads the master key from MODELFUSION_MASTER_KEY.
type EnvMasterKey struct{}

func (EnvMasterKey) MasterKey() ([]byte, error) {
	v := os.Getenv(MasterKeyEnvVar)
	if v == "" {
		return nil, fmt.Errorf("%s not set", MasterKeyEnvVar)
	}
	return []byte(v), nil
}

// MachineMasterKey derives a master key from the host and user names.
// It is predictable and only suitable for single-user machines.
type MachineMasterKey struct{}

func (MachineMasterKey) MasterKey() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(hostname + ":" + username + ":modelfusion-credentials"))
	return sum[:], nil
}

// DefaultMasterKeySource uses MODELFUSION_MASTER_KEY when it is set and
// the machine-derived key otherwise.
func DefaultMasterKeySource() MasterKeySource {
	if os.Getenv(MasterKeyEnvVar) != "" {
		return EnvMasterKey{}
	}
	return MachineMasterKey{}
}

// DefaultPath returns the default credentials file path.
// - macOS/Linux: ~/.modelfusion/credentials.enc
// - Windows: %USERPROFILE%\.modelfusion\credentials.enc
func DefaultPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "credentials.enc"
	}

	return filepath.Join(homeDir, ".modelfusion", "credentials.enc")
}

// OpenDefault opens the store at DefaultPath with DefaultMasterKeySource.
func OpenDefault() (Store, error) {
	return Open(DefaultPath(), DefaultMasterKeySource())
}
