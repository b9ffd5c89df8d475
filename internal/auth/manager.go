package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

const serviceName = "sheetport"

// Manager stores login credentials per profile
type Manager struct {
	baseDir        string
	useKeyring     bool
	useEncryption  bool
	storage        StorageBackend
	storageWarning string
}

// NewManager creates a new auth manager
func NewManager(baseDir string) *Manager {
	return NewManagerWithOptions(baseDir, ManagerOptions{})
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	ForceEncryptedFile bool // Force use of encrypted file storage
	ForcePlainFile     bool // Force use of plain file storage (insecure, dev only)
}

// NewManagerWithOptions creates a new auth manager with specific options
func NewManagerWithOptions(baseDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{
		baseDir: baseDir,
	}

	if opts.ForcePlainFile {
		mgr.storage = NewPlainFileStorage(baseDir)
		mgr.storageWarning = "WARNING: Using unencrypted file storage. Passwords are stored in plain text."
	} else if opts.ForceEncryptedFile || !checkKeyringAvailable() {
		storage, err := NewEncryptedFileStorage(baseDir)
		if err != nil {
			// Fallback to plain file if encryption setup fails
			mgr.storage = NewPlainFileStorage(baseDir)
			mgr.storageWarning = fmt.Sprintf("WARNING: Encryption setup failed (%v). Using plain file storage.", err)
		} else {
			mgr.storage = storage
			mgr.useEncryption = true
			if !opts.ForceEncryptedFile {
				mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
			}
		}
	} else {
		// System keyring (preferred)
		mgr.storage = NewKeyringStorage(serviceName)
		mgr.useKeyring = true
	}

	return mgr
}

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	testKey := "sheetport-probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// SaveCredential stores username and password for a profile
func (m *Manager) SaveCredential(cred types.StoredCredential) error {
	if cred.Profile == "" || cred.Username == "" || cred.Password == "" {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			"profile, username and password are all required").Build())
	}
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now().UTC()
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := m.storage.Save(cred.Profile, data); err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIO,
			fmt.Sprintf("failed to store credentials: %v", err)).
			WithContext("backend", m.storage.Name()).
			Build(), err)
	}

	if err := m.addProfileToList(cred.Profile); err != nil {
		// Non-fatal error, just log it
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// LoadCredential returns the stored credential for a profile. A missing
// profile is an AUTH_ERROR wrapping ErrNoCredentials.
func (m *Manager) LoadCredential(profile string) (*types.StoredCredential, error) {
	data, err := m.storage.Load(profile)
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuth, err.Error()).
			WithContext("profile", profile).
			WithContext("suggestedAction", "run 'sheetport auth save' or pass --password").
			Build(), err)
	}

	var stored types.StoredCredential
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &stored, nil
}

// DeleteCredential removes the stored credential for a profile
func (m *Manager) DeleteCredential(profile string) error {
	if err := m.storage.Delete(profile); err != nil {
		return err
	}

	if err := m.removeProfileFromList(profile); err != nil {
		// Non-fatal error, just log it
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// Status describes a profile without exposing its password
func (m *Manager) Status(profile string) types.CredentialStatus {
	status := types.CredentialStatus{Profile: profile, Backend: m.storage.Name()}
	stored, err := m.LoadCredential(profile)
	if err != nil {
		return status
	}
	status.Stored = true
	status.ServerURL = stored.ServerURL
	status.Username = stored.Username
	status.SavedAt = stored.SavedAt
	return status
}

// IsNotFound reports whether err means the profile has no credential
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoCredentials)
}

// UseKeyring returns whether the manager is using the system keyring
func (m *Manager) UseKeyring() bool {
	return m.useKeyring
}

// BaseDir returns the directory holding credential files
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// GetStorageBackend returns the name of the storage backend being used
func (m *Manager) GetStorageBackend() string {
	return m.storage.Name()
}

// GetStorageWarning returns any warning message about the storage backend
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}
