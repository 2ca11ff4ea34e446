// Package security provides encrypted credential storage for broker secrets.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	apperrors "mstock-trader/internal/errors"
)

const (
	// EncryptionKeySize is the size of the AES-256 key in bytes.
	EncryptionKeySize = 32
	// SaltSize is the size of the salt for key derivation.
	SaltSize = 16
	// NonceSize is the size of the GCM nonce.
	NonceSize = 12
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000

	credentialsFile = "credentials.enc"
	keyFile         = "store.key"
)

// Envelope holds encrypted credential data as stored on disk.
type Envelope struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Version    int    `json:"version"`
}

// Credentials holds the decrypted broker secrets. Values are decrypted on
// demand and never logged; callers must not retain them beyond the request
// they are building.
type Credentials struct {
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	Password    string `json:"password"`
	TOTPSecret  string `json:"totp_secret"`
	AccessToken string `json:"access_token"`
	ClientCode  string `json:"client_code"`
}

// Store encrypts credentials at rest with a key held in a process-local
// key file. Token refresh is serialized through the store so that
// concurrent callers observing the same expired token trigger exactly
// one refresh.
type Store struct {
	configDir string
	mu        sync.Mutex
	refreshMu sync.Mutex
}

// NewStore creates a credential store rooted at configDir.
func NewStore(configDir string) *Store {
	return &Store{configDir: configDir}
}

// Initialize creates the key file and an empty credentials envelope when
// they do not exist yet.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if _, err := s.loadKey(); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := s.createKey(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(s.credentialsPath()); os.IsNotExist(err) {
		return s.save(&Credentials{})
	}
	return nil
}

// Credentials decrypts and returns the stored secrets.
func (s *Store) Credentials() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// APIKey returns the stored API key.
func (s *Store) APIKey() (string, error) {
	creds, err := s.Credentials()
	if err != nil {
		return "", err
	}
	return creds.APIKey, nil
}

// AccessToken returns the current access token, which may be empty when
// no session has been established yet.
func (s *Store) AccessToken() (string, error) {
	creds, err := s.Credentials()
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// Update applies fn to the decrypted credentials and persists the result
// atomically.
func (s *Store) Update(fn func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	fn(creds)
	return s.save(creds)
}

// SetAccessToken persists a new access token.
func (s *Store) SetAccessToken(token string) error {
	return s.Update(func(c *Credentials) { c.AccessToken = token })
}

// RefreshIfStale runs refresh under the refresh lock. If another caller
// already replaced the stale token, the new token is returned without a
// second refresh. On success the new token is persisted before any waiting
// caller observes it.
func (s *Store) RefreshIfStale(stale string, refresh func(creds *Credentials) (string, error)) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	creds, err := s.Credentials()
	if err != nil {
		return "", err
	}
	if creds.AccessToken != "" && creds.AccessToken != stale {
		return creds.AccessToken, nil
	}

	token, err := refresh(creds)
	if err != nil {
		return "", err
	}
	if err := s.SetAccessToken(token); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.configDir, credentialsFile)
}

func (s *Store) keyPath() string {
	return filepath.Join(s.configDir, keyFile)
}

func (s *Store) createKey() error {
	key := make([]byte, EncryptionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return fmt.Errorf("generating store key: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	return atomicWrite(s.keyPath(), []byte(encoded), 0600)
}

func (s *Store) loadKey() ([]byte, error) {
	data, err := os.ReadFile(s.keyPath())
	if err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("decoding store key: %w", err)
	}
	return key, nil
}

func (s *Store) load() (*Credentials, error) {
	key, err := s.loadKey()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCredentialAccess, "reading store key")
	}

	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrNotAuthenticated
		}
		return nil, apperrors.Wrap(err, "reading credentials")
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Wrap(err, "parsing credential envelope")
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, apperrors.Wrap(err, "decoding salt")
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, apperrors.Wrap(err, "decoding nonce")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, apperrors.Wrap(err, "decoding ciphertext")
	}

	plaintext, err := decrypt(ciphertext, deriveKey(key, salt), nonce)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCredentialAccess, "decrypting credentials")
	}

	creds := &Credentials{}
	if err := json.Unmarshal(plaintext, creds); err != nil {
		return nil, apperrors.Wrap(err, "parsing credentials")
	}
	return creds, nil
}

func (s *Store) save(creds *Credentials) error {
	key, err := s.loadKey()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCredentialAccess, "reading store key")
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	nonce, ciphertext, err := encrypt(plaintext, deriveKey(key, salt))
	if err != nil {
		return err
	}

	env := Envelope{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Version:    1,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}
	return atomicWrite(s.credentialsPath(), data, 0600)
}

// deriveKey derives an encryption key from the store key using PBKDF2.
func deriveKey(storeKey, salt []byte) []byte {
	return pbkdf2.Key(storeKey, salt, PBKDF2Iterations, EncryptionKeySize, sha256.New)
}

// encrypt encrypts plaintext using AES-256-GCM.
func encrypt(plaintext, key []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// decrypt decrypts ciphertext using AES-256-GCM.
func decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

// atomicWrite writes data via a temp file and rename so a crash mid-write
// never corrupts the stored credentials.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
