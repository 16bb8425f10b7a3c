package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"
)

// File layout: [magic (4)] [version (1)] [salt (16)] [nonce (12)] [ciphertext].
// The header is authenticated as additional data.
const (
	magic       = "MFCS"
	version     = byte(0x01)
	saltLength  = 16
	nonceLength = 12
	headerLen   = len(magic) + 1 + saltLength + nonceLength
)

// kdfParams are Argon2id cost parameters.
type kdfParams struct {
	time    uint32
	memory  uint32 // KiB
	threads uint8
}

// defaultKDF follows the OWASP Argon2id recommendation.
var defaultKDF = kdfParams{time: 3, memory: 64 * 1024, threads: 4}

var errCorrupt = errors.New("credentials file is corrupt or the master key is wrong")

// FileStore implements Store as a JSON map encrypted with AES-256-GCM under
// an Argon2id-derived key. A fresh salt and nonce are used for every write.
type FileStore struct {
	path      string
	masterKey []byte
	kdf       kdfParams
	mu        sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// Open returns a FileStore at path. The file is created on first Set.
func Open(path string, source MasterKeySource) (*FileStore, error) {
	key, err := source.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("credentials master key: %w", err)
	}
	return &FileStore{path: path, masterKey: key, kdf: defaultKDF}, nil
}

// Path returns the file location.
func (f *FileStore) Path() string { return f.path }

// Set stores a key-value pair.
func (f *FileStore) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[name] = value
	return f.save(data)
}

// Get retrieves a value by name.
func (f *FileStore) Get(name string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}
	value, ok := data[name]
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	return value, nil
}

// Delete removes a key by name.
func (f *FileStore) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[name]; !ok {
		return &NotFoundError{Name: name}
	}
	delete(data, name)
	return f.save(data)
}

// List returns all stored key names.
func (f *FileStore) List() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStore) load() (map[string]string, error) {
	data := make(map[string]string)

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return data, nil
	}

	plaintext, err := f.decrypt(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return data, nil
}

func (f *FileStore) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	plaintext, err := json.Marshal(data)
	if err != nil {
		return err
	}
	raw, err := f.encrypt(plaintext)
	if err != nil {
		return err
	}

	// Replace atomically.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(f.masterKey, salt, f.kdf.time, f.kdf.memory, f.kdf.threads, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (f *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	header := make([]byte, headerLen)
	copy(header, magic)
	header[len(magic)] = version
	if _, err := io.ReadFull(rand.Reader, header[len(magic)+1:]); err != nil {
		return nil, err
	}
	salt := header[len(magic)+1 : len(magic)+1+saltLength]
	nonce := header[len(magic)+1+saltLength:]

	gcm, err := f.aead(salt)
	if err != nil {
		return nil, err
	}
	return append(header, gcm.Seal(nil, nonce, plaintext, header)...), nil
}

func (f *FileStore) decrypt(raw []byte) ([]byte, error) {
	if len(raw) < headerLen || string(raw[:len(magic)]) != magic {
		return nil, errCorrupt
	}
	if raw[len(magic)] != version {
		return nil, fmt.Errorf("unsupported credentials file version %d", raw[len(magic)])
	}
	header := raw[:headerLen]
	salt := header[len(magic)+1 : len(magic)+1+saltLength]
	nonce := header[len(magic)+1+saltLength:]

	gcm, err := f.aead(salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, raw[headerLen:], header)
	if err != nil {
		return nil, errCorrupt
	}
	return plaintext, nil
}
