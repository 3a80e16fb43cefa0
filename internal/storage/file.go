package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keySalt       = "nauru-session-store"
	keyIterations = 100000
	keyLength     = 32
)

// Entry is one persisted value. Value holds the sealed, base64 encoded payload.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore persists encrypted entries in a single JSON file.
type FileStore struct {
	mu sync.RWMutex

	path      string
	masterKey []byte
	lock      *flock.Flock

	entries map[string]*Entry
}

// NewFileStore opens the store at path, loading existing entries if the file exists.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	masterKey := pbkdf2.Key([]byte(passphrase), []byte(keySalt), keyIterations, keyLength, sha256.New)

	s := &FileStore{
		path:      path,
		masterKey: masterKey,
		lock:      flock.New(path + ".lock"),
		entries:   make(map[string]*Entry),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get decrypts and returns the value stored under key.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}

	value, err := s.open(e.Value)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return value, true, nil
}

// Set encrypts value and writes the store to disk.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := s.seal(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}

	return s.update(func(entries map[string]*Entry) bool {
		entries[key] = &Entry{
			Key:       key,
			Value:     sealed,
			UpdatedAt: time.Now().UTC(),
		}
		return true
	})
}

// Remove deletes key and writes the store to disk.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(entries map[string]*Entry) bool {
		if _, ok := entries[key]; !ok {
			return false
		}
		delete(entries, key)
		return true
	})
}

// Keys returns the present keys in sorted order.
func (s *FileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) seal(plaintext string) (string, error) {
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	out := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *FileStore) open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}

	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	n := gcm.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *FileStore) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// update applies change to the entries currently on disk and writes the
// result back, all under the file lock, so entries written by another
// process since this store was opened survive. change reports whether it
// modified anything. Caller holds s.mu.
func (s *FileStore) update(change func(map[string]*Entry) bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.readEntries()
	if err != nil {
		// unreadable or corrupt file: the in-memory view replaces it
		entries = make(map[string]*Entry, len(s.entries))
		for k, e := range s.entries {
			entries[k] = e
		}
	}

	if !change(entries) {
		s.entries = entries
		return nil
	}
	if err := s.write(entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

func (s *FileStore) write(entries map[string]*Entry) error {
	list := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) load() error {
	entries, err := s.readEntries()
	if err != nil {
		return err
	}
	s.entries = entries
	return nil
}

// readEntries parses the file. A missing file yields an empty map.
func (s *FileStore) readEntries() (map[string]*Entry, error) {
	entries := make(map[string]*Entry)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var list []*Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	for _, e := range list {
		if e == nil || e.Key == "" {
			continue
		}
		entries[e.Key] = e
	}
	return entries, nil
}
