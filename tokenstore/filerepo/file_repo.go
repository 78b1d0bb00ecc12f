// Package filerepo keeps one token store namespace in one JSON file, the
// on-disk equivalent of a browser's local storage. With a passphrase the
// values are sealed with NaCl secretbox under an argon2id derived key.
package filerepo

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-account-shell/tokenstore"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	fileVersion = 1
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 2
)

var _ tokenstore.Repo = (*FileRepo)(nil)

// ErrDecrypt is returned when a sealed file cannot be opened with the
// configured passphrase.
var ErrDecrypt = errors.New("token store file could not be decrypted")

type fileContents struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
	Salt    []byte            `json:"salt,omitempty"`
	Nonce   []byte            `json:"nonce,omitempty"`
	Sealed  []byte            `json:"sealed,omitempty"`
}

// FileRepo is safe for concurrent use within one process. Every write
// rewrites the whole file atomically (temp file + rename).
type FileRepo struct {
	path       string
	passphrase []byte
	lock       sync.Mutex
}

type Option func(*FileRepo)

// WithPassphrase enables at-rest encryption.
func WithPassphrase(passphrase string) Option {
	return func(r *FileRepo) {
		if passphrase != "" {
			r.passphrase = []byte(passphrase)
		}
	}
}

// New stores the namespace in <folder>/<namespace>.json.
func New(folder, namespace string, options ...Option) (*FileRepo, error) {
	if namespace == "" || filepath.Base(namespace) != namespace {
		return nil, errors.Errorf("[filerepo.New] invalid namespace %q", namespace)
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filerepo.New] MkdirAll")
	}
	r := &FileRepo{path: filepath.Join(folder, namespace+".json")}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Path is the file backing the repo.
func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (r *FileRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}
	values[key] = value
	return r.save(values)
}

func (r *FileRepo) Delete(_ context.Context, keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}
	changed := false
	for _, key := range keys {
		if _, ok := values[key]; ok {
			delete(values, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if len(values) == 0 {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "[FileRepo.Delete] Remove")
		}
		return nil
	}
	return r.save(values)
}

func (r *FileRepo) load() (map[string]string, error) {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileRepo.load] ReadFile")
	}

	var contents fileContents
	if err := json.Unmarshal(raw, &contents); err != nil {
		return nil, errors.Wrap(err, "[FileRepo.load] Unmarshal")
	}

	if contents.Sealed == nil {
		if contents.Values == nil {
			contents.Values = make(map[string]string)
		}
		return contents.Values, nil
	}

	if r.passphrase == nil || len(contents.Nonce) != nonceLength {
		return nil, ErrDecrypt
	}
	var nonce [nonceLength]byte
	copy(nonce[:], contents.Nonce)
	key := r.deriveKey(contents.Salt)

	opened, ok := secretbox.Open(nil, contents.Sealed, &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	values := make(map[string]string)
	if err := json.Unmarshal(opened, &values); err != nil {
		return nil, errors.Wrap(err, "[FileRepo.load] Unmarshal sealed values")
	}
	return values, nil
}

func (r *FileRepo) save(values map[string]string) error {
	contents := fileContents{Version: fileVersion}

	if r.passphrase == nil {
		contents.Values = values
	} else {
		plain, err := json.Marshal(values)
		if err != nil {
			return errors.Wrap(err, "[FileRepo.save] Marshal values")
		}
		salt := make([]byte, saltLength)
		var nonce [nonceLength]byte
		if _, err := rand.Read(salt); err != nil {
			return errors.Wrap(err, "[FileRepo.save] rand.Read salt")
		}
		if _, err := rand.Read(nonce[:]); err != nil {
			return errors.Wrap(err, "[FileRepo.save] rand.Read nonce")
		}
		contents.Salt = salt
		contents.Nonce = nonce[:]
		contents.Sealed = secretbox.Seal(nil, plain, &nonce, r.deriveKey(salt))
	}

	raw, err := json.Marshal(contents)
	if err != nil {
		return errors.Wrap(err, "[FileRepo.save] Marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "[FileRepo.save] CreateTemp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileRepo.save] Write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileRepo.save] Close")
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrap(err, "[FileRepo.save] Rename")
	}
	return nil
}

func (r *FileRepo) deriveKey(salt []byte) *[keyLength]byte {
	var key [keyLength]byte
	copy(key[:], argon2.IDKey(r.passphrase, salt, argonTime, argonMemory, argonThreads, keyLength))
	return &key
}
