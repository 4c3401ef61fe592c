package shroud

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Vault file layout.
const (
	blobExt          = ".enc"
	masterKeyFile    = ".master_key_hash"
	handlePrefix     = "rs_"
	blobVersion      = 1
	vaultFileMode    = 0o600
	vaultDirMode     = 0o700
	maxBlobSize      = 256 * 1024 * 1024
	maxMasterKeySize = 4096
)

// Vault operation names used in errors.
const (
	opStore    = "store"
	opRetrieve = "retrieve"
	opVerify   = "verify"
	opDelete   = "delete"
	opList     = "list"
)

// DefaultOverwritePasses is the number of random overwrites before a blob is removed.
const DefaultOverwritePasses = 3

// Handle identifies a stored record set: "rs_" followed by a UUID.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(handlePrefix + uuid.NewString())
}

// ParseHandle validates s. Only the canonical lower-case form is accepted,
// so a handle can never name a path outside the vault directory.
func ParseHandle(s string) (Handle, error) {
	rest, ok := strings.CutPrefix(s, handlePrefix)
	if !ok {
		return "", ErrInvalidHandle
	}
	id, err := uuid.Parse(rest)
	if err != nil || id.String() != rest {
		return "", ErrInvalidHandle
	}
	return Handle(s), nil
}

func (h Handle) String() string {
	return string(h)
}

// BlobMetadata is the unencrypted header of a stored record set.
// It never contains cell values.
type BlobMetadata struct {
	CreatedAt      time.Time  `json:"created_at"`
	KeyDerivation  string     `json:"key_derivation"`
	ContentType    string     `json:"content_type"`
	PlaintextHash  string     `json:"plaintext_hash"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	Name           string     `json:"name"`
	Rows           int        `json:"rows"`
	Columns        int        `json:"columns"`
}

// Blob is the on-disk container. Byte fields are base64 in JSON.
type Blob struct {
	Version    int          `json:"version"`
	Ciphertext []byte       `json:"ciphertext"`
	AuthTag    []byte       `json:"auth_tag"`
	Nonce      []byte       `json:"nonce"`
	Salt       []byte       `json:"salt"`
	Metadata   BlobMetadata `json:"metadata"`
}

// BlobInfo describes a stored record set without opening it.
type BlobInfo struct {
	Handle   Handle
	Metadata BlobMetadata
}

// VaultOption configures a Vault.
type VaultOption func(*Vault) error

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) VaultOption {
	return func(v *Vault) error {
		if fs == nil {
			return newConfigError("fs", "must not be nil")
		}
		v.fs = fs
		return nil
	}
}

// WithCodec sets the payload codec. Defaults to JSON.
func WithCodec(c Codec) VaultOption {
	return func(v *Vault) error {
		if c == nil {
			return newConfigError("codec", "must not be nil")
		}
		v.codec = c
		return nil
	}
}

// WithIterations sets the PBKDF2 iteration count.
func WithIterations(n int) VaultOption {
	return func(v *Vault) error {
		if n < MinIterations {
			return newConfigError("iterations", fmt.Sprintf("must be at least %d", MinIterations))
		}
		if n > maxIterations {
			return newConfigError("iterations", fmt.Sprintf("must be at most %d", maxIterations))
		}
		v.iterations = n
		return nil
	}
}

// WithKDF selects the key derivation function for new blobs.
// Existing blobs are always opened with the function recorded in their header.
func WithKDF(kdf KDF) VaultOption {
	return func(v *Vault) error {
		if kdf != KDFPBKDF2 && kdf != KDFArgon2 {
			return newConfigError("kdf", fmt.Sprintf("unknown kdf %q", kdf))
		}
		v.kdf = kdf
		return nil
	}
}

// WithArgon2Params sets the Argon2id parameters used with KDFArgon2.
func WithArgon2Params(p Argon2Params) VaultOption {
	return func(v *Vault) error {
		if p.Time == 0 || p.Memory == 0 || p.Threads == 0 || p.Memory > maxArgon2Memory {
			return newConfigError("argon2", "time, memory and threads must be positive and memory bounded")
		}
		v.argon2 = p
		return nil
	}
}

// WithPasswordHash selects the verifier format written on first store.
func WithPasswordHash(ph PasswordHash) VaultOption {
	return func(v *Vault) error {
		switch ph {
		case PasswordSHA256:
			v.verifier = sha256Verifier{}
		case PasswordBcrypt:
			v.verifier = bcryptVerifier{cost: bcryptCost}
		default:
			return newConfigError("password hash", fmt.Sprintf("unknown format %q", ph))
		}
		return nil
	}
}

// WithOverwritePasses sets how many times a blob is overwritten before removal.
func WithOverwritePasses(n int) VaultOption {
	return func(v *Vault) error {
		if n < 1 {
			return newConfigError("overwrite passes", "must be positive")
		}
		v.overwritePasses = n
		return nil
	}
}

// Vault stores record sets encrypted at rest under a master password.
//
// Each record set is one file. A Vault holds no locks: callers serialize
// access to a given handle.
type Vault struct {
	fs              afero.Fs
	dir             string
	codec           Codec
	kdf             KDF
	iterations      int
	argon2          Argon2Params
	verifier        passwordVerifier
	overwritePasses int
}

// NewVault creates a vault rooted at dir. The directory is created on first store.
func NewVault(dir string, opts ...VaultOption) (*Vault, error) {
	if dir == "" {
		return nil, newConfigError("dir", "must not be empty")
	}
	v := &Vault{
		fs:              afero.NewOsFs(),
		dir:             filepath.Clean(dir),
		codec:           JSONCodec(),
		kdf:             KDFPBKDF2,
		iterations:      MinIterations,
		argon2:          DefaultArgon2Params(),
		verifier:        sha256Verifier{},
		overwritePasses: DefaultOverwritePasses,
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Dir returns the vault directory.
func (v *Vault) Dir() string {
	return v.dir
}

func (v *Vault) deriver() keyDeriver {
	if v.kdf == KDFArgon2 {
		return argon2Deriver{params: v.argon2}
	}
	return pbkdf2Deriver{iterations: v.iterations}
}

// Store encrypts t and writes it under a new handle.
//
// The first store creates the master password verifier. Later stores with a
// different password fail with ErrMasterPassword.
func (v *Vault) Store(ctx context.Context, t *Table, password string) (h Handle, err error) {
	start := time.Now()
	h = NewHandle()
	size := 0
	kdf := v.deriver()
	defer func() {
		rows := 0
		if t != nil {
			rows = t.Len()
		}
		emitVaultStore(ctx, h, kdf.label(), rows, size, time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t == nil {
		return "", newVaultError(ErrInvalidConfig, opStore, "", errors.New("nil table"))
	}
	if password == "" {
		return "", newVaultError(ErrMasterPassword, opStore, "", nil)
	}

	pw := []byte(password)
	defer clear(pw)

	if err := v.fs.MkdirAll(v.dir, vaultDirMode); err != nil {
		return "", newVaultError(ErrVaultIO, opStore, "", err)
	}
	if err := v.ensureMasterPassword(pw); err != nil {
		return "", err
	}

	plaintext, err := v.codec.Marshal(t)
	if err != nil {
		return "", newVaultError(ErrVaultIO, opStore, "", fmt.Errorf("failed to encode record set: %w", err))
	}
	defer clear(plaintext)
	digest := sha256.Sum256(plaintext)

	salt, err := randomBytes(saltSize)
	if err != nil {
		return "", newVaultError(ErrVaultIO, opStore, "", err)
	}
	key := kdf.derive(pw, salt)
	defer clear(key)

	aead, err := newAESGCM(key)
	if err != nil {
		return "", newVaultError(ErrVaultIO, opStore, "", err)
	}
	s, err := aead.seal(plaintext, additionalData(h))
	if err != nil {
		return "", newVaultError(ErrVaultIO, opStore, "", err)
	}

	blob := &Blob{
		Version:    blobVersion,
		Ciphertext: s.ciphertext,
		AuthTag:    s.tag,
		Nonce:      s.nonce,
		Salt:       salt,
		Metadata: BlobMetadata{
			CreatedAt:     time.Now().UTC(),
			KeyDerivation: kdf.label(),
			ContentType:   v.codec.ContentType(),
			PlaintextHash: hex.EncodeToString(digest[:]),
			Name:          t.Name,
			Rows:          t.Len(),
			Columns:       len(t.Columns),
		},
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return "", newVaultError(ErrVaultIO, opStore, "", err)
	}
	size = len(data)
	if err := v.writeAtomic(v.blobPath(h), data); err != nil {
		return "", newVaultError(ErrVaultIO, opStore, h, err)
	}
	return h, nil
}

// Retrieve decrypts the record set stored under h.
//
// Every integrity failure, including a wrong password, returns
// ErrDecryptionIntegrity and no data. A successful retrieve increments the
// blob's access count and records the access time.
func (v *Vault) Retrieve(ctx context.Context, h Handle, password string) (*Table, error) {
	start := time.Now()
	blob, t, err := v.open(ctx, opRetrieve, h, password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	blob.Metadata.AccessCount++
	blob.Metadata.LastAccessedAt = &now
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return nil, newVaultError(ErrVaultIO, opRetrieve, h, err)
	}
	if err := v.writeAtomic(v.blobPath(h), data); err != nil {
		return nil, newVaultError(ErrVaultIO, opRetrieve, h, fmt.Errorf("failed to record access: %w", err))
	}

	emitVaultRetrieve(ctx, h, t.Len(), blob.Metadata.AccessCount, time.Since(start))
	return t, nil
}

// Verify checks that h opens under password without returning the data
// or counting an access.
func (v *Vault) Verify(ctx context.Context, h Handle, password string) error {
	_, _, err := v.open(ctx, opVerify, h, password)
	return err
}

// open reads, authenticates and decodes a blob.
func (v *Vault) open(ctx context.Context, op string, h Handle, password string) (*Blob, *Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if _, err := ParseHandle(string(h)); err != nil {
		return nil, nil, newVaultError(ErrInvalidHandle, op, "", nil)
	}

	pw := []byte(password)
	defer clear(pw)

	// The password is checked before the blob is looked up, so handle
	// existence is not disclosed to callers without it. A vault that has no
	// master password yet holds no blobs.
	stored, err := v.readMasterHash()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, newVaultError(ErrNotFound, op, h, nil)
		}
		return nil, nil, v.deny(ctx, op, h, reasonMalformed)
	}
	if !verifierFor(stored).verify(stored, pw) {
		return nil, nil, v.deny(ctx, op, h, reasonWrongPassword)
	}

	blob, err := v.readBlob(h)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, newVaultError(ErrNotFound, op, h, nil)
		}
		return nil, nil, v.deny(ctx, op, h, reasonMalformed)
	}

	kdf, err := parseKeyDerivation(blob.Metadata.KeyDerivation)
	if err != nil || len(blob.Salt) != saltSize {
		return nil, nil, v.deny(ctx, op, h, reasonMalformed)
	}
	codec, err := codecByContentType(blob.Metadata.ContentType)
	if err != nil {
		return nil, nil, v.deny(ctx, op, h, reasonMalformed)
	}

	key := kdf.derive(pw, blob.Salt)
	defer clear(key)

	aead, err := newAESGCM(key)
	if err != nil {
		return nil, nil, v.deny(ctx, op, h, reasonMalformed)
	}
	plaintext, err := aead.open(sealed{
		ciphertext: blob.Ciphertext,
		tag:        blob.AuthTag,
		nonce:      blob.Nonce,
	}, additionalData(h))
	if err != nil {
		if errors.Is(err, ErrCiphertextShort) {
			return nil, nil, v.deny(ctx, op, h, reasonMalformed)
		}
		return nil, nil, v.deny(ctx, op, h, reasonAuthTag)
	}
	defer clear(plaintext)

	digest := sha256.Sum256(plaintext)
	want, err := hex.DecodeString(blob.Metadata.PlaintextHash)
	if err != nil || subtle.ConstantTimeCompare(digest[:], want) != 1 {
		return nil, nil, v.deny(ctx, op, h, reasonDigest)
	}

	var t Table
	if err := codec.Unmarshal(plaintext, &t); err != nil {
		return nil, nil, v.deny(ctx, op, h, reasonMalformed)
	}
	return blob, &t, nil
}

// deny reports the reason on the denied signal and returns the generic error.
func (v *Vault) deny(ctx context.Context, op string, h Handle, reason string) error {
	emitVaultDenied(ctx, h, reason)
	return newVaultError(ErrDecryptionIntegrity, op, h, nil)
}

// Delete overwrites the blob with random bytes, syncs and removes it.
// A missing handle returns false and ErrNotFound.
func (v *Vault) Delete(ctx context.Context, h Handle) (deleted bool, err error) {
	defer func() {
		if !errors.Is(err, ErrInvalidHandle) {
			emitVaultDelete(ctx, h, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := ParseHandle(string(h)); err != nil {
		return false, newVaultError(ErrInvalidHandle, opDelete, "", nil)
	}

	path := v.blobPath(h)
	info, err := v.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, newVaultError(ErrNotFound, opDelete, h, nil)
		}
		return false, newVaultError(ErrVaultIO, opDelete, h, err)
	}

	if err := v.overwrite(path, info.Size()); err != nil {
		return false, newVaultError(ErrVaultIO, opDelete, h, err)
	}
	if err := v.fs.Remove(path); err != nil {
		return false, newVaultError(ErrVaultIO, opDelete, h, err)
	}
	return true, nil
}

// overwrite replaces the file contents with random bytes, once per pass.
func (v *Vault) overwrite(path string, size int64) error {
	f, err := v.fs.OpenFile(path, os.O_WRONLY, vaultFileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	const chunk = 32 * 1024
	for pass := 0; pass < v.overwritePasses; pass++ {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		for remaining := size; remaining > 0; {
			n := min(remaining, chunk)
			buf, err := randomBytes(int(n))
			if err != nil {
				return err
			}
			if _, err := f.Write(buf); err != nil {
				return err
			}
			remaining -= n
		}
		if err := f.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// List returns the headers of every stored record set, oldest first.
// Files that are not valid blobs are skipped.
func (v *Vault) List(ctx context.Context) ([]BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(v.fs, v.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []BlobInfo{}, nil
		}
		return nil, newVaultError(ErrVaultIO, opList, "", err)
	}

	infos := make([]BlobInfo, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), blobExt)
		if !ok || e.IsDir() {
			continue
		}
		h, err := ParseHandle(name)
		if err != nil {
			continue
		}
		blob, err := v.readBlob(h)
		if err != nil {
			continue
		}
		infos = append(infos, BlobInfo{Handle: h, Metadata: blob.Metadata})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Metadata.CreatedAt.Before(infos[j].Metadata.CreatedAt)
	})
	return infos, nil
}

func (v *Vault) blobPath(h Handle) string {
	return filepath.Join(v.dir, string(h)+blobExt)
}

func (v *Vault) readBlob(h Handle) (*Blob, error) {
	f, err := v.fs.Open(v.blobPath(h))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBlobSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBlobSize {
		return nil, fmt.Errorf("blob exceeds %d bytes", maxBlobSize)
	}
	var blob Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	if blob.Version != blobVersion {
		return nil, fmt.Errorf("unsupported blob version %d", blob.Version)
	}
	return &blob, nil
}

func (v *Vault) readMasterHash() (string, error) {
	f, err := v.fs.Open(filepath.Join(v.dir, masterKeyFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxMasterKeySize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ensureMasterPassword creates the verifier file on first use and checks
// the password against it afterwards.
func (v *Vault) ensureMasterPassword(pw []byte) error {
	stored, err := v.readMasterHash()
	switch {
	case err == nil:
		if !verifierFor(stored).verify(stored, pw) {
			return newVaultError(ErrMasterPassword, opStore, "", nil)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		created, err := v.verifier.create(pw)
		if err != nil {
			return newVaultError(ErrVaultIO, opStore, "", err)
		}
		if err := v.writeAtomic(filepath.Join(v.dir, masterKeyFile), []byte(created+"\n")); err != nil {
			return newVaultError(ErrVaultIO, opStore, "", err)
		}
		return nil
	default:
		return newVaultError(ErrVaultIO, opStore, "", err)
	}
}

// writeAtomic writes data to a temp file in the target directory, syncs it
// and renames it over path.
func (v *Vault) writeAtomic(path string, data []byte) (err error) {
	tmp, err := afero.TempFile(v.fs, filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = v.fs.Remove(name)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = v.fs.Chmod(name, vaultFileMode); err != nil {
		return err
	}
	return v.fs.Rename(name, path)
}

// additionalData binds a ciphertext to its handle so blobs cannot be swapped.
func additionalData(h Handle) []byte {
	return []byte(fmt.Sprintf("shroud/v%d/%s", blobVersion, h))
}
