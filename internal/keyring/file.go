package keyring

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-uuid"
	"github.com/hashicorp/tde/internal/errors"
)

const (
	// fileEntrySize is the fixed on-disk size of one keyring entry.
	fileEntrySize = 648

	fileEntryNameSize   = 128
	fileEntrySecretSize = 512
)

// fileLocks serializes access per store file so concurrent goroutines
// sharing a path cannot interleave a scan with an append.
var fileLocks sync.Map

func lockForPath(path string) *sync.Mutex {
	l, _ := fileLocks.LoadOrStore(path, new(sync.Mutex))
	return l.(*sync.Mutex)
}

// fileKeyring stores secrets in a single append-only file of fixed-size
// entries.  Entries are never updated or removed.
type fileKeyring struct {
	path         string
	randomReader io.Reader
}

func newFileKeyring(ctx context.Context, c *FileConfig, opt ...Option) (*fileKeyring, error) {
	const op = "keyring.newFileKeyring"
	if c == nil || c.Path == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing path")
	}
	opts := getOpts(opt...)
	r := opts.withRandomReader
	if r == nil {
		r = rand.Reader
	}
	return &fileKeyring{
		path:         filepath.Clean(c.Path),
		randomReader: r,
	}, nil
}

// FetchSecret returns the secret stored under name, or nil when the store
// file does not exist or holds no entry with that name.
func (k *fileKeyring) FetchSecret(ctx context.Context, name string) (*Secret, error) {
	const op = "keyring.(fileKeyring).FetchSecret"
	if name == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing secret name")
	}
	mu := lockForPath(k.path)
	mu.Lock()
	defer mu.Unlock()
	s, err := k.fetchLocked(ctx, name)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return s, nil
}

func (k *fileKeyring) fetchLocked(ctx context.Context, name string) (*Secret, error) {
	const op = "keyring.(fileKeyring).fetchLocked"
	f, err := os.Open(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io),
			errors.WithMsg(fmt.Sprintf("opening keyring store %s", k.path)))
	}
	defer f.Close()
	buf := make([]byte, fileEntrySize)
	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			if err == io.ErrUnexpectedEOF {
				return nil, errors.New(ctx, errors.Corrupt, op,
					fmt.Sprintf("short entry in keyring store %s", k.path))
			}
			return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io))
		}
		entryName, secret, err := decodeFileEntry(ctx, buf)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op,
				errors.WithMsg(fmt.Sprintf("decoding entry in keyring store %s", k.path)))
		}
		if entryName == name {
			return &Secret{Name: name, Value: secret}, nil
		}
	}
}

// GenerateSecret creates length random bytes, appends them to the store
// under name and returns the new secret.  The append is synced before the
// secret is returned.
func (k *fileKeyring) GenerateSecret(ctx context.Context, name string, length int) (*Secret, error) {
	const op = "keyring.(fileKeyring).GenerateSecret"
	switch {
	case name == "":
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing secret name")
	case len(name) > fileEntryNameSize:
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("secret name of %d bytes exceeds the %d byte limit", len(name), fileEntryNameSize))
	case length <= 0:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "secret length must be positive")
	case length > MaxSecretSize:
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("secret length %d exceeds the %d byte limit", length, MaxSecretSize))
	}
	mu := lockForPath(k.path)
	mu.Lock()
	defer mu.Unlock()

	existing, err := k.fetchLocked(ctx, name)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if existing != nil {
		return nil, errors.New(ctx, errors.NotUnique, op,
			fmt.Sprintf("secret %q already exists in keyring store %s", name, k.path))
	}

	value, err := uuid.GenerateRandomBytesWithReader(length, k.randomReader)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.GenKey))
	}
	d, err := encodeFileEntry(ctx, name, value)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}

	f, err := os.OpenFile(k.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io),
			errors.WithMsg(fmt.Sprintf("opening keyring store %s", k.path)))
	}
	defer f.Close()
	if _, err := f.Write(d); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io),
			errors.WithMsg(fmt.Sprintf("appending to keyring store %s", k.path)))
	}
	if err := f.Sync(); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io),
			errors.WithMsg(fmt.Sprintf("syncing keyring store %s", k.path)))
	}
	return &Secret{Name: name, Value: value}, nil
}

func encodeFileEntry(ctx context.Context, name string, secret []byte) ([]byte, error) {
	const op = "keyring.encodeFileEntry"
	if len(name) == 0 || len(name) > fileEntryNameSize {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "invalid secret name length")
	}
	if len(secret) == 0 || len(secret) > fileEntrySecretSize {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "invalid secret length")
	}
	d := make([]byte, 0, fileEntrySize)
	d = append(d, byte(len(name)))
	d = append(d, name...)
	d = append(d, make([]byte, fileEntryNameSize-len(name))...)
	d = binary.BigEndian.AppendUint16(d, uint16(len(secret)))
	d = append(d, secret...)
	d = append(d, make([]byte, fileEntrySize-len(d))...)
	return d, nil
}

func decodeFileEntry(ctx context.Context, b []byte) (string, []byte, error) {
	const op = "keyring.decodeFileEntry"
	if len(b) != fileEntrySize {
		return "", nil, errors.New(ctx, errors.Corrupt, op,
			fmt.Sprintf("keyring entry is %d bytes, want %d", len(b), fileEntrySize))
	}
	nameLen := int(b[0])
	if nameLen == 0 || nameLen > fileEntryNameSize {
		return "", nil, errors.New(ctx, errors.Corrupt, op, "keyring entry has an invalid name length")
	}
	name := string(b[1 : 1+nameLen])
	secretLen := int(binary.BigEndian.Uint16(b[1+fileEntryNameSize : 3+fileEntryNameSize]))
	if secretLen == 0 || secretLen > fileEntrySecretSize {
		return "", nil, errors.New(ctx, errors.Corrupt, op, "keyring entry has an invalid secret length")
	}
	secret := make([]byte, secretLen)
	copy(secret, b[3+fileEntryNameSize:3+fileEntryNameSize+secretLen])
	return name, secret, nil
}
