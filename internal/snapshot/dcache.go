package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Digest is the cache key of one function build.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// KeyFor hashes everything that determines a build's output: the function
// name, its script source, the builder settings and the resolved symbols
// the function depends on.
func KeyFor(name string, source []byte, settings string, deps ...string) Digest {
	h := sha256.New()
	parts := [][]byte{[]byte(name), source, []byte(settings)}
	for _, d := range deps {
		parts = append(parts, []byte(d))
	}
	for _, part := range parts {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

// DiskCache stores encoded snapshots under a directory, one file per key.
// Safe for concurrent use; a nil cache stores nothing.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache creates dir if needed.
func OpenDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := key.String()
	return filepath.Join(c.dir, "funcs", hexKey[:2], hexKey+".mp")
}

// Put writes f under key, replacing any previous entry atomically.
func (c *DiskCache) Put(key Digest, f *Function) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()

	if err := Encode(tmp, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Get loads the entry for key. A missing entry, or one written with an older
// schema, reports false with no error.
func (c *DiskCache) Get(key Digest) (*Function, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	file, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	f, err := Decode(file)
	if err != nil {
		if errors.Is(err, ErrSchema) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return f, true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "funcs"))
}
