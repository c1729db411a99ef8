package indexing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// TaxonomyFile is the bbolt database holding the category taxonomy.
const TaxonomyFile = "taxonomy.db"

// RootOrdinal is the ordinal of the root category.
const RootOrdinal uint64 = 0

const taxonomyOpenTimeout = time.Second

var (
	bucketOrdinals = []byte("ordinals")
	bucketChildren = []byte("children")
	bucketMeta     = []byte("meta")
	keySize        = []byte("size")
)

// categoryKey encodes a path as a non-empty bbolt key. The root encodes to the bare marker.
func categoryKey(p domain.CategoryPath) []byte {
	return []byte("\x1e" + strings.Join(p, "\x1f"))
}

func decodeCategoryKey(k []byte) domain.CategoryPath {
	s := strings.TrimPrefix(string(k), "\x1e")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x1f")
}

func encodeOrdinal(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func decodeOrdinal(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func taxonomyPath(dir string) string {
	return filepath.Join(dir, TaxonomyFile)
}

// TaxonomyWriter assigns ordinals to category paths.
//
// The full taxonomy is held in memory while the writer is open. New
// categories are buffered and persisted in a single bbolt transaction by
// Commit, so the database is only locked for the duration of a commit.
type TaxonomyWriter struct {
	path     string
	ordinals map[string]uint64
	pending  []domain.CategoryPath
}

// OpenTaxonomyWriter opens the taxonomy under dir according to mode.
func OpenTaxonomyWriter(dir string, mode OpenMode) (*TaxonomyWriter, error) {
	path := taxonomyPath(dir)

	switch mode {
	case ModeCreate:
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("%w: remove taxonomy %s: %w", domain.ErrStorage, dir, err)
		}
	case ModeAppendOnly:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: taxonomy %s: %w", domain.ErrStorage, dir, err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create taxonomy dir %s: %w", domain.ErrStorage, dir, err)
	}

	w := &TaxonomyWriter{path: path, ordinals: make(map[string]uint64)}
	if err := w.load(); err != nil {
		return nil, err
	}
	return w, nil
}

// load initializes the buckets, registers the root, and reads every ordinal into memory.
func (w *TaxonomyWriter) load() (err error) {
	db, err := bolt.Open(w.path, 0o644, &bolt.Options{Timeout: taxonomyOpenTimeout})
	if err != nil {
		return fmt.Errorf("%w: open taxonomy %s: %w", domain.ErrStorage, w.path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close taxonomy: %w", domain.ErrStorage, cerr)
		}
	}()

	err = db.Update(func(tx *bolt.Tx) error {
		ordinals, err := tx.CreateBucketIfNotExists(bucketOrdinals)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketChildren); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}

		if meta.Get(keySize) == nil {
			if err := ordinals.Put(categoryKey(nil), encodeOrdinal(RootOrdinal)); err != nil {
				return err
			}
			if err := meta.Put(keySize, encodeOrdinal(1)); err != nil {
				return err
			}
		}

		return ordinals.ForEach(func(k, v []byte) error {
			w.ordinals[string(k)] = decodeOrdinal(v)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%w: load taxonomy %s: %w", domain.ErrStorage, w.path, err)
	}
	return nil
}

// AddCategory registers p and all of its ancestors and returns the ordinal of p.
// Registering an existing category returns its existing ordinal.
func (w *TaxonomyWriter) AddCategory(p domain.CategoryPath) uint64 {
	var ord uint64
	for i := 0; i <= len(p); i++ {
		ord = w.ensure(p[:i])
	}
	return ord
}

func (w *TaxonomyWriter) ensure(p domain.CategoryPath) uint64 {
	key := string(categoryKey(p))
	if ord, ok := w.ordinals[key]; ok {
		return ord
	}

	ord := uint64(len(w.ordinals))
	w.ordinals[key] = ord
	w.pending = append(w.pending, append(domain.CategoryPath(nil), p...))
	return ord
}

// Size returns the number of categories including the root and uncommitted additions.
func (w *TaxonomyWriter) Size() int {
	return len(w.ordinals)
}

// Pending returns the number of categories not yet committed.
func (w *TaxonomyWriter) Pending() int {
	return len(w.pending)
}

// Commit persists pending categories in one transaction.
func (w *TaxonomyWriter) Commit() (err error) {
	if len(w.pending) == 0 {
		return nil
	}

	db, err := bolt.Open(w.path, 0o644, &bolt.Options{Timeout: taxonomyOpenTimeout})
	if err != nil {
		return fmt.Errorf("%w: open taxonomy %s: %w", domain.ErrStorage, w.path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close taxonomy: %w", domain.ErrStorage, cerr)
		}
	}()

	err = db.Update(func(tx *bolt.Tx) error {
		ordinals := tx.Bucket(bucketOrdinals)
		children := tx.Bucket(bucketChildren)
		meta := tx.Bucket(bucketMeta)
		if ordinals == nil || children == nil || meta == nil {
			return errors.New("taxonomy buckets missing")
		}

		for _, p := range w.pending {
			ord := encodeOrdinal(w.ordinals[string(categoryKey(p))])
			if err := ordinals.Put(categoryKey(p), ord); err != nil {
				return err
			}
			parent, err := children.CreateBucketIfNotExists(categoryKey(p.Parent()))
			if err != nil {
				return err
			}
			if err := parent.Put([]byte(p.Label()), ord); err != nil {
				return err
			}
		}

		return meta.Put(keySize, encodeOrdinal(uint64(len(w.ordinals))))
	})
	if err != nil {
		return fmt.Errorf("%w: commit taxonomy %s: %w", domain.ErrStorage, w.path, err)
	}

	w.pending = nil
	return nil
}

// TaxonomyReader is a read-only view of a committed taxonomy.
type TaxonomyReader struct {
	db *bolt.DB
}

// OpenTaxonomyReader opens the taxonomy under dir for reading. The taxonomy must exist.
func OpenTaxonomyReader(dir string) (*TaxonomyReader, error) {
	path := taxonomyPath(dir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: taxonomy %s: %w", domain.ErrStorage, dir, err)
	}

	db, err := bolt.Open(path, 0o444, &bolt.Options{ReadOnly: true, Timeout: taxonomyOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open taxonomy %s: %w", domain.ErrStorage, path, err)
	}
	return &TaxonomyReader{db: db}, nil
}

// Ordinal returns the ordinal of p and whether p exists.
func (r *TaxonomyReader) Ordinal(p domain.CategoryPath) (ord uint64, ok bool, err error) {
	err = r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrdinals)
		if b == nil {
			return nil
		}
		if v := b.Get(categoryKey(p)); v != nil {
			ord, ok = decodeOrdinal(v), true
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: read taxonomy: %w", domain.ErrStorage, err)
	}
	return ord, ok, nil
}

// Children returns the labels directly below p in ordinal order.
func (r *TaxonomyReader) Children(p domain.CategoryPath) ([]string, error) {
	type child struct {
		label string
		ord   uint64
	}
	var found []child

	err := r.db.View(func(tx *bolt.Tx) error {
		children := tx.Bucket(bucketChildren)
		if children == nil {
			return nil
		}
		b := children.Bucket(categoryKey(p))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			found = append(found, child{label: string(k), ord: decodeOrdinal(v)})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read taxonomy: %w", domain.ErrStorage, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ord < found[j].ord })
	labels := make([]string, len(found))
	for i, c := range found {
		labels[i] = c.label
	}
	return labels, nil
}

// Categories returns every registered path except the root.
func (r *TaxonomyReader) Categories() ([]domain.CategoryPath, error) {
	var out []domain.CategoryPath
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrdinals)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if p := decodeCategoryKey(k); !p.IsRoot() {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read taxonomy: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// Size returns the number of categories including the root.
func (r *TaxonomyReader) Size() (int, error) {
	var size uint64
	err := r.db.View(func(tx *bolt.Tx) error {
		if meta := tx.Bucket(bucketMeta); meta != nil {
			size = decodeOrdinal(meta.Get(keySize))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read taxonomy: %w", domain.ErrStorage, err)
	}
	return int(size), nil
}

// Close releases the database.
func (r *TaxonomyReader) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
