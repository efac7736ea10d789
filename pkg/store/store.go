// Package store persists media records, negative-match exclusions and
// weed (known-junk) tags in an embedded bbolt database, plus the
// content-addressed cache/video/thumb directory layout each index
// backend reads its data from (§4.E). Grounded on the teacher's
// pkg/log/db.go: one bucket per schema version, big-endian integer
// keys, JSON-encoded values, bolt.Options{Timeout: ...} so a second
// writer fails fast instead of hanging on the file lock.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"cbird/pkg/media"
)

const schemaVersion = "1"

const (
	bucketMedia    = "media"
	bucketMeta     = "meta"
	bucketNegMatch = "negmatch"
	bucketWeed     = "weed"
)

const metaKeyLastAdded = "lastAdded"

// lockTimeout bounds how long Open waits for bbolt's exclusive file
// lock before giving up, so a second `cbird-indexd` process against the
// same index directory fails fast with a clear error instead of hanging
// (§4.E "Concurrent writers").
const lockTimeout = 2 * time.Second

// Store owns the index directory layout and the bbolt database holding
// every media record plus negative-match and weed exclusions (§4.E).
type Store struct {
	rootDir string
	db      *bolt.DB
	mu      sync.RWMutex
}

// Open creates the index directory layout if missing and opens (or
// creates) its bbolt database, failing if another process already holds
// the write lock.
func Open(rootDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(rootDir, ".cbird", "cache"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create index dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(rootDir, ".cbird", "video"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create video dir: %w", err)
	}

	db, err := bolt.Open(dbPath(rootDir), 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketMedia, bucketMeta, bucketNegMatch, bucketWeed} {
			if _, err := tx.CreateBucketIfNotExists(bucketKey(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &Store{rootDir: rootDir, db: db}, nil
}

// Close releases the database file handle and its lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func bucketKey(name string) []byte { return []byte(name + ":" + schemaVersion) }

// Path is the root directory passed to Open.
func (s *Store) Path() string { return s.rootDir }

// IndexPath is where bbolt and cached index files live.
func (s *Store) IndexPath() string { return filepath.Join(s.rootDir, ".cbird") }

// CachePath holds per-backend serialized index caches (§4.D1 save()).
func (s *Store) CachePath() string { return filepath.Join(s.IndexPath(), "cache") }

// VideoPath holds one .vdx file per indexed video (§4.B).
func (s *Store) VideoPath() string { return filepath.Join(s.IndexPath(), "video") }

func dbPath(rootDir string) string { return filepath.Join(rootDir, ".cbird", "index.db") }

func encodeID(id media.ID) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return b[:]
}

// NextID allocates a fresh media.ID, backed by the media bucket's bbolt
// sequence counter so IDs stay unique across process restarts without a
// separate counter record.
func (s *Store) NextID() (media.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id media.ID
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = media.ID(seq)
		return nil
	})
	return id, err
}

// Add inserts or overwrites records for every item in items, and bumps
// the lastAdded timestamp.
func (s *Store) Add(items []media.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		for _, m := range items {
			if !m.ID.Valid() {
				return fmt.Errorf("store: add: media %q has no ID", m.Path)
			}
			value, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("store: marshal media %d: %w", m.ID, err)
			}
			if err := b.Put(encodeID(m.ID), value); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketKey(bucketMeta))
		return meta.Put([]byte(metaKeyLastAdded), encodeTimestamp(time.Now()))
	})
}

func encodeTimestamp(t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano()))
	return b[:]
}

// Remove deletes every record with the given IDs.
func (s *Store) Remove(ids []media.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		for _, id := range ids {
			if err := b.Delete(encodeID(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// MediaWithID returns the stored record for id, or media.Media{} and
// false if absent.
func (s *Store) MediaWithID(id media.ID) (media.Media, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out media.Media
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		value := b.Get(encodeID(id))
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &out)
	})
	return out, found, err
}

// MediaWithPath returns the stored record whose Path exactly matches
// path, scanning every record since the store has no secondary path
// index (§4.E; acceptable since lookups by path are rare next to
// id-keyed lookups).
func (s *Store) MediaWithPath(path string) (media.Media, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out media.Media
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		return b.ForEach(func(_, value []byte) error {
			var m media.Media
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			if m.Path == path {
				out = m
				found = true
			}
			return nil
		})
	})
	return out, found, err
}

// MediaExists reports whether any record has exactly this path.
func (s *Store) MediaExists(path string) (bool, error) {
	_, found, err := s.MediaWithPath(path)
	return found, err
}

// IndexedFiles returns the Path of every stored record, used by the
// scanner to skip files it has already indexed (§4.F).
func (s *Store) IndexedFiles() (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]bool{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		return b.ForEach(func(_, value []byte) error {
			var m media.Media
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			out[m.Path] = true
			return nil
		})
	})
	return out, err
}

// All returns every stored media record, used to rebuild in-memory
// index backends at startup (§4.D load()).
func (s *Store) All() ([]media.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []media.Media
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketMedia))
		return b.ForEach(func(_, value []byte) error {
			var m media.Media
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			out = append(out, m)
			return nil
		})
	})
	return out, err
}

// Count returns the number of stored media records.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketKey(bucketMedia)).Stats().KeyN
		return nil
	})
	return n, err
}

// LastAdded returns the time of the most recent Add call, or the zero
// time if nothing has ever been added.
func (s *Store) LastAdded() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketKey(bucketMeta)).Get([]byte(metaKeyLastAdded))
		if value == nil {
			return nil
		}
		t = time.Unix(0, int64(binary.BigEndian.Uint64(value)))
		return nil
	})
	return t, err
}

// negMatchKey orders the pair so (a,b) and (b,a) encode identically,
// matching the reference's symmetric negative-match semantics.
func negMatchKey(a, b media.ID) []byte {
	if a > b {
		a, b = b, a
	}
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(a))
	binary.BigEndian.PutUint32(buf[4:8], uint32(b))
	return buf[:]
}

// AddNegativeMatch records that m1 and m2 are confirmed NOT duplicates,
// so future searches never propose the pair again (§4.E, §4.I).
func (s *Store) AddNegativeMatch(m1, m2 media.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketNegMatch))
		return b.Put(negMatchKey(m1, m2), []byte{1})
	})
}

// IsNegativeMatch reports whether m1/m2 were previously marked as not a
// match.
func (s *Store) IsNegativeMatch(m1, m2 media.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketNegMatch))
		found = b.Get(negMatchKey(m1, m2)) != nil
		return nil
	})
	return found, err
}

// AddWeed tags weed as known junk relative to original, so group/merge
// logic can demote it automatically (§4.E, §4.I).
func (s *Store) AddWeed(weed, original media.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketWeed))
		return b.Put(encodeID(weed), encodeID(original))
	})
}

// IsWeed reports whether id was previously tagged a weed.
func (s *Store) IsWeed(id media.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(bucketWeed))
		found = b.Get(encodeID(id)) != nil
		return nil
	})
	return found, err
}

// RemoveWeed clears a previous weed tag.
func (s *Store) RemoveWeed(id media.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKey(bucketWeed)).Delete(encodeID(id))
	})
}
