package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"glimpse/pkg/logger"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string

	// mu serializes read-modify-write sections (participant cursors,
	// thread counters, reactions). Pebble gives per-key atomicity only;
	// cross-field invariants inside one document need this.
	mu sync.Mutex
)

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp; the timeline key embeds it as a tie-break.
var seq uint64

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// NextSeq returns the next timeline sequence number.
func NextSeq() uint64 { return atomic.AddUint64(&seq, 1) }

// MsgKey builds the timeline key for a message in a conversation. Keys
// order by creation timestamp with the sequence as tie-break, so cursor
// pagination cannot duplicate or skip entries at equal timestamps.
func MsgKey(convID string, ts int64, s uint64) string {
	return fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, ts, s)
}

func convMetaKey(convID string) []byte { return []byte("conv:" + convID + ":meta") }

func msgPrefix(convID string) []byte { return []byte("conv:" + convID + ":msg:") }

func msgIndexKey(msgID string) []byte { return []byte("msgid:" + msgID) }

func threadKey(parentID string, ts int64, s uint64) string {
	return fmt.Sprintf("threadmsg:%s:%020d-%06d", parentID, ts, s)
}

func userConvKey(userID, convID string) []byte {
	return []byte("userconv:" + userID + ":" + convID)
}

func notifKey(userID string, ts int64, s uint64) string {
	return fmt.Sprintf("notif:%s:%020d-%06d", userID, ts, s)
}

func userKey(id string) []byte { return []byte("user:" + id) }

func getRaw(key []byte) ([]byte, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

func setRaw(key, value []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Set(key, value, pebble.Sync)
}

func deleteRaw(key []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(key, pebble.Sync)
}

// iterPrefix walks all keys with the given prefix in ascending order and
// calls fn with a copy of each key and value. Returning false stops the
// walk.
func iterPrefix(prefix []byte, fn func(k, v []byte) bool) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !hasPrefix(iter.Key(), prefix) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		v := append([]byte(nil), iter.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return iter.Error()
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
