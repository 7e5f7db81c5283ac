package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"primenumbers/core/types"
	"primenumbers/storage"
)

var (
	errTxActive   = errors.New("state: transaction already open")
	errNoTx       = errors.New("state: no open transaction")
	errEmptyKVKey = errors.New("kv: key must not be empty")
)

// Manager stores RLP encoded records under keccak256 hashed keys. Mutations
// made between Begin and Commit are buffered in an overlay so a failing
// transaction leaves the backing database untouched.
//
// Manager is not safe for concurrent use; core.Protocol serialises access.
type Manager struct {
	db storage.Database

	inTx    bool
	puts    map[string][]byte
	deletes map[string]struct{}
	pending []*types.Event
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Begin opens a write overlay.
func (m *Manager) Begin() error {
	if m.inTx {
		return errTxActive
	}
	m.inTx = true
	m.puts = make(map[string][]byte)
	m.deletes = make(map[string]struct{})
	m.pending = nil
	return nil
}

// Commit flushes the overlay to the database and returns the events emitted
// during the transaction.
func (m *Manager) Commit() ([]*types.Event, error) {
	if !m.inTx {
		return nil, errNoTx
	}
	deletes := make([]string, 0, len(m.deletes))
	for key := range m.deletes {
		deletes = append(deletes, key)
	}
	sort.Strings(deletes)
	if err := m.db.WriteBatch(m.puts, deletes); err != nil {
		return nil, fmt.Errorf("state: commit: %w", err)
	}
	events := m.pending
	m.reset()
	return events, nil
}

// Rollback discards the overlay and any buffered events.
func (m *Manager) Rollback() {
	m.reset()
}

// InTx reports whether an overlay is open.
func (m *Manager) InTx() bool {
	return m.inTx
}

func (m *Manager) reset() {
	m.inTx = false
	m.puts = nil
	m.deletes = nil
	m.pending = nil
}

func (m *Manager) read(hashed []byte) ([]byte, error) {
	if m.inTx {
		if _, gone := m.deletes[string(hashed)]; gone {
			return nil, nil
		}
		if value, ok := m.puts[string(hashed)]; ok {
			return value, nil
		}
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) write(hashed, value []byte) error {
	if !m.inTx {
		return m.db.Put(hashed, value)
	}
	delete(m.deletes, string(hashed))
	m.puts[string(hashed)] = value
	return nil
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return errEmptyKVKey
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.write(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, errEmptyKVKey
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the record stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return errEmptyKVKey
	}
	hashed := kvKey(key)
	if !m.inTx {
		return m.db.Delete(hashed)
	}
	delete(m.puts, string(hashed))
	m.deletes[string(hashed)] = struct{}{}
	return nil
}

// AppendEvent buffers an event for the open transaction. Outside a
// transaction events are dropped.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil || !m.inTx {
		return
	}
	m.pending = append(m.pending, evt)
}
