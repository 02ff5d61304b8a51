// Package checkpoint persists scheduler progress to a bbolt-backed file so
// an interrupted run can resume without repeating completed task-host
// pairs.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("checkpoint")
var stateKey = []byte("state")

// TaskHostKey identifies one completed (task, host) invocation.
type TaskHostKey struct {
	Task string `json:"task"`
	Host string `json:"host"`
}

// State is the full, deterministically serializable checkpoint record.
type State struct {
	Version            int                          `json:"version"`
	PlaybookPath       string                       `json:"playbook_path"`
	InventoryPath      string                       `json:"inventory_path"`
	PlaybookHash       string                       `json:"playbook_hash"`
	Timestamp          time.Time                    `json:"timestamp"`
	Completed          []TaskHostKey                `json:"completed"`
	Variables          map[string]map[string]any    `json:"variables"`           // host -> var name -> value
	RegisteredResults  map[string]map[string]any    `json:"registered_results"`  // host -> register name -> result
	HandlerNotifies    map[string][]string          `json:"handler_notifies"`    // host -> pending handler names
	LastTask           string                       `json:"last_task"`
	LastHost           string                       `json:"last_host"`
}

// CurrentVersion is the checkpoint schema version written by this package.
const CurrentVersion = 1

// NewState builds an empty checkpoint state for a fresh run.
func NewState(playbookPath, inventoryPath string, playbookContent []byte) *State {
	return &State{
		Version:           CurrentVersion,
		PlaybookPath:      playbookPath,
		InventoryPath:     inventoryPath,
		PlaybookHash:      HashPlaybook(playbookContent),
		Timestamp:         time.Time{},
		Variables:         map[string]map[string]any{},
		RegisteredResults: map[string]map[string]any{},
		HandlerNotifies:   map[string][]string{},
	}
}

// HashPlaybook returns the hex SHA-256 of a playbook's raw content, used
// to detect a checkpoint resumed against a playbook that has since changed.
func HashPlaybook(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// MarkCompleted records a (task, host) pair as done. Idempotent.
func (s *State) MarkCompleted(task, host string) {
	for _, k := range s.Completed {
		if k.Task == task && k.Host == host {
			return
		}
	}
	s.Completed = append(s.Completed, TaskHostKey{Task: task, Host: host})
	s.LastTask = task
	s.LastHost = host
}

// IsCompleted reports whether (task, host) was already recorded done.
func (s *State) IsCompleted(task, host string) bool {
	for _, k := range s.Completed {
		if k.Task == task && k.Host == host {
			return true
		}
	}
	return false
}

// SetVariable records a per-host variable value.
func (s *State) SetVariable(host, name string, v any) {
	if s.Variables[host] == nil {
		s.Variables[host] = map[string]any{}
	}
	s.Variables[host][name] = v
}

// SetRegisteredResult records a per-host `register` result.
func (s *State) SetRegisteredResult(host, name string, v any) {
	if s.RegisteredResults[host] == nil {
		s.RegisteredResults[host] = map[string]any{}
	}
	s.RegisteredResults[host][name] = v
}

// Marshal serializes the state deterministically: completed pairs are
// sorted before encoding so byte-identical states always round-trip to
// byte-identical JSON, which is what makes checkpoint diffing meaningful.
func (s *State) Marshal() ([]byte, error) {
	sorted := *s
	sorted.Completed = append([]TaskHostKey(nil), s.Completed...)
	sort.Slice(sorted.Completed, func(i, j int) bool {
		if sorted.Completed[i].Task != sorted.Completed[j].Task {
			return sorted.Completed[i].Task < sorted.Completed[j].Task
		}
		return sorted.Completed[i].Host < sorted.Completed[j].Host
	})
	return json.MarshalIndent(&sorted, "", "  ")
}

// Unmarshal decodes a checkpoint record previously produced by Marshal.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint: %w", err)
	}
	return &s, nil
}

// Store is a bbolt-backed checkpoint file. Writes are transactional; a
// single bucket holds the current serialized State under a fixed key.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the checkpoint file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists state, stamping the current time, in a single
// transaction.
func (s *Store) Save(state *State) error {
	state.Timestamp = time.Now().UTC()
	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(stateKey, data)
	})
}

// Load reads the persisted state, or nil if the store has never been
// saved to.
func (s *Store) Load() (*State, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(stateKey)
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return Unmarshal(data)
}

// Resume loads the store's state and verifies it matches the playbook
// currently being run, per spec: a hash mismatch refuses to resume.
func (s *Store) Resume(playbookContent []byte) (*State, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	want := HashPlaybook(playbookContent)
	if state.PlaybookHash != want {
		return nil, fmt.Errorf("checkpoint playbook hash mismatch: checkpoint was recorded against a different playbook (got %s, want %s)", state.PlaybookHash, want)
	}
	return state, nil
}
