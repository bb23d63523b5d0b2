// Package storage holds the enclave's two persistence concerns: the
// staged-mutation log (this file) and the durable inventory/address
// volume (volume.go).
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// StagedMutation is one pending request's effect on the warehouse/book
// aggregate, staged before the request's RPC leg (deposit gulp,
// settlement submission) completes. The stage-then-persist rule: apply
// to in-memory state first, persist only once the gating RPC
// acknowledges; a timeout discards the stage instead of committing it.
type StagedMutation struct {
	RequestID string
	Kind string
	Payload json.RawMessage
}

// StagingLog is a small WAL over pebble: one key per pending mutation,
// `stage:<reqid>`, deleted on commit or discard. Adapted from the
// teacher's FileWAL/NopWAL (an append-only line writer keyed by nothing
// in particular) into a keyed, deletable log - the staging rule needs to
// discard a specific entry, not just append.
type StagingLog struct {
	db *pebble.DB
}

// NewStagingLog opens (or creates) a pebble database at path.
func NewStagingLog(path string) (*StagingLog, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open staging log: %w", err)
	}
	return &StagingLog{db: db}, nil
}

func (l *StagingLog) Close() error { return l.db.Close() }

func stageKey(requestID string) []byte {
	return append([]byte("stage:"), requestID...)
}

// Stage records a pending mutation under requestID, overwriting any
// prior entry for the same id.
func (l *StagingLog) Stage(requestID, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode staged mutation: %w", err)
	}
	entry := StagedMutation{RequestID: requestID, Kind: kind, Payload: raw}
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode staging entry: %w", err)
	}
	return l.db.Set(stageKey(requestID), val, pebble.Sync)
}

// Commit deletes requestID's staged entry once its gating RPC has
// acknowledged - the mutation is already reflected in memory and now
// needs no replay.
func (l *StagingLog) Commit(requestID string) error {
	return l.db.Delete(stageKey(requestID), pebble.Sync)
}

// Discard deletes requestID's staged entry without ever having
// persisted it, used when the gating RPC times out.
func (l *StagingLog) Discard(requestID string) error {
	return l.db.Delete(stageKey(requestID), pebble.Sync)
}

// Pending returns every mutation still staged, e.g. to decide on
// recovery whether an in-flight request's effect should be replayed or
// rolled back.
func (l *StagingLog) Pending() ([]StagedMutation, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("stage:"),
		UpperBound: []byte("stage;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []StagedMutation
	for iter.First(); iter.Valid(); iter.Next() {
		var entry StagedMutation
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("decode staged mutation: %w", err)
		}
		out = append(out, entry)
	}
	return out, iter.Error()
}
