// Package pulse generates the time-pulse chain: one multi-domain timestamp
// record per call, chained and appended through the ledger store.
package pulse

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/chime/core/ledger"
	schemapulse "github.com/davidahmann/chime/core/schema/v1/pulse"
)

const DefaultSourceNode = "chime-local"

// Generator produces pulse records from a monotonic time source. The
// nanosecond counter is read from the runtime's monotonic clock, never the
// wall clock, so it cannot go backward across clock steps or leap-second
// smearing; wall-derived fields are captured alongside for display only.
type Generator struct {
	mu         sync.Mutex
	store      *ledger.Store
	index      *ledger.Index
	sourceNode string
	bootID     string
	epoch      time.Time
	lastMono   int64
	now        func() time.Time
}

// NewGenerator wires a generator to its chain store. The boot id makes pulse
// content unique across process restarts even if the monotonic counter
// restarts from zero.
func NewGenerator(store *ledger.Store, sourceNode string) (*Generator, error) {
	if store == nil {
		return nil, fmt.Errorf("pulse generator requires a store")
	}
	if sourceNode == "" {
		sourceNode = DefaultSourceNode
	}
	index := ledger.NewIndex(extractPulseKeys)
	if err := index.Rebuild(store); err != nil {
		return nil, fmt.Errorf("rebuild pulse index: %w", err)
	}
	generator := &Generator{
		store:      store,
		index:      index,
		sourceNode: sourceNode,
		bootID:     uuid.NewString(),
		epoch:      time.Now(),
		now:        time.Now,
	}
	store.OnAppend(func(rec ledger.Record, seq uint64, offset int64, line []byte) {
		_ = index.Apply(seq, offset, line)
	})
	return generator, nil
}

// Store exposes the underlying chain store for verification and audit reads.
func (g *Generator) Store() *ledger.Store {
	return g.store
}

// Index exposes the pulse lookup index.
func (g *Generator) Index() *ledger.Index {
	return g.index
}

// Pulse takes one monotonic reading, derives every display time domain from
// the wall clock captured at the same instant, and appends the record. Two
// back-to-back pulses always carry strictly increasing monotonic counters and
// distinct pulse ids: the counter is bumped past the last value if the clock
// resolution ever produces a repeat, and the sequence number inside the
// hashed content breaks any remaining tie.
func (g *Generator) Pulse() (schemapulse.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reading := g.now()
	monotonicNS := reading.Sub(g.epoch).Nanoseconds()
	if monotonicNS <= g.lastMono {
		monotonicNS = g.lastMono + 1
	}

	domains := DeriveDomains(reading)
	record := schemapulse.Record{
		SchemaID:      schemapulse.SchemaID,
		SchemaVersion: schemapulse.SchemaVersion,
		SourceNode:    g.sourceNode,
		BootID:        g.bootID,
		MonotonicNS:   monotonicNS,
		UTCISO:        domains.UTCISO,
		UTCUnix:       domains.UTCUnix,
		TAINS:         domains.TAINS,
		ETSeconds:     domains.ETSeconds,
		EpochDays:     domains.EpochDays,
		JulianDate:    domains.JulianDate,
	}
	if _, err := g.store.Append(&record); err != nil {
		return schemapulse.Record{}, fmt.Errorf("append pulse: %w", err)
	}
	g.lastMono = monotonicNS
	return record, nil
}

// Get returns a pulse by id without scanning the log.
func (g *Generator) Get(pulseID string) (schemapulse.Record, bool, error) {
	entry, ok := g.index.ByID(pulseID)
	if !ok {
		return schemapulse.Record{}, false, nil
	}
	line, err := g.store.ReadAt(entry.Offset)
	if err != nil {
		return schemapulse.Record{}, false, fmt.Errorf("read pulse %s: %w", pulseID, err)
	}
	var record schemapulse.Record
	if err := json.Unmarshal(line, &record); err != nil {
		return schemapulse.Record{}, false, fmt.Errorf("decode pulse %s: %w", pulseID, err)
	}
	return record, true, nil
}

// History returns the most recent pulses in append order, at most limit
// (0 means all).
func (g *Generator) History(limit int) ([]schemapulse.Record, error) {
	from := uint64(0)
	if limit > 0 {
		count := g.store.Count()
		if uint64(limit) < count {
			from = count - uint64(limit) + 1
		}
	}
	var records []schemapulse.Record
	err := g.store.Scan(from, func(seq uint64, line []byte) error {
		var record schemapulse.Record
		if unmarshalErr := json.Unmarshal(line, &record); unmarshalErr != nil {
			// Corrupt mid-chain lines belong to Verify, not History.
			return nil
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func extractPulseKeys(seq uint64, line []byte) (string, map[string][]string, error) {
	var record struct {
		PulseID string `json:"pulse_id"`
	}
	if err := json.Unmarshal(line, &record); err != nil {
		return "", nil, err
	}
	return record.PulseID, nil, nil
}
