package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kelvinmwangi/farmconnect-backend/pkg/enums"
)

// StatusEntry is one step of an order's lifecycle trail.
type StatusEntry struct {
	Status    enums.OrderStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	ActorID   *uuid.UUID        `json:"actor_id,omitempty"`
	Note      string            `json:"note,omitempty"`
}

// StatusHistory is the append-only jsonb trail on orders. Entries are
// ordered oldest first; the last entry always matches the status column.
type StatusHistory []StatusEntry

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	buf, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("StatusHistory: marshal: %w", err)
	}
	return buf, nil
}

func (h *StatusHistory) Scan(src any) error {
	if src == nil {
		*h = StatusHistory{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("StatusHistory: unsupported Scan type %T", src)
	}

	if len(raw) == 0 {
		*h = StatusHistory{}
		return nil
	}
	return json.Unmarshal(raw, h)
}

// Last returns the most recent entry, or false on an empty trail.
func (h StatusHistory) Last() (StatusEntry, bool) {
	if len(h) == 0 {
		return StatusEntry{}, false
	}
	return h[len(h)-1], true
}

// Append returns a new trail with entry added; the receiver is not mutated.
func (h StatusHistory) Append(entry StatusEntry) StatusHistory {
	out := make(StatusHistory, 0, len(h)+1)
	out = append(out, h...)
	out = append(out, entry)
	return out
}
