// Package credentials spreads work items across upstream API keys in fixed-size
// round-robin blocks so each key stays inside its own quota window.
package credentials

import (
	"errors"
	"fmt"
	"strings"
)

// MinCredentials is the smallest key count the rotator accepts
const MinCredentials = 2

// ErrInsufficientCredentials is returned when fewer than MinCredentials keys are configured
var ErrInsufficientCredentials = errors.New("at least two API keys are required")

// Select maps a 1-based global index to a 0-based credential slot.
// Each slot serves blockSize consecutive items before the next slot takes over.
func Select(globalIndex, numCredentials, blockSize int) int {
	block := (globalIndex - 1) / blockSize
	return block % numCredentials
}

// Rotator picks an API key for a global index. It is stateless: the assignment is
// recomputed from the index alone, so it survives restarts.
type Rotator struct {
	keys      []string
	blockSize int
}

// NewRotator creates a rotator over keys. Keys are used in the given order.
func NewRotator(keys []string, blockSize int) (*Rotator, error) {
	if len(keys) < MinCredentials {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientCredentials, len(keys))
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	for i, k := range keys {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("API key #%d is empty", i+1)
		}
	}

	copied := make([]string, len(keys))
	copy(copied, keys)
	return &Rotator{keys: copied, blockSize: blockSize}, nil
}

// Pick returns the slot and key serving globalIndex
func (r *Rotator) Pick(globalIndex int) (int, string) {
	slot := Select(globalIndex, len(r.keys), r.blockSize)
	return slot, r.keys[slot]
}

// Len returns the number of credential slots
func (r *Rotator) Len() int {
	return len(r.keys)
}

// BlockSize returns how many consecutive items each slot serves
func (r *Rotator) BlockSize() int {
	return r.blockSize
}

// ParseKeyList splits a comma-separated key list, trimming blanks and dropping empty entries.
func ParseKeyList(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
