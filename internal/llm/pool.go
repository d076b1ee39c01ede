package llm

import (
	"context"
	"errors"
	"fmt"
)

// ClientPool holds one Client per credential slot, created once at startup.
type ClientPool struct {
	clients []Client
}

// NewClientPool creates a client for every key, in slot order. If any client fails to
// start, the ones already created are closed.
func NewClientPool(ctx context.Context, config *Config, keys []string, factory Factory) (*ClientPool, error) {
	if factory == nil {
		factory = NewClient
	}

	pool := &ClientPool{clients: make([]Client, 0, len(keys))}
	for i, key := range keys {
		client, err := factory(ctx, config, key)
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("failed to create client for key#%d: %w", i+1, err)
		}
		pool.clients = append(pool.clients, client)
	}
	return pool, nil
}

// NewClientPoolFrom wraps existing clients, e.g. test doubles
func NewClientPoolFrom(clients ...Client) *ClientPool {
	return &ClientPool{clients: clients}
}

// Client returns the client for a 0-based slot
func (p *ClientPool) Client(slot int) (Client, error) {
	if slot < 0 || slot >= len(p.clients) {
		return nil, fmt.Errorf("credential slot %d out of range (have %d)", slot, len(p.clients))
	}
	return p.clients[slot], nil
}

// Len returns the number of slots
func (p *ClientPool) Len() int {
	return len(p.clients)
}

// Close closes every client and joins their errors
func (p *ClientPool) Close() error {
	var errs []error
	for _, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
