package kvpool

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ethvault/slashing-protector/protector/slashing"
	"github.com/ethvault/slashing-protector/protector/store"
	"go.uber.org/multierr"
)

// connID is a unique identifier for a connection: one store file per
// network per validator, matching the teacher's kvpool file-naming scheme.
type connID struct {
	network string
	pubKey  slashing.ValidatorId
}

// fileName returns the database filename of the connection.
func (id connID) fileName() string {
	return fmt.Sprintf("slashing-protection-%s-%x.db", id.network, id.pubKey)
}

// Pool implements a store.Store pool with a single connection per
// (network, validator). The map itself is the lookup-or-create registry
// spec §9 calls for; the per-connection semaphore is the per-validator
// lock spec §5 requires for the whole decide-then-append critical section.
type Pool struct {
	dir string
	cfg store.Config

	poolMu sync.Mutex
	conn   map[connID]*Conn
}

// New creates a pool rooted at dir. Store files are created lazily on
// first Acquire for a given validator.
func New(dir string, cfg store.Config) *Pool {
	return &Pool{
		dir:  dir,
		cfg:  cfg,
		conn: make(map[connID]*Conn),
	}
}

// Acquire returns the connection for (network, pubKey), creating and
// opening it if necessary. The caller must call Release() exactly once
// when done, including on error paths.
func (p *Pool) Acquire(ctx context.Context, network string, pubKey slashing.ValidatorId) (*Conn, error) {
	conn := p.getOrCreate(connID{network, pubKey})
	if err := conn.acquire(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// getOrCreate returns a validator's connection, registering one if this is
// the first time it has been seen. The insertion lock (poolMu) is held
// only long enough to read or write the map entry, never across a store
// operation, so a slow decision for one validator never blocks lookups for
// another.
func (p *Pool) getOrCreate(id connID) *Conn {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	if conn, ok := p.conn[id]; ok {
		return conn
	}
	fileName := filepath.Join(p.dir, id.fileName())
	conn := newConn(fileName, p.cfg)
	p.conn[id] = conn
	return conn
}

// Size reports the number of distinct validator connections registered,
// exposed by the HTTP layer's metrics endpoint.
func (p *Pool) Size() int {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return len(p.conn)
}

// Close closes every open connection, aggregating any errors.
func (p *Pool) Close() error {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	var errs error
	for _, c := range p.conn {
		errs = multierr.Append(errs, c.close())
	}
	p.conn = make(map[connID]*Conn)
	return errs
}
