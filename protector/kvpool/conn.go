// Package kvpool is the per-validator lock registry and store-connection
// pool of spec §4.4/§5/§9: a sharded map from validator identity to a
// serialized connection, adapted from the teacher's kvpool.Pool/kvpool.Conn
// (which did the same thing around Prysm's kv.Store). The semaphore now
// guards the whole decide-then-append critical section, not just store
// open/close, so that Acquire/Release implement the
// Idle->Decide->Appending->Idle state machine directly.
package kvpool

import (
	"context"
	"sync"

	"github.com/ethvault/slashing-protector/protector/store"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Conn is a validator's serialized connection, acquired from a Pool.
type Conn struct {
	*store.Store
	fileName  string
	cfg       store.Config
	semaphore *semaphore.Weighted

	mu     sync.Mutex
	opened bool
}

func newConn(fileName string, cfg store.Config) *Conn {
	return &Conn{
		fileName:  fileName,
		cfg:       cfg,
		semaphore: semaphore.NewWeighted(1),
	}
}

// acquire blocks until the connection's single slot is free, then ensures
// the backing store is open. It never holds the pool's insertion lock.
func (c *Conn) acquire(ctx context.Context) (err error) {
	if err := c.semaphore.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "failed to acquire connection semaphore")
	}
	defer func() {
		if err != nil {
			c.semaphore.Release(1)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil
	}
	s, err := store.Open(c.fileName, c.cfg)
	if err != nil {
		return errors.Wrapf(err, "store.Open(%s)", c.fileName)
	}
	c.Store = s
	c.opened = true
	return nil
}

// Release returns the connection to the pool. The store is kept open for
// the next acquirer: bbolt files are expensive to reopen, and they live
// for the lifetime of the process, matching the teacher's one-file-per-
// validator lifecycle.
func (c *Conn) Release() {
	c.semaphore.Release(1)
}

// close closes the underlying store. Only called by Pool.Close.
func (c *Conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return nil
	}
	err := c.Store.Close()
	c.opened = false
	return err
}
