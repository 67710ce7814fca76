package mgo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const acquirePollInterval = 2 * time.Millisecond

// workerReply is what a pool worker hands back on its reader channel: the
// parsed OP_REPLY, or the error that killed the worker.
type workerReply struct {
	reply *replyMessage
	err   error
}

// poolSlot is one (replica × slot) worker: a dedicated socket plus a
// single-producer/single-consumer writer/reader channel pair. Only one
// caller holds a slot at a time, so the channels never need to multiplex
// concurrent requests.
type poolSlot struct {
	sock    *socket
	replica Replica

	writer chan []byte
	reader chan workerReply

	mu         sync.Mutex
	inuse      bool
	authed     bool
	negotiated bool
	dead       bool
}

func newPoolSlot(sock *socket, r Replica) *poolSlot {
	return &poolSlot{
		sock:    sock,
		replica: r,
		writer:  make(chan []byte),
		reader:  make(chan workerReply),
	}
}

// run is the worker's lifetime loop: receive a framed request, forward it
// to the socket, read back exactly one reply, and hand it to the caller
// currently holding this slot. Any socket error kills the worker
// permanently; there is no silent reconnect.
func (s *poolSlot) run(m *metrics) error {
	for msg := range s.writer {
		if len(msg) == 0 {
			return nil
		}
		header := decodeHeader(msg[:16])
		if header.OpCode == opKillCursors {
			// The server never replies to OP_KILL_CURSORS; send it and move
			// on without blocking on a read that will never come.
			err := s.sock.send(msg)
			s.reader <- workerReply{err: err}
			if err != nil {
				s.markDead()
				_ = s.sock.close()
				return err
			}
			continue
		}
		start := time.Now()
		reply, err := s.sock.roundTrip(header.RequestID, msg)
		if m != nil {
			m.observe(s.replica, time.Since(start))
		}
		if err != nil {
			s.reader <- workerReply{err: err}
			s.markDead()
			_ = s.sock.close()
			return err
		}
		s.reader <- workerReply{reply: reply}
	}
	return nil
}

func (s *poolSlot) markDead() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
}

func (s *poolSlot) isDead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}

// pool owns every (replica × slot) worker for a Session. requestLock
// guards slot selection and the inuse/authed flags; request-id allocation
// itself is handled by the package-level atomic counter in proto.go.
type pool struct {
	replicas       []Replica
	maxConnections int
	tlsCfg         *TLSConfig
	credential     *Credential
	dialTimeout    time.Duration

	requestLock sync.Mutex
	slots       []*poolSlot
	lastUsed    int // where the next scan starts: one past the slot handed out last

	waiters *semaphore.Weighted
	group   *errgroup.Group

	metrics *metrics
}

// newPool dials maxConnections sockets to each replica and starts one
// worker goroutine per slot.
func newPool(replicas []Replica, maxConnections int, tlsCfg *TLSConfig, credential *Credential, dialTimeout time.Duration) (*pool, error) {
	if maxConnections <= 0 {
		maxConnections = 4
	}
	p := &pool{
		replicas:       replicas,
		maxConnections: maxConnections,
		tlsCfg:         tlsCfg,
		credential:     credential,
		dialTimeout:    dialTimeout,
		waiters:        semaphore.NewWeighted(int64(maxConnections * len(replicas))),
		metrics:        newMetrics(),
	}
	g := &errgroup.Group{}
	p.group = g

	for _, r := range replicas {
		for i := 0; i < maxConnections; i++ {
			sock, err := dialSocket(r, tlsCfg, dialTimeout)
			if err != nil {
				return nil, err
			}
			slot := newPoolSlot(sock, r)
			p.slots = append(p.slots, slot)
			g.Go(func() error { return slot.run(p.metrics) })
		}
	}
	return p, nil
}

// acquire returns a slot that is not in use, authenticating it first if the
// pool requires credentials and the slot hasn't authenticated yet. It polls
// under a bounded semaphore of waiters rather than spinning unbounded,
// backing off between scans.
func (p *pool) acquire() (*poolSlot, error) {
	ctx := context.Background()
	if err := p.waiters.Acquire(ctx, 1); err != nil {
		return nil, &CommunicationError{Op: "acquire", Err: err}
	}
	defer p.waiters.Release(1)

	for {
		slot, err := p.tryAcquire()
		if err != nil {
			return nil, err
		}
		if slot != nil {
			return slot, nil
		}
		time.Sleep(acquirePollInterval)
	}
}

func (p *pool) tryAcquire() (*poolSlot, error) {
	p.requestLock.Lock()
	n := len(p.slots)
	if n == 0 {
		p.requestLock.Unlock()
		return nil, &CommunicationError{Op: "acquire", Err: errNoSlots}
	}
	var picked *poolSlot
	live := 0
	for i := 0; i < n; i++ {
		idx := (p.lastUsed + i) % n
		sl := p.slots[idx]
		sl.mu.Lock()
		if sl.dead {
			sl.mu.Unlock()
			continue
		}
		live++
		if !sl.inuse {
			sl.inuse = true
			p.lastUsed = (idx + 1) % n
			sl.mu.Unlock()
			picked = sl
			break
		}
		sl.mu.Unlock()
	}
	p.requestLock.Unlock()

	if picked == nil {
		if live == 0 {
			return nil, &CommunicationError{Op: "acquire", Err: errAllSlotsDead}
		}
		return nil, nil
	}

	picked.mu.Lock()
	needsNegotiation := !picked.negotiated
	picked.mu.Unlock()
	if needsNegotiation {
		if err := negotiateSlot(picked, p.credential); err != nil {
			picked.mu.Lock()
			picked.inuse = false
			picked.mu.Unlock()
			return nil, err
		}
		picked.mu.Lock()
		picked.negotiated = true
		picked.authed = p.credential != nil
		picked.mu.Unlock()
	}
	return picked, nil
}

// release returns slot to the pool. Releasing an already-free slot fails
// with *InvalidStateError.
func (p *pool) release(slot *poolSlot) error {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.inuse {
		return &InvalidStateError{Msg: "double release of pool slot"}
	}
	slot.inuse = false
	return nil
}

// sendRecv drives one synchronous request/reply exchange through slot.
func (p *pool) sendRecv(slot *poolSlot, msg []byte) (*replyMessage, error) {
	slot.writer <- msg
	resp := <-slot.reader
	return resp.reply, resp.err
}

// close shuts down every worker by closing its writer channel, which makes
// the worker's range loop exit cleanly.
func (p *pool) close() {
	p.requestLock.Lock()
	for _, sl := range p.slots {
		close(sl.writer)
	}
	p.requestLock.Unlock()
	_ = p.group.Wait()
}

var errNoSlots = &ConfigError{Msg: "pool has no slots"}

var errAllSlotsDead = &InvalidStateError{Msg: "every pool slot is dead"}
