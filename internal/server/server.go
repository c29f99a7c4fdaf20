package server

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dreamware/kupe/internal/pool"
	"github.com/dreamware/kupe/internal/shard"
)

// Config carries the orchestrator's tunables. Zero fields take defaults.
type Config struct {
	// Listen is the TCP listen address, "host:port". An empty host binds
	// all interfaces. Default ":6379".
	Listen string

	// NumShards is the keyspace partition count. Fixed for the life of
	// the process; changing it invalidates all stored keys. Default 10.
	NumShards int

	// Workers is the worker count of each stage pool. Default 8.
	Workers int

	// MaxEvents bounds how many readiness events one reactor pass
	// decodes. Default 10.
	MaxEvents int

	// BufferCap bounds a connection's input and output buffers
	// independently; exceeding either drops the connection.
	// Default 16 MiB.
	BufferCap int
}

func (c *Config) withDefaults() {
	if c.Listen == "" {
		c.Listen = ":6379"
	}
	if c.NumShards == 0 {
		c.NumShards = 10
	}
	if c.Workers == 0 {
		c.Workers = 8
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = 10
	}
	if c.BufferCap == 0 {
		c.BufferCap = 16 << 20
	}
}

// Stats is a point-in-time aggregate over all shards plus the live
// connection count.
type Stats struct {
	Shards      []shard.ShardInfo    // Per-shard key and byte counts
	Ops         shard.OperationStats // Summed operation counters
	Keys        int                  // Total keys across shards
	Connections int                  // Live client connections
}

// Orchestrator is the owned root of the server: the sharded engine, the
// three stage pools, the readiness reactor, and the connection indexes.
//
// Construction order is shards → pools → reactor → listener; Stop tears
// down in reverse. See the package documentation for the index-set
// invariant and the lock hierarchy.
type Orchestrator struct {
	cfg    Config
	router *shard.Router

	readPool  *pool.Pool
	execPool  *pool.Pool
	writePool *pool.Pool

	reactor *reactor

	listenFd int

	// allSockets is the authoritative fd → connection map and holds the
	// canonical reference to every live connection.
	allSockets    map[int]*conn
	allSocketsMtx sync.RWMutex

	// The three disjoint index sets recording which stage owns each fd.
	// An fd present in allSockets is in exactly one of them.
	epollSet         map[int]struct{}
	epollSetMtx      sync.Mutex
	writeSet         map[int]struct{}
	writeSetMtx      sync.Mutex
	processingSet    map[int]struct{}
	processingSetMtx sync.Mutex

	destroying atomic.Bool
	wg         sync.WaitGroup // acceptor + reactor goroutines
}

// New builds an orchestrator: shards, stage pools, reactor, and the bound
// listening socket. The server does not accept connections until Start.
func New(cfg Config) (*Orchestrator, error) {
	cfg.withDefaults()

	router, err := shard.NewRouter(cfg.NumShards)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:           cfg,
		router:        router,
		allSockets:    make(map[int]*conn),
		epollSet:      make(map[int]struct{}),
		writeSet:      make(map[int]struct{}),
		processingSet: make(map[int]struct{}),
		listenFd:      -1,
	}

	o.readPool = pool.New("read", cfg.Workers)
	o.execPool = pool.New("execute", cfg.Workers)
	o.writePool = pool.New("write", cfg.Workers)

	o.reactor, err = newReactor(cfg.MaxEvents)
	if err != nil {
		o.destroyPools()
		return nil, err
	}

	if err := o.createListener(); err != nil {
		o.reactor.Close()
		o.destroyPools()
		return nil, err
	}
	return o, nil
}

// createListener binds and listens on the configured address. Startup
// failures here are fatal for the server.
func (o *Orchestrator) createListener() error {
	host, portStr, err := net.SplitHostPort(o.cfg.Listen)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %v", o.cfg.Listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid listen port %q", portStr)
	}

	addr := unix.SockaddrInet4{Port: port}
	if host != "" {
		ip := net.ParseIP(host)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid IPv4 listen host %q", host)
		}
		copy(addr.Addr[:], ip.To4())
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind %s: %w", o.cfg.Listen, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen %s: %w", o.cfg.Listen, err)
	}

	o.listenFd = fd
	return nil
}

// Port returns the actual listening port, which differs from the configured
// one when the address requested port 0.
func (o *Orchestrator) Port() int {
	sa, err := unix.Getsockname(o.listenFd)
	if err != nil {
		return 0
	}
	if inet4, ok := sa.(*unix.SockaddrInet4); ok {
		return inet4.Port
	}
	return 0
}

// Start spawns the acceptor and reactor goroutines. It returns immediately;
// the server runs until Stop.
func (o *Orchestrator) Start() {
	o.wg.Add(2)
	go o.acceptLoop()
	go o.reactorLoop()
	log.Printf("server[%s] listening (shards=%d workers=%d/stage)",
		o.cfg.Listen, o.cfg.NumShards, o.cfg.Workers)
}

// acceptLoop blocks in accept on the listening socket, constructing and
// registering a connection for each new client. It exits when the listener
// is shut down during Stop.
func (o *Orchestrator) acceptLoop() {
	defer o.wg.Done()

	for {
		nfd, _, err := unix.Accept4(o.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if o.destroying.Load() {
				return
			}
			switch err {
			case unix.EINTR, unix.ECONNABORTED:
				continue
			case unix.EMFILE, unix.ENFILE:
				// Out of descriptors; retry after a pause rather
				// than spinning.
				log.Printf("server: accept: %v, retrying", err)
				time.Sleep(10 * time.Millisecond)
				continue
			default:
				log.Printf("server: accept: %v", err)
				return
			}
		}

		c := newConn(nfd, o.cfg.BufferCap)

		o.allSocketsMtx.Lock()
		o.allSockets[nfd] = c
		o.allSocketsMtx.Unlock()

		o.epollSetMtx.Lock()
		o.epollSet[nfd] = struct{}{}
		o.epollSetMtx.Unlock()

		if err := o.reactor.Add(nfd); err != nil {
			o.removeSocket(nfd, fmt.Sprintf("registration failed: %v", err))
		}
	}
}

// reactorLoop waits for readiness transitions and dispatches each to the
// matching stage pool. It exits when woken during shutdown.
func (o *Orchestrator) reactorLoop() {
	defer o.wg.Done()

	for {
		events, woken, err := o.reactor.Wait()
		if err != nil {
			if o.destroying.Load() {
				return
			}
			log.Printf("server: reactor: %v", err)
			continue
		}
		if woken && o.destroying.Load() {
			return
		}

		for _, ev := range events {
			o.allSocketsMtx.RLock()
			c, ok := o.allSockets[ev.fd]
			o.allSocketsMtx.RUnlock()
			if !ok {
				// Connection already torn down.
				continue
			}

			switch {
			case ev.hup && !ev.readable:
				o.removeSocket(ev.fd, "connection hangup")
			case ev.readable:
				// A readable HUP still carries buffered bytes; the
				// read stage consumes them and observes EOF itself.
				if o.moveEpollToProcessing(ev.fd) {
					o.readPool.Submit(&readJob{o: o, c: c})
				}
			case ev.writable:
				// Writability is only ever requested by the write
				// stage, which leaves the fd in the write set while
				// it waits. Membership check guards against a
				// teardown race; no move is needed.
				if o.inWriteSet(ev.fd) {
					o.writePool.Submit(&writeJob{o: o, c: c})
				}
			}
		}
	}
}

// rearm re-registers fd with the reactor for its next readiness
// transition. The fd must already be back in the epoll set (readable) or
// still in the write set (writable).
func (o *Orchestrator) rearm(fd int, writable bool) error {
	return o.reactor.Rearm(fd, writable)
}

// removeSocket tears a connection down: it leaves every index, the fd is
// closed, and any in-flight job observes the closing phase on its next
// mutex acquisition and returns. Removing an fd already absent is a no-op,
// so concurrent teardown attempts are safe.
func (o *Orchestrator) removeSocket(fd int, reason string) {
	o.allSocketsMtx.Lock()
	c, ok := o.allSockets[fd]
	if !ok {
		o.allSocketsMtx.Unlock()
		return
	}
	delete(o.allSockets, fd)
	o.allSocketsMtx.Unlock()

	o.epollSetMtx.Lock()
	delete(o.epollSet, fd)
	o.epollSetMtx.Unlock()
	o.writeSetMtx.Lock()
	delete(o.writeSet, fd)
	o.writeSetMtx.Unlock()
	o.processingSetMtx.Lock()
	delete(o.processingSet, fd)
	o.processingSetMtx.Unlock()

	o.reactor.Remove(fd)

	c.mu.Lock()
	c.phase = connClosing
	c.mu.Unlock()

	unix.Close(fd)
	log.Printf("conn[%d] closed: %s", fd, reason)
}

// Index-set moves. Each move acquires the two set locks in hierarchy order
// (epoll before write before processing) and holds both so an fd is never
// observable outside all three sets. A move reports false when the fd has
// left the source set, which means a teardown won the race and the caller
// must not dispatch.

func (o *Orchestrator) moveEpollToProcessing(fd int) bool {
	o.epollSetMtx.Lock()
	o.processingSetMtx.Lock()
	_, ok := o.epollSet[fd]
	if ok {
		delete(o.epollSet, fd)
		o.processingSet[fd] = struct{}{}
	}
	o.processingSetMtx.Unlock()
	o.epollSetMtx.Unlock()
	return ok
}

func (o *Orchestrator) inWriteSet(fd int) bool {
	o.writeSetMtx.Lock()
	_, ok := o.writeSet[fd]
	o.writeSetMtx.Unlock()
	return ok
}

func (o *Orchestrator) moveProcessingToEpoll(fd int) bool {
	o.epollSetMtx.Lock()
	o.processingSetMtx.Lock()
	_, ok := o.processingSet[fd]
	if ok {
		delete(o.processingSet, fd)
		o.epollSet[fd] = struct{}{}
	}
	o.processingSetMtx.Unlock()
	o.epollSetMtx.Unlock()
	return ok
}

func (o *Orchestrator) moveProcessingToWrite(fd int) bool {
	o.writeSetMtx.Lock()
	o.processingSetMtx.Lock()
	_, ok := o.processingSet[fd]
	if ok {
		delete(o.processingSet, fd)
		o.writeSet[fd] = struct{}{}
	}
	o.processingSetMtx.Unlock()
	o.writeSetMtx.Unlock()
	return ok
}

func (o *Orchestrator) moveWriteToProcessing(fd int) bool {
	o.writeSetMtx.Lock()
	o.processingSetMtx.Lock()
	_, ok := o.writeSet[fd]
	if ok {
		delete(o.writeSet, fd)
		o.processingSet[fd] = struct{}{}
	}
	o.processingSetMtx.Unlock()
	o.writeSetMtx.Unlock()
	return ok
}

func (o *Orchestrator) moveWriteToEpoll(fd int) bool {
	o.epollSetMtx.Lock()
	o.writeSetMtx.Lock()
	_, ok := o.writeSet[fd]
	if ok {
		delete(o.writeSet, fd)
		o.epollSet[fd] = struct{}{}
	}
	o.writeSetMtx.Unlock()
	o.epollSetMtx.Unlock()
	return ok
}

// Stats aggregates per-shard statistics and the live connection count.
func (o *Orchestrator) Stats() Stats {
	o.allSocketsMtx.RLock()
	connections := len(o.allSockets)
	o.allSocketsMtx.RUnlock()

	stats := Stats{Connections: connections}
	for _, s := range o.router.Shards() {
		shardStats := s.GetStats()
		stats.Ops.Gets += shardStats.Ops.Gets
		stats.Ops.Sets += shardStats.Ops.Sets
		stats.Ops.Dels += shardStats.Ops.Dels
		stats.Keys += shardStats.Storage.Keys
		stats.Shards = append(stats.Shards, s.Info())
	}
	return stats
}

// Stop shuts the server down: the listener is shut down and closed
// (unblocking the acceptor), the reactor is woken, both loops are joined, the pools drain
// (pending jobs discarded, running jobs complete), and every surviving
// connection is closed. Destruction order is the reverse of construction.
func (o *Orchestrator) Stop() {
	if o.destroying.Swap(true) {
		return
	}

	// close alone does not wake a thread blocked in accept on Linux;
	// shutdown makes the pending accept return so the acceptor can exit.
	_ = unix.Shutdown(o.listenFd, unix.SHUT_RDWR)
	unix.Close(o.listenFd)
	o.reactor.Wakeup()
	o.wg.Wait()

	o.destroyPools()

	o.allSocketsMtx.RLock()
	fds := make([]int, 0, len(o.allSockets))
	for fd := range o.allSockets {
		fds = append(fds, fd)
	}
	o.allSocketsMtx.RUnlock()
	for _, fd := range fds {
		o.removeSocket(fd, "server shutting down")
	}

	o.reactor.Close()

	stats := o.Stats()
	log.Printf("server stopped (keys=%d gets=%d sets=%d dels=%d)",
		stats.Keys, stats.Ops.Gets, stats.Ops.Sets, stats.Ops.Dels)
}

func (o *Orchestrator) destroyPools() {
	o.readPool.Destroy()
	o.execPool.Destroy()
	o.writePool.Destroy()
}
