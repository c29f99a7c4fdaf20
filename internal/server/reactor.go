package server

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// event is one readiness transition reported by the reactor.
type event struct {
	fd       int
	readable bool // fd has bytes to read (or a half-close to observe)
	writable bool // fd can accept writes again
	hup      bool // error or hangup; the connection should be torn down
}

// reactor wraps an edge-triggered, one-shot epoll instance plus a self-pipe
// for out-of-band wakeup of the thread blocked in Wait.
//
// Registration discipline: every client fd is registered one-shot, so a
// readiness transition is delivered to exactly one Wait call and the fd goes
// silent until a stage rearms it. That is what guarantees at most one worker
// ever owns a connection: ownership transfers reactor → stage → reactor,
// never fanning out.
type reactor struct {
	epfd      int // epoll instance
	wakeRead  int // self-pipe read end, registered level-triggered
	wakeWrite int // self-pipe write end
	maxEvents int
}

// newReactor creates the epoll instance and the self-pipe.
func newReactor(maxEvents int) (*reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	pipe := make([]int, 2)
	if err := unix.Pipe2(pipe, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("pipe2: %w", err)
	}

	r := &reactor{
		epfd:      epfd,
		wakeRead:  pipe[0],
		wakeWrite: pipe[1],
		maxEvents: maxEvents,
	}

	// The wakeup fd stays registered for the life of the reactor. It is
	// level-triggered and never one-shot: a wakeup must never be lost.
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.wakeRead)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r.wakeRead, &ev); err != nil {
		r.Close()
		return nil, fmt.Errorf("epoll_ctl wakeup fd: %w", err)
	}
	return r, nil
}

// clientEvents builds the one-shot edge-triggered mask for a client fd.
func clientEvents(writable bool) uint32 {
	events := uint32(unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	if writable {
		events |= unix.EPOLLOUT
	} else {
		events |= unix.EPOLLIN
	}
	return events
}

// Add registers a new client fd, initially interested in readability.
func (r *reactor) Add(fd int) error {
	ev := unix.EpollEvent{Events: clientEvents(false), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Rearm re-registers a one-shot fd for its next readiness transition. The
// caller chooses the direction: readability while waiting for request
// bytes, writability while a reply drain is blocked on the socket buffer.
// The fd must already have been moved back into the matching index set.
func (r *reactor) Rearm(fd int, writable bool) error {
	ev := unix.EpollEvent{Events: clientEvents(writable), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters a client fd. A fd the kernel no longer knows (already
// closed, never added) is not an error: teardown is idempotent.
func (r *reactor) Remove(fd int) {
	// ENOENT/EBADF mean the fd is already gone; teardown is idempotent.
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks until at least one readiness transition arrives, then decodes
// up to maxEvents of them. woken reports that the self-pipe fired; the
// caller should recheck its shutdown flag.
func (r *reactor) Wait() (events []event, woken bool, err error) {
	buf := make([]unix.EpollEvent, r.maxEvents)

	var n int
	for {
		n, err = unix.EpollWait(r.epfd, buf, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("epoll_wait: %w", err)
		}
		break
	}

	for i := 0; i < n; i++ {
		if int(buf[i].Fd) == r.wakeRead {
			r.drainWakeup()
			woken = true
			continue
		}
		ev := event{fd: int(buf[i].Fd)}
		bits := buf[i].Events
		ev.readable = bits&unix.EPOLLIN != 0
		ev.writable = bits&unix.EPOLLOUT != 0
		ev.hup = bits&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0
		events = append(events, ev)
	}
	return events, woken, nil
}

// Wakeup makes the current (or next) Wait return with woken set. Writing
// one byte suffices; if the pipe is already full a wakeup is already
// pending and EAGAIN is fine.
func (r *reactor) Wakeup() {
	_, _ = unix.Write(r.wakeWrite, []byte{0})
}

// drainWakeup empties the self-pipe so the level-triggered wakeup fd goes
// quiet until the next Wakeup.
func (r *reactor) drainWakeup() {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(r.wakeRead, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close releases the epoll instance and the self-pipe.
func (r *reactor) Close() {
	unix.Close(r.epfd)
	unix.Close(r.wakeRead)
	unix.Close(r.wakeWrite)
}
