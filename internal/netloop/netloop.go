// Package netloop implements the epoll-based event loop that accepts
// connections, reads and writes them non-blockingly, and dispatches parsed
// commands to a Handler. It is a direct, Linux-only translation of
// pogocache's own thread-per-queue epoll loop (original_source/src/net.c):
// each Loop owns one epoll instance and runs its own accept/read/process/
// write/close tick on its own goroutine, and a listener round-robins new
// connections across a fixed pool of Loops the same way net.c's qaccept
// hands an accepted fd to "ctxs[idx]" in round-robin order.
package netloop

import (
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/polypointlabs/pogocache-go/internal/protocol"
)

const packetSize = 16384

var protocolErrNeedMore = protocol.ErrNeedMore

// Handler processes one parsed command and writes a reply through w. It
// runs on the owning Loop's goroutine unless WorkerPool.Submit was used to
// hand the work to the background pool.
type Handler func(c *Conn, args [][]byte)

// Options configures a Pool of Loops.
type Options struct {
	Addr       string
	NThreads   int
	MaxConns   int
	TCPNoDelay bool
	Keepalive  bool
	Logger     *zap.Logger
	Handler    Handler
	Background *WorkerPool
}

// Pool owns the listening socket and a fixed set of Loops that share
// accepted connections round-robin, mirroring net.c's qthreadctx array.
type Pool struct {
	opts     Options
	listener *net.TCPListener
	loops    []*Loop
	next     uint64
	nconns   int64
}

// NewPool creates the listening socket and nthreads idle Loops, but does not
// start accepting until Run is called.
func NewPool(opts Options) (*Pool, error) {
	if opts.NThreads <= 0 {
		opts.NThreads = 1
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	addr, err := net.ResolveTCPAddr("tcp", opts.Addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}
	p := &Pool{opts: opts, listener: ln}
	p.loops = make([]*Loop, opts.NThreads)
	for i := range p.loops {
		lp, err := newLoop(p, i)
		if err != nil {
			ln.Close()
			return nil, err
		}
		p.loops[i] = lp
	}
	return p, nil
}

// Addr returns the bound listen address.
func (p *Pool) Addr() net.Addr { return p.listener.Addr() }

// Run starts every Loop's tick goroutine and the listener's accept
// goroutine, blocking until ctx-equivalent Close is called.
func (p *Pool) Run() error {
	for _, lp := range p.loops {
		go lp.run()
	}
	for {
		tc, err := p.listener.AcceptTCP()
		if err != nil {
			return err
		}
		if atomic.LoadInt64(&p.nconns) >= int64(p.opts.MaxConns) {
			p.opts.Logger.Warn("connection refused, max conns reached",
				zap.Int("max_conns", p.opts.MaxConns))
			tc.Close()
			continue
		}
		if p.opts.TCPNoDelay {
			tc.SetNoDelay(true)
		}
		if p.opts.Keepalive {
			tc.SetKeepAlive(true)
		}
		idx := atomic.AddUint64(&p.next, 1) % uint64(len(p.loops))
		if err := p.loops[idx].adopt(tc); err != nil {
			p.opts.Logger.Warn("failed to adopt connection", zap.Error(err))
			tc.Close()
			continue
		}
		atomic.AddInt64(&p.nconns, 1)
	}
}

// Close shuts every Loop's epoll instance and the listener down.
func (p *Pool) Close() error {
	err := p.listener.Close()
	for _, lp := range p.loops {
		lp.close()
	}
	return err
}

// Loop owns one epoll instance and a fixed-size event buffer, processed on
// its own goroutine — the Go analogue of one of net.c's qthreadctx worker
// threads.
type Loop struct {
	pool   *Pool
	idx    int
	epfd   int
	conns   map[int]*Conn
	events  []unix.EpollEvent
	readBuf []byte
	adoptc  chan *net.TCPConn
	resumeC chan resumeJob
	closed  chan struct{}
}

func newLoop(pool *Pool, idx int) (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Loop{
		pool:    pool,
		idx:     idx,
		epfd:    epfd,
		conns:   make(map[int]*Conn),
		events:  make([]unix.EpollEvent, 256),
		readBuf: make([]byte, packetSize),
		adoptc:  make(chan *net.TCPConn, 128),
		resumeC: make(chan resumeJob, 128),
		closed:  make(chan struct{}),
	}, nil
}

func (l *Loop) adopt(tc *net.TCPConn) error {
	select {
	case l.adoptc <- tc:
		return nil
	case <-l.closed:
		return fmt.Errorf("netloop: loop closed")
	}
}

func (l *Loop) close() {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	unix.Close(l.epfd)
}

// run is the Loop's tick: drain newly adopted connections, wait on epoll,
// then read/process/write/close each ready fd, mirroring net.c's
// qaccept/qread/qprocess/qwrite/qclose phase split.
func (l *Loop) run() {
	for {
		select {
		case <-l.closed:
			return
		default:
		}
	drainAdopts:
		for {
			select {
			case tc := <-l.adoptc:
				l.register(tc)
			default:
				break drainAdopts
			}
		}
	drainResumes:
		for {
			select {
			case job := <-l.resumeC:
				l.resume(job)
			default:
				break drainResumes
			}
		}

		n, err := unix.EpollWait(l.epfd, l.events, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case <-l.closed:
				return
			default:
				l.pool.opts.Logger.Warn("epoll_wait failed", zap.Int("loop", l.idx), zap.Error(err))
				continue
			}
		}
		for i := 0; i < n; i++ {
			ev := l.events[i]
			c, ok := l.conns[int(ev.Fd)]
			if !ok {
				continue
			}
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				l.closeConn(c)
				continue
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				l.flush(c)
				continue
			}
			if ev.Events&unix.EPOLLIN != 0 {
				l.readAndProcess(c)
			}
		}
	}
}

func (l *Loop) register(tc *net.TCPConn) {
	raw, err := tc.SyscallConn()
	if err != nil {
		l.pool.opts.Logger.Warn("syscall conn unavailable", zap.Error(err))
		tc.Close()
		return
	}
	var fd int
	raw.Control(func(sysfd uintptr) { fd = int(sysfd) })
	unix.SetNonblock(fd, true)

	c := newConn(fd, tc, l)
	l.conns[fd] = c
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	})
}

func (l *Loop) readAndProcess(c *Conn) {
	n, err := unix.Read(c.fd, l.readBuf)
	if n <= 0 {
		if err == unix.EAGAIN {
			return
		}
		l.closeConn(c)
		return
	}
	c.feed(l.readBuf[:n])
	for {
		consumed, cmd, perr := c.parser.Parse(c.pending())
		if perr != nil {
			if perr == protocolErrNeedMore {
				break
			}
			c.writer.WriteError(perr.Error())
			if c.parser.Proto.String() != "memcache" {
				c.closed = true
			}
			c.advance(consumed)
			if c.closed {
				break
			}
			continue
		}
		if consumed == 0 {
			break
		}
		c.advance(consumed)
		if l.pool.opts.Handler != nil {
			l.pool.opts.Handler(c, cmd.Args)
		}
		if c.closed {
			break
		}
	}
	c.compact()
	c.writer.Flush()
	if c.out.Len() > 0 {
		l.armWrite(c)
	}
	if c.closed && c.out.Len() == 0 {
		l.closeConn(c)
	}
}

func (l *Loop) armWrite(c *Conn) {
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT,
		Fd:     int32(c.fd),
	})
}

func (l *Loop) flush(c *Conn) {
	buf := c.out.Bytes()
	n, err := unix.Write(c.fd, buf)
	if n > 0 {
		c.out.Next(n)
	}
	if err != nil && err != unix.EAGAIN {
		l.closeConn(c)
		return
	}
	if c.out.Len() == 0 {
		unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.fd, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(c.fd),
		})
		if c.closed {
			l.closeConn(c)
		}
	}
}

// suspend removes c from epoll while background work runs on it, mirroring
// net.c's BGWORK(0)/qattach bookkeeping that keeps a busy connection out of
// the read-ready set until its worker finishes.
func (l *Loop) suspend(c *Conn) {
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
}

// resume re-arms c for reads (or writes, if output is still pending) once a
// background job finishes, then runs the job's done callback.
func (l *Loop) resume(job resumeJob) {
	c := job.conn
	if _, ok := l.conns[c.fd]; !ok {
		return
	}
	events := uint32(unix.EPOLLIN)
	if c.out.Len() > 0 {
		events |= unix.EPOLLOUT
	}
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, c.fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(c.fd),
	})
	if job.done != nil {
		job.done(c)
	}
	if c.closed {
		l.closeConn(c)
	}
}

func (l *Loop) closeConn(c *Conn) {
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	delete(l.conns, c.fd)
	c.tc.Close()
	atomic.AddInt64(&l.pool.nconns, -1)
}
