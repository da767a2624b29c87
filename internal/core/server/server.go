package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("server")

type registration struct {
	label string
	st    interfaces.ServerTransport
	ln    interfaces.Listener
}

// Server 多传输服务端
//
// 每个注册的传输一个接受循环，所有入站连接共用同一个 Acceptor。
// 任一监听发生致命错误时全部监听一起关闭；单个连接的握手或 SETUP
// 失败只影响该连接。
type Server struct {
	cfg      Config
	acceptor socket.Acceptor
	onStart  func()

	mu      sync.Mutex
	regs    []*registration
	conns   map[*socket.Conn]struct{}
	pending int
	started bool

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// New 创建服务端
func New(cfg Config) *Server {
	return &Server{
		cfg:    cfg.withDefaults(),
		conns:  make(map[*socket.Conn]struct{}),
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Add 以 label 注册一个服务端传输
func (s *Server) Add(label string, st interfaces.ServerTransport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	for _, r := range s.regs {
		if r.label == label {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
		}
	}
	s.regs = append(s.regs, &registration{label: label, st: st})
	return nil
}

// SetAcceptor 设置 SETUP 处理策略，nil 表示使用 Config.Conn.Responder
func (s *Server) SetAcceptor(a socket.Acceptor) {
	s.mu.Lock()
	s.acceptor = a
	s.mu.Unlock()
}

// OnStart 设置全部监听就绪后调用一次的回调
func (s *Server) OnStart(fn func()) {
	s.mu.Lock()
	s.onStart = fn
	s.mu.Unlock()
}

// Ready 全部监听就绪后关闭的 channel
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addrs 返回各传输的实际监听地址，Serve 之前为空
func (s *Server) Addrs() map[string]net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]net.Addr, len(s.regs))
	for _, r := range s.regs {
		if r.ln != nil {
			out[r.label] = r.ln.Addr()
		}
	}
	return out
}

// ConnCount 返回存活的连接数
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ============================================================================
//                              Serve
// ============================================================================

// Serve 绑定全部监听并阻塞直到服务关闭
//
// 任一绑定失败时关闭已绑定的监听并返回。Close 或 ctx 结束时返回 nil；
// 监听发生致命错误时关闭全部监听并返回该错误。
func (s *Server) Serve(ctx context.Context) error {
	regs, err := s.bind()
	if err != nil {
		return err
	}

	s.mu.Lock()
	onStart := s.onStart
	s.mu.Unlock()
	close(s.ready)
	log.Info("服务已启动", "transports", len(regs))
	if onStart != nil {
		onStart()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range regs {
		r := r
		g.Go(func() error {
			return s.acceptLoop(gctx, r)
		})
	}
	go func() {
		select {
		case <-gctx.Done():
		case <-s.closed:
		}
		s.closeListeners()
	}()

	err = g.Wait()
	if err != nil {
		log.Error("监听失败，关闭全部监听", "err", err)
		_ = s.Close()
	}
	log.Info("服务已停止")
	return err
}

func (s *Server) bind() ([]*registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return nil, ErrServerClosed
	default:
	}
	if s.started {
		return nil, ErrAlreadyStarted
	}
	if len(s.regs) == 0 {
		return nil, ErrNoTransports
	}
	s.started = true

	for i, r := range s.regs {
		ln, err := r.st.Listen()
		if err != nil {
			var errs error
			for _, bound := range s.regs[:i] {
				errs = multierr.Append(errs, bound.ln.Close())
				bound.ln = nil
			}
			if errs != nil {
				log.Debug("关闭已绑定监听出错", "err", errs)
			}
			return nil, fmt.Errorf("server: listen %s: %w", r.label, err)
		}
		r.ln = ln
		log.Info("传输监听已启动", "label", r.label, "protocol", r.st.Protocol(), "addr", ln.Addr().String())
	}
	return append([]*registration(nil), s.regs...), nil
}

// acceptLoop 接受连接循环
func (s *Server) acceptLoop(ctx context.Context, r *registration) error {
	var limiter *rate.Limiter
	if s.cfg.AcceptRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.AcceptRate), s.cfg.AcceptBurst)
	}

	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		tr, err := r.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || s.isClosed() || errors.Is(err, net.ErrClosed) {
				log.Debug("接受循环退出", "label", r.label)
				return nil
			}
			return fmt.Errorf("server: %s accept: %w", r.label, err)
		}
		if !s.admit() {
			log.Warn("连接数已达上限，拒绝连接", "label", r.label, "remote", tr.RemoteAddr())
			_ = tr.Close()
			continue
		}
		go s.handle(r, tr)
	}
}

// admit 为新连接预留名额
func (s *Server) admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxConnections > 0 && len(s.conns)+s.pending >= s.cfg.MaxConnections {
		return false
	}
	s.pending++
	return true
}

// handle 完成 SETUP 并跟踪连接直到关闭
func (s *Server) handle(r *registration, tr interfaces.Conn) {
	cfg := s.cfg.Conn
	cfg.ID = uuid.NewString()
	cfg.Transport = r.st.Protocol()

	s.mu.Lock()
	acceptor := s.acceptor
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SetupTimeout)
	c, err := socket.Server(ctx, tr, cfg, acceptor)
	cancel()

	s.mu.Lock()
	s.pending--
	if err == nil {
		if s.isClosed() {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
	}
	s.mu.Unlock()
	if err != nil {
		log.Debug("连接建立失败", "label", r.label, "remote", tr.RemoteAddr(), "err", err)
		return
	}

	log.Debug("连接已建立", "label", r.label, "conn", cfg.ID, "remote", tr.RemoteAddr())
	<-c.Done()
	log.Debug("连接已关闭", "label", r.label, "conn", cfg.ID, "err", c.Err())

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// ============================================================================
//                              关闭
// ============================================================================

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) closeListeners() error {
	s.mu.Lock()
	lns := make([]interfaces.Listener, 0, len(s.regs))
	for _, r := range s.regs {
		if r.ln != nil {
			lns = append(lns, r.ln)
		}
	}
	s.mu.Unlock()

	var err error
	for _, ln := range lns {
		if e := ln.Close(); e != nil && !errors.Is(e, net.ErrClosed) {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Close 关闭全部监听与存活连接
//
// 连接在 ShutdownTimeout 内排空写队列后关闭。
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.closeListeners()

		s.mu.Lock()
		conns := make([]*socket.Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		var wg sync.WaitGroup
		for _, c := range conns {
			wg.Add(1)
			go func(c *socket.Conn) {
				defer wg.Done()
				_ = c.Close()
			}(c)
		}
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		t := time.NewTimer(s.cfg.ShutdownTimeout)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			log.Warn("等待连接关闭超时", "remaining", len(conns))
		}
	})
	return err
}
