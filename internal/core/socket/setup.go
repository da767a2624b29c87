package socket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// Acceptor 服务端处理 SETUP 的回调
//
// 返回本连接使用的响应方；返回错误时连接以 REJECTED_SETUP 拒绝。
// 返回 nil 响应方时沿用 Config.Responder。
type Acceptor func(ctx context.Context, setup types.SetupInfo, c *Conn) (*Responder, error)

// Client 在已建立的传输连接上发起 SETUP，返回客户端连接
//
// 要求租约时阻塞到收到第一个 LEASE。
func Client(ctx context.Context, tr interfaces.Conn, cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := newConn(tr, RoleClient, cfg)
	setup := frame.NewSetup(frame.SetupParams{
		KeepaliveInterval: millis(c.cfg.KeepaliveInterval),
		MaxLifetime:       millis(c.cfg.MaxLifetime),
		MetadataMIME:      c.cfg.MetadataMIME,
		DataMIME:          c.cfg.DataMIME,
		Lease:             c.cfg.Lease,
	}, c.cfg.SetupPayload)
	if err := c.write(ctx, setup); err != nil {
		c.shutdown(err)
		<-c.done
		return nil, err
	}

	go c.readLoop()
	c.ka.start(c.cfg.KeepaliveInterval)

	if err := c.lease.wait(ctx); err != nil {
		c.shutdown(err)
		<-c.done
		return nil, err
	}
	c.log.Debug("连接建立", "remote", tr.RemoteAddr())
	return c, nil
}

// Server 读取并校验客户端的 SETUP，返回服务端连接
//
// 首帧不是 SETUP 时回复 INVALID_SETUP；版本、恢复或租约不受支持时回复
// UNSUPPORTED_SETUP；acceptor 拒绝时回复 REJECTED_SETUP。任何一种情况
// 都会关闭传输连接。
func Server(ctx context.Context, tr interfaces.Conn, cfg Config, acceptor Acceptor) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := newConn(tr, RoleServer, cfg)
	f, err := c.readSetup(ctx)
	if err == nil {
		err = c.checkSetup(f)
	}
	if err == nil {
		err = c.accepted(ctx, f, acceptor)
	}
	if err != nil {
		c.shutdown(err)
		<-c.done
		return nil, err
	}

	if f.Flags.Has(frame.FlagLease) {
		c.issuer.start()
	}
	go c.readLoop()
	c.ka.start(time.Duration(f.KeepaliveInterval) * time.Millisecond)
	c.log.Debug("连接建立", "remote", tr.RemoteAddr(), "keepalive", f.KeepaliveInterval)
	return c, nil
}

func (c *Conn) readSetup(ctx context.Context) (*frame.Frame, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.tr.Close() })
	defer stop()
	for {
		f, err := c.dec.Next()
		if err == nil {
			c.obs.FrameReceived(uint8(f.Type), frame.EncodedLen(f))
			return f, nil
		}
		if !errors.Is(err, frame.ErrNeedMoreData) {
			return nil, c.rejectSetup(types.ErrorCodeInvalidSetup, err.Error())
		}
		chunk, err := c.tr.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		c.dec.Feed(chunk)
	}
}

func (c *Conn) checkSetup(f *frame.Frame) error {
	switch {
	case f.Type != frame.TypeSetup:
		return c.rejectSetup(types.ErrorCodeInvalidSetup, "first frame must be SETUP, got "+f.Type.String())
	case f.MajorVersion != frame.MajorVersion:
		return c.rejectSetup(types.ErrorCodeUnsupportedSetup,
			fmt.Sprintf("unsupported version %d.%d", f.MajorVersion, f.MinorVersion))
	case f.Flags.Has(frame.FlagResume):
		return c.rejectSetup(types.ErrorCodeUnsupportedSetup, "resume not supported")
	case f.Flags.Has(frame.FlagLease) && c.issuer == nil:
		return c.rejectSetup(types.ErrorCodeUnsupportedSetup, "lease not supported")
	}
	return nil
}

func (c *Conn) accepted(ctx context.Context, f *frame.Frame, acceptor Acceptor) error {
	if acceptor == nil {
		return nil
	}
	info := types.SetupInfo{
		MajorVersion:      f.MajorVersion,
		MinorVersion:      f.MinorVersion,
		KeepaliveInterval: time.Duration(f.KeepaliveInterval) * time.Millisecond,
		MaxLifetime:       time.Duration(f.MaxLifetime) * time.Millisecond,
		MetadataMIME:      f.MetadataMIME,
		DataMIME:          f.DataMIME,
		Lease:             f.Flags.Has(frame.FlagLease),
		Payload:           f.Payload(),
	}
	r, err := acceptor(ctx, info, c)
	if err != nil {
		return c.rejectSetup(types.ErrorCodeRejectedSetup, err.Error())
	}
	if r != nil {
		c.responder = r
	}
	return nil
}

func (c *Conn) rejectSetup(code types.ErrorCode, msg string) error {
	c.log.Info("拒绝 SETUP", "code", code.String(), "msg", msg)
	c.post(frame.NewError(0, code, msg))
	return fmt.Errorf("%w: %w", ErrInvalidSetup, types.NewError(code, msg))
}
