package p2p

import (
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/dep2p/go-rsocket/internal/core/transport/netconn"
)

// maxPlaintext 单条加密消息可承载的明文上限（去掉 16 字节认证标签）
const maxPlaintext = maxMsgSize - 16

// secureConn Noise 加密连接
type secureConn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  string
	remotePeer string

	readMu  sync.Mutex
	writeMu sync.Mutex
	readBuf []byte
}

// Read 读取并解密，一条消息未读完的部分留待下次
func (c *secureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.readBuf) > 0 {
		n := copy(p, c.readBuf)
		c.readBuf = c.readBuf[n:]
		return n, nil
	}

	msg, err := readMsg(c.Conn)
	if err != nil {
		return 0, err
	}
	plain, err := c.recvCS.Decrypt(nil, nil, msg)
	if err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}
	n := copy(p, plain)
	if n < len(plain) {
		c.readBuf = plain[n:]
	}
	return n, nil
}

// Write 按 maxPlaintext 切分后逐条加密写入
func (c *secureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxPlaintext {
			chunk = chunk[:maxPlaintext]
		}
		ct, err := c.sendCS.Encrypt(nil, nil, chunk)
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		if err := writeMsg(c.Conn, ct); err != nil {
			return written, err
		}
		written += len(chunk)
		p = p[len(chunk):]
	}
	return written, nil
}

// Conn 已完成握手的 p2p 连接
type Conn struct {
	*netconn.Conn
	sc *secureConn
}

// LocalNodeID 本地节点 ID
func (c *Conn) LocalNodeID() string {
	return c.sc.localPeer
}

// RemoteNodeID 经握手确认的对端节点 ID
func (c *Conn) RemoteNodeID() string {
	return c.sc.remotePeer
}

func newConn(sc *secureConn) *Conn {
	return &Conn{Conn: netconn.New(sc, sc.LocalAddr(), sc.RemoteAddr()), sc: sc}
}
