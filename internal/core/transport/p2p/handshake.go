package p2p

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"
)

// payloadSigPrefix 签名内容前缀
const payloadSigPrefix = "rsocket-p2p-static-key:"

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// handshake 执行 Noise XX 握手
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// expect 非空时要求对端节点 ID 与之一致。
func handshake(conn net.Conn, id *Identity, expect string, initiator bool) (*secureConn, error) {
	staticPriv := ed25519ToCurve25519Private(id.Seed())
	staticPub, err := ed25519ToCurve25519Public(id.PublicKey())
	if err != nil {
		return nil, err
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: noise.DHKey{Private: staticPriv, Public: staticPub},
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	local := (&handshakePayload{
		identityKey: id.PublicKey(),
		identitySig: id.Sign(append([]byte(payloadSigPrefix), staticPub...)),
	}).marshal()

	var sendCS, recvCS *noise.CipherState
	var remote []byte
	if initiator {
		sendCS, recvCS, remote, err = initiatorHandshake(conn, hs, local)
	} else {
		sendCS, recvCS, remote, err = responderHandshake(conn, hs, local)
	}
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	remoteID, err := verifyPayload(remote, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	if expect != "" && remoteID != expect {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerMismatch, expect, remoteID)
	}

	return &secureConn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  id.NodeID(),
		remotePeer: remoteID,
	}, nil
}

// verifyPayload 校验身份公钥对 Noise 静态公钥的签名，返回对端节点 ID
func verifyPayload(b, remoteStatic []byte) (string, error) {
	if len(remoteStatic) != 32 {
		return "", fmt.Errorf("invalid remote static key length: %d", len(remoteStatic))
	}
	var p handshakePayload
	if err := p.unmarshal(b); err != nil {
		return "", err
	}
	if !ed25519.Verify(p.identityKey, append([]byte(payloadSigPrefix), remoteStatic...), p.identitySig) {
		return "", ErrInvalidSignature
	}
	return NodeIDFromPublicKey(p.identityKey), nil
}

func initiatorHandshake(conn net.Conn, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeMsg(conn, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readMsg(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remote, _, _, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeMsg(conn, msg3); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}
	return cs1, cs2, remote, nil
}

func responderHandshake(conn net.Conn, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg1, err := readMsg(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err = hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeMsg(conn, msg2); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readMsg(conn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remote, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read message 3: %w", err)
	}
	// 响应方的发送方向为 cs2
	return cs2, cs1, remote, nil
}

// ============================================================================
//                              密钥转换
// ============================================================================

// ed25519ToCurve25519Private SHA-512(seed) 前 32 字节并 clamp
func ed25519ToCurve25519Private(seed []byte) []byte {
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32]
}

// ed25519ToCurve25519Public Edwards 点转换为 Montgomery u 坐标
func ed25519ToCurve25519Public(pub ed25519.PublicKey) ([]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}
	return p.BytesMontgomery(), nil
}

// ============================================================================
//                              消息读写
// ============================================================================

// maxMsgSize Noise 单条消息上限
const maxMsgSize = 65535

// writeMsg 写入 2 字节长度前缀加数据
func writeMsg(w io.Writer, data []byte) error {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

// readMsg 读取 2 字节长度前缀加数据
func readMsg(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
