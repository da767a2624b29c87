package p2p

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// SeedSize 身份种子长度
const SeedSize = ed25519.SeedSize

// Identity 节点身份
type Identity struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	nodeID string
}

// NewIdentity 由 32 字节种子派生身份，seed 为 nil 时随机生成
func NewIdentity(seed []byte) (*Identity, error) {
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("生成身份种子失败: %w", err)
		}
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeed, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{priv: priv, pub: pub, nodeID: NodeIDFromPublicKey(pub)}, nil
}

// NodeID 节点 ID
func (id *Identity) NodeID() string {
	return id.nodeID
}

// PublicKey Ed25519 公钥
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.pub
}

// Seed 32 字节种子
func (id *Identity) Seed() []byte {
	return id.priv.Seed()
}

// Sign 使用身份私钥签名
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.priv, msg)
}

// NodeIDFromPublicKey 计算 base58(sha256(pub))
func NodeIDFromPublicKey(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base58.Encode(sum[:])
}

// ValidateNodeID 检查节点 ID 能否解码为 32 字节摘要
func ValidateNodeID(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNodeID, err)
	}
	if len(b) != sha256.Size {
		return fmt.Errorf("%w: decoded length %d", ErrInvalidNodeID, len(b))
	}
	return nil
}

// ParseAddress 拆分 [p2p://][nodeID@]host:port
func ParseAddress(addr string) (nodeID, hostport string, err error) {
	addr = strings.TrimPrefix(addr, "p2p://")
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		nodeID, addr = addr[:i], addr[i+1:]
		if err := ValidateNodeID(nodeID); err != nil {
			return "", "", err
		}
	}
	if addr == "" || !strings.Contains(addr, ":") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nodeID, addr, nil
}
