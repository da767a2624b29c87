package p2p

import (
	"crypto/ed25519"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 握手 payload 的 protobuf 字段
//
//	message HandshakePayload {
//	  PublicKey identity_key = 1;
//	  bytes     identity_sig = 2;
//	}
//	message PublicKey {
//	  KeyType type = 1;   // Ed25519 = 1
//	  bytes   data = 2;
//	}
const (
	fieldIdentityKey protowire.Number = 1
	fieldIdentitySig protowire.Number = 2

	fieldKeyType protowire.Number = 1
	fieldKeyData protowire.Number = 2

	keyTypeEd25519 = 1
)

type handshakePayload struct {
	identityKey ed25519.PublicKey
	identitySig []byte
}

func (p *handshakePayload) marshal() []byte {
	var key []byte
	key = protowire.AppendTag(key, fieldKeyType, protowire.VarintType)
	key = protowire.AppendVarint(key, keyTypeEd25519)
	key = protowire.AppendTag(key, fieldKeyData, protowire.BytesType)
	key = protowire.AppendBytes(key, p.identityKey)

	var b []byte
	b = protowire.AppendTag(b, fieldIdentityKey, protowire.BytesType)
	b = protowire.AppendBytes(b, key)
	b = protowire.AppendTag(b, fieldIdentitySig, protowire.BytesType)
	b = protowire.AppendBytes(b, p.identitySig)
	return b
}

func (p *handshakePayload) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldIdentityKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			key, err := unmarshalPublicKey(v)
			if err != nil {
				return err
			}
			p.identityKey = key
			b = b[n:]
		case num == fieldIdentitySig && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			p.identitySig = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if p.identityKey == nil || p.identitySig == nil {
		return fmt.Errorf("%w: missing identity", ErrInvalidPayload)
	}
	return nil
}

func unmarshalPublicKey(b []byte) (ed25519.PublicKey, error) {
	var (
		keyType uint64
		data    []byte
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldKeyType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			keyType = v
			b = b[n:]
		case num == fieldKeyData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			data = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if keyType != keyTypeEd25519 {
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrInvalidPayload, keyType)
	}
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: key length %d", ErrInvalidPayload, len(data))
	}
	return append(ed25519.PublicKey(nil), data...), nil
}
