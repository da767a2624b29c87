package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// Decode 从带长度前缀的缓冲区中解码一帧
//
// 返回帧与消耗的字节数。缓冲区不足一帧时返回 ErrNeedMoreData，
// 格式错误时返回包装了 ErrMalformed 的错误。返回的帧不引用 buf。
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < lengthFieldSize {
		return nil, 0, ErrNeedMoreData
	}
	length := readUint24(buf)
	if length < headerSize {
		return nil, 0, fmt.Errorf("%w: frame length %d shorter than header", ErrMalformed, length)
	}
	total := lengthFieldSize + length
	if len(buf) < total {
		return nil, 0, ErrNeedMoreData
	}
	body := make([]byte, length)
	copy(body, buf[lengthFieldSize:total])
	f, err := decodeBody(body)
	if err != nil {
		return nil, 0, err
	}
	return f, total, nil
}

// DecodeBody 解码不带长度前缀的帧
func DecodeBody(body []byte) (*Frame, error) {
	if len(body) < headerSize {
		return nil, fmt.Errorf("%w: frame length %d shorter than header", ErrMalformed, len(body))
	}
	own := make([]byte, len(body))
	copy(own, body)
	return decodeBody(own)
}

// decodeBody 解码帧体，结果直接引用 body
func decodeBody(body []byte) (*Frame, error) {
	f := &Frame{}
	f.StreamID = binary.BigEndian.Uint32(body) & MaxStreamID
	tf := binary.BigEndian.Uint16(body[4:])
	f.Type = Type(tf >> 10)
	f.Flags = Flags(tf) & flagMask
	rest := body[headerSize:]

	if !f.Type.known() {
		if f.Flags.Has(FlagIgnore) {
			f.Data = nonEmpty(rest)
			return f, nil
		}
		return nil, fmt.Errorf("%w: unknown frame type %s", ErrMalformed, f.Type)
	}
	if err := checkStreamID(f); err != nil {
		return nil, err
	}

	r := reader{b: rest}
	switch f.Type {
	case TypeSetup:
		f.MajorVersion = r.u16()
		f.MinorVersion = r.u16()
		f.KeepaliveInterval = r.u32()
		f.MaxLifetime = r.u32()
		if f.Flags.Has(FlagResume) {
			n := int(r.u16())
			f.ResumeToken = r.bytes(n)
			if f.ResumeToken == nil && !r.bad {
				f.ResumeToken = []byte{}
			}
		}
		f.MetadataMIME = string(r.bytes(int(r.u8())))
		f.DataMIME = string(r.bytes(int(r.u8())))
		r.payload(f)
	case TypeLease:
		f.TTL = r.u32()
		f.NumberOfRequests = r.u32()
		if f.Flags.Has(FlagMetadata) {
			f.Metadata = r.remaining()
		}
	case TypeKeepalive:
		f.LastReceivedPosition = r.u64()
		f.Data = nonEmpty(r.remaining())
	case TypeRequestResponse, TypeRequestFNF, TypePayload:
		r.payload(f)
	case TypeRequestStream, TypeRequestChannel:
		f.RequestN = r.u32()
		r.payload(f)
	case TypeRequestN:
		f.RequestN = r.u32()
		if !r.bad && f.RequestN == 0 {
			return nil, fmt.Errorf("%w: REQUEST_N with n=0", ErrMalformed)
		}
	case TypeCancel:
	case TypeError:
		f.ErrorCode = types.ErrorCode(r.u32())
		f.Data = nonEmpty(r.remaining())
	case TypeMetadataPush:
		if !f.Flags.Has(FlagMetadata) {
			return nil, fmt.Errorf("%w: METADATA_PUSH without metadata flag", ErrMalformed)
		}
		f.Metadata = r.remaining()
	}
	if r.bad {
		return nil, fmt.Errorf("%w: truncated %s body", ErrMalformed, f.Type)
	}
	return f, nil
}

// checkStreamID 校验帧类型与流 ID 的组合
func checkStreamID(f *Frame) error {
	switch {
	case f.Type.IsConnectionLevel() && f.StreamID != 0:
		return fmt.Errorf("%w: %s on stream %d", ErrMalformed, f.Type, f.StreamID)
	case f.Type == TypeError:
		return nil
	case !f.Type.IsConnectionLevel() && f.StreamID == 0:
		return fmt.Errorf("%w: %s on stream 0", ErrMalformed, f.Type)
	}
	return nil
}

// ============================================================================
//                              Decoder - 流式解码
// ============================================================================

// Decoder 流式解码器
//
// 字节流载体按任意大小交付数据块，Decoder 累积数据直到凑齐完整帧。
// 非并发安全，应由连接的单个读循环持有。
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder 创建流式解码器
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed 追加收到的数据块
func (d *Decoder) Feed(chunk []byte) {
	if d.off > 0 && d.off >= len(d.buf)/2 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, chunk...)
}

// Next 解码下一帧
//
// 数据不足时返回 ErrNeedMoreData，此时应继续 Feed。
func (d *Decoder) Next() (*Frame, error) {
	f, n, err := Decode(d.buf[d.off:])
	if err != nil {
		return nil, err
	}
	d.off += n
	if d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	return f, nil
}

// Buffered 返回尚未解码的字节数
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// ============================================================================
//                              reader
// ============================================================================

type reader struct {
	b   []byte
	bad bool
}

func (r *reader) take(n int) []byte {
	if r.bad || n < 0 || len(r.b) < n {
		r.bad = true
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	out := r.b[:n:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) bytes(n int) []byte {
	b := r.take(n)
	if len(b) == 0 {
		return nil
	}
	return b
}

func (r *reader) remaining() []byte {
	if r.bad {
		return nil
	}
	b := r.b
	r.b = nil
	if b == nil {
		return []byte{}
	}
	return b[:len(b):len(b)]
}

// payload 读取 [metadata length + metadata] + data
func (r *reader) payload(f *Frame) {
	if f.Flags.Has(FlagMetadata) {
		lb := r.take(metadataFieldSize)
		if lb == nil {
			return
		}
		md := r.take(readUint24(lb))
		if md == nil {
			return
		}
		f.Metadata = md[:len(md):len(md)]
	}
	if !r.bad {
		f.Data = nonEmpty(r.b)
		r.b = nil
	}
}
