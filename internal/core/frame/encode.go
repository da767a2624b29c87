package frame

import (
	"encoding/binary"
	"fmt"
)

// Encode 编码帧（带 24 位长度前缀）
func Encode(f *Frame) ([]byte, error) {
	buf := make([]byte, lengthFieldSize, lengthFieldSize+headerSize+bodyHint(f))
	buf, err := AppendBody(buf, f)
	if err != nil {
		return nil, err
	}
	n := len(buf) - lengthFieldSize
	if n > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	putUint24(buf, n)
	return buf, nil
}

// EncodeBody 编码帧（不带长度前缀，用于自带消息边界的载体）
func EncodeBody(f *Frame) ([]byte, error) {
	buf, err := AppendBody(make([]byte, 0, headerSize+bodyHint(f)), f)
	if err != nil {
		return nil, err
	}
	if len(buf) > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(buf))
	}
	return buf, nil
}

// AppendBody 将帧头与帧体追加到 dst
func AppendBody(dst []byte, f *Frame) ([]byte, error) {
	if f.StreamID > MaxStreamID {
		return nil, fmt.Errorf("%w: stream id %d out of range", ErrMalformed, f.StreamID)
	}
	if !f.Type.known() {
		return nil, fmt.Errorf("%w: cannot encode %s", ErrMalformed, f.Type)
	}

	flags := f.Flags & flagMask
	if carriesMetadata(f.Type) {
		flags &^= FlagMetadata
		if f.Metadata != nil {
			flags |= FlagMetadata
		}
	} else {
		flags &^= FlagMetadata
	}

	dst = binary.BigEndian.AppendUint32(dst, f.StreamID)
	dst = binary.BigEndian.AppendUint16(dst, uint16(f.Type)<<10|uint16(flags))

	switch f.Type {
	case TypeSetup:
		dst = binary.BigEndian.AppendUint16(dst, f.MajorVersion)
		dst = binary.BigEndian.AppendUint16(dst, f.MinorVersion)
		dst = binary.BigEndian.AppendUint32(dst, f.KeepaliveInterval)
		dst = binary.BigEndian.AppendUint32(dst, f.MaxLifetime)
		if flags.Has(FlagResume) {
			if len(f.ResumeToken) > 0xFFFF {
				return nil, fmt.Errorf("%w: resume token too long", ErrMalformed)
			}
			dst = binary.BigEndian.AppendUint16(dst, uint16(len(f.ResumeToken)))
			dst = append(dst, f.ResumeToken...)
		}
		for _, mime := range []string{f.MetadataMIME, f.DataMIME} {
			if len(mime) > 0xFF {
				return nil, fmt.Errorf("%w: mime type too long", ErrMalformed)
			}
			dst = append(dst, byte(len(mime)))
			dst = append(dst, mime...)
		}
		return appendPayload(dst, f)
	case TypeLease:
		dst = binary.BigEndian.AppendUint32(dst, f.TTL)
		dst = binary.BigEndian.AppendUint32(dst, f.NumberOfRequests)
		return append(dst, f.Metadata...), nil
	case TypeKeepalive:
		dst = binary.BigEndian.AppendUint64(dst, f.LastReceivedPosition)
		return append(dst, f.Data...), nil
	case TypeRequestResponse, TypeRequestFNF, TypePayload:
		return appendPayload(dst, f)
	case TypeRequestStream, TypeRequestChannel:
		dst = binary.BigEndian.AppendUint32(dst, f.RequestN)
		return appendPayload(dst, f)
	case TypeRequestN:
		return binary.BigEndian.AppendUint32(dst, f.RequestN), nil
	case TypeCancel:
		return dst, nil
	case TypeError:
		dst = binary.BigEndian.AppendUint32(dst, uint32(f.ErrorCode))
		return append(dst, f.Data...), nil
	case TypeMetadataPush:
		return append(dst, f.Metadata...), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %s", ErrMalformed, f.Type)
}

// appendPayload 追加 [metadata length + metadata] + data
func appendPayload(dst []byte, f *Frame) ([]byte, error) {
	if f.Metadata != nil {
		if len(f.Metadata) > MaxFrameLength {
			return nil, fmt.Errorf("%w: metadata %d bytes", ErrFrameTooLarge, len(f.Metadata))
		}
		dst = appendUint24(dst, len(f.Metadata))
		dst = append(dst, f.Metadata...)
	}
	return append(dst, f.Data...), nil
}

// carriesMetadata 帧类型是否允许 METADATA 标志位
func carriesMetadata(t Type) bool {
	switch t {
	case TypeSetup, TypeLease, TypeRequestResponse, TypeRequestFNF,
		TypeRequestStream, TypeRequestChannel, TypePayload, TypeMetadataPush:
		return true
	}
	return false
}

func bodyHint(f *Frame) int {
	return 32 + len(f.Metadata) + len(f.Data) + len(f.ResumeToken) + len(f.MetadataMIME) + len(f.DataMIME)
}

func putUint24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func appendUint24(b []byte, v int) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}

func readUint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// EncodedLen 返回帧编码后的总长度（含长度前缀）
func EncodedLen(f *Frame) int {
	n := lengthFieldSize + headerSize
	switch f.Type {
	case TypeSetup:
		n += 12 + 2 + len(f.MetadataMIME) + len(f.DataMIME)
		if f.Flags.Has(FlagResume) {
			n += 2 + len(f.ResumeToken)
		}
	case TypeLease:
		n += 8
	case TypeKeepalive:
		n += 8
	case TypeRequestStream, TypeRequestChannel, TypeRequestN, TypeError:
		n += 4
	}
	if f.Metadata != nil && carriesMetadata(f.Type) {
		n += len(f.Metadata)
		if f.Type != TypeLease && f.Type != TypeMetadataPush {
			n += metadataFieldSize
		}
	}
	if f.Type != TypeRequestN && f.Type != TypeCancel && f.Type != TypeLease && f.Type != TypeMetadataPush {
		n += len(f.Data)
	}
	return n
}
