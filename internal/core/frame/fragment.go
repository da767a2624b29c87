package frame

import "fmt"

// ============================================================================
//                              分片
// ============================================================================

// ValidateMTU 校验分片 MTU，0 表示不分片
func ValidateMTU(mtu int) error {
	if mtu != 0 && (mtu < MinMTU || mtu > MaxFrameLength) {
		return fmt.Errorf("%w: %d (at least %d)", ErrInvalidMTU, mtu, MinMTU)
	}
	return nil
}

// Fragment 按 MTU 拆分帧
//
// 只拆分 REQUEST_* 与 PAYLOAD 帧。首片保留原帧类型，续片为 PAYLOAD 帧，
// 除最后一片外都设置 FOLLOWS；原帧的 COMPLETE 标志移到最后一片。
// 先填元数据，再填数据。mtu 为 0 或帧足够小时原样返回。
func Fragment(f *Frame, mtu int) ([]*Frame, error) {
	if mtu == 0 || !f.Type.fragmentable() || EncodedLen(f) <= mtu {
		return []*Frame{f}, nil
	}
	if err := ValidateMTU(mtu); err != nil {
		return nil, err
	}

	meta, data := f.Metadata, f.Data
	metaPending := meta != nil
	var out []*Frame

	for first := true; ; first = false {
		var fr *Frame
		if first {
			head := *f
			head.Metadata, head.Data = nil, nil
			head.Flags &^= FlagMetadata | FlagComplete | FlagFollows
			fr = &head
		} else {
			fr = &Frame{StreamID: f.StreamID, Type: TypePayload, Flags: FlagNext}
		}

		budget := mtu - EncodedLen(fr)
		if metaPending {
			budget -= metadataFieldSize
			n := min(len(meta), budget)
			fr.Metadata = meta[:n:n]
			if n == 0 {
				fr.Metadata = []byte{}
			}
			meta = meta[n:]
			budget -= n
			metaPending = len(meta) > 0
		}
		if !metaPending && budget > 0 && len(data) > 0 {
			n := min(len(data), budget)
			fr.Data = data[:n:n]
			data = data[n:]
		}

		last := !metaPending && len(data) == 0
		if !last {
			fr.Flags |= FlagFollows
		} else if f.Flags.Has(FlagComplete) {
			fr.Flags |= FlagComplete
		}
		out = append(out, fr)
		if last {
			return out, nil
		}
	}
}

// ============================================================================
//                              Joiner - 重组
// ============================================================================

// Joiner 按流 ID 重组分片
//
// 非并发安全，由连接的读循环持有。
type Joiner struct {
	pending map[uint32]*Frame
	maxSize int
}

// NewJoiner 创建分片重组器
//
// maxSize 限制单个重组帧的载荷大小，0 表示不限制。
func NewJoiner(maxSize int) *Joiner {
	return &Joiner{pending: make(map[uint32]*Frame), maxSize: maxSize}
}

// Push 输入一帧
//
// 返回完整帧；分片尚未结束时返回 nil。流被 CANCEL/ERROR 终止时丢弃
// 未完成的分片并原样返回终止帧。REQUEST_N 可以穿插在分片之间。
func (j *Joiner) Push(f *Frame) (*Frame, error) {
	head, ok := j.pending[f.StreamID]
	if !ok {
		if f.Flags.Has(FlagFollows) && f.Type.fragmentable() {
			c := *f
			j.pending[f.StreamID] = &c
			return nil, nil
		}
		return f, nil
	}

	switch f.Type {
	case TypePayload:
	case TypeCancel, TypeError:
		delete(j.pending, f.StreamID)
		return f, nil
	case TypeRequestN:
		return f, nil
	default:
		delete(j.pending, f.StreamID)
		return nil, fmt.Errorf("%w: %s while reassembling stream %d", ErrUnexpectedFragment, f.Type, f.StreamID)
	}

	if f.Metadata != nil {
		if head.Metadata == nil {
			head.Metadata = []byte{}
		}
		head.Metadata = append(head.Metadata, f.Metadata...)
	}
	head.Data = append(head.Data, f.Data...)
	if j.maxSize > 0 && len(head.Metadata)+len(head.Data) > j.maxSize {
		delete(j.pending, f.StreamID)
		return nil, fmt.Errorf("%w: reassembled stream %d exceeds %d bytes", ErrFrameTooLarge, f.StreamID, j.maxSize)
	}
	if f.Flags.Has(FlagFollows) {
		return nil, nil
	}

	delete(j.pending, f.StreamID)
	head.Flags = head.Flags&^(FlagFollows|FlagMetadata) | f.Flags&FlagComplete
	if head.Metadata != nil {
		head.Flags |= FlagMetadata
	}
	head.Data = nonEmpty(head.Data)
	return head, nil
}

// Remove 丢弃指定流未完成的分片
func (j *Joiner) Remove(streamID uint32) {
	delete(j.pending, streamID)
}

// Pending 返回正在重组的流数量
func (j *Joiner) Pending() int {
	return len(j.pending)
}
