package types

import "unicode/utf8"

// ============================================================================
//                              Payload - 载荷
// ============================================================================

// Payload 不可变载荷
//
// 由 data 与可选的 metadata 组成。metadata 的"不存在"与"存在但为空"
// 是两种不同的状态：HasMetadata 区分二者，线路上通过 METADATA 标志位表达。
type Payload struct {
	data     []byte
	metadata []byte
	hasMeta  bool
}

// NewPayload 直接构造载荷
//
// metadata 为 nil 表示不携带元数据；传入空切片表示携带空元数据。
func NewPayload(data, metadata []byte) Payload {
	p := Payload{data: cloneBytes(data)}
	if metadata != nil {
		p.metadata = cloneBytes(metadata)
		if p.metadata == nil {
			p.metadata = []byte{}
		}
		p.hasMeta = true
	}
	return p
}

// NewPayloadString 使用字符串构造载荷（无元数据）
func NewPayloadString(data string) Payload {
	return Payload{data: []byte(data)}
}

// EmptyPayload 返回空载荷
func EmptyPayload() Payload {
	return Payload{}
}

// Data 返回数据（调用方不得修改返回的切片）
func (p Payload) Data() []byte {
	return p.data
}

// Metadata 返回元数据，不存在时返回 nil
func (p Payload) Metadata() []byte {
	if !p.hasMeta {
		return nil
	}
	return p.metadata
}

// HasData 是否携带非空数据
func (p Payload) HasData() bool {
	return len(p.data) > 0
}

// HasMetadata 是否携带元数据（包括空元数据）
func (p Payload) HasMetadata() bool {
	return p.hasMeta
}

// DataUTF8 以 UTF-8 字符串返回数据
//
// 非法 UTF-8 序列返回空字符串与 false。
func (p Payload) DataUTF8() (string, bool) {
	if !utf8.Valid(p.data) {
		return "", false
	}
	return string(p.data), true
}

// MetadataUTF8 以 UTF-8 字符串返回元数据
func (p Payload) MetadataUTF8() (string, bool) {
	if !p.hasMeta || !utf8.Valid(p.metadata) {
		return "", false
	}
	return string(p.metadata), true
}

// String 返回调试用的字符串表示
func (p Payload) String() string {
	s, ok := p.DataUTF8()
	if !ok {
		s = "<binary>"
	}
	if !p.hasMeta {
		return "Payload{data=" + s + "}"
	}
	m, ok := p.MetadataUTF8()
	if !ok {
		m = "<binary>"
	}
	return "Payload{data=" + s + ", metadata=" + m + "}"
}

// Len 返回 data 与 metadata 的总字节数
func (p Payload) Len() int {
	return len(p.data) + len(p.metadata)
}

// ============================================================================
//                              PayloadBuilder - 构建器
// ============================================================================

// PayloadBuilder 载荷构建器
//
// 累积 data/metadata 后通过 Build 冻结为不可变的 Payload。
type PayloadBuilder struct {
	data     []byte
	metadata []byte
	hasMeta  bool
}

// Builder 创建载荷构建器
func Builder() *PayloadBuilder {
	return &PayloadBuilder{}
}

// SetData 设置数据
func (b *PayloadBuilder) SetData(data []byte) *PayloadBuilder {
	b.data = append(b.data[:0], data...)
	return b
}

// SetDataUTF8 以字符串设置数据
func (b *PayloadBuilder) SetDataUTF8(s string) *PayloadBuilder {
	return b.SetData([]byte(s))
}

// AppendData 追加数据
func (b *PayloadBuilder) AppendData(data []byte) *PayloadBuilder {
	b.data = append(b.data, data...)
	return b
}

// SetMetadata 设置元数据（传入空切片表示携带空元数据）
func (b *PayloadBuilder) SetMetadata(metadata []byte) *PayloadBuilder {
	b.metadata = append(b.metadata[:0], metadata...)
	b.hasMeta = true
	return b
}

// SetMetadataUTF8 以字符串设置元数据
func (b *PayloadBuilder) SetMetadataUTF8(s string) *PayloadBuilder {
	return b.SetMetadata([]byte(s))
}

// ClearMetadata 移除元数据
func (b *PayloadBuilder) ClearMetadata() *PayloadBuilder {
	b.metadata = nil
	b.hasMeta = false
	return b
}

// Build 冻结并返回载荷
func (b *PayloadBuilder) Build() Payload {
	p := Payload{data: cloneBytes(b.data)}
	if b.hasMeta {
		p.metadata = cloneBytes(b.metadata)
		if p.metadata == nil {
			p.metadata = []byte{}
		}
		p.hasMeta = true
	}
	return p
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
