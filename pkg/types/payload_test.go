package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPayload_MetadataPresence 测试元数据"不存在"与"存在但为空"的区分
func TestPayload_MetadataPresence(t *testing.T) {
	tests := []struct {
		name    string
		p       Payload
		hasMeta bool
	}{
		{"无元数据", NewPayload([]byte("x"), nil), false},
		{"空元数据", NewPayload([]byte("x"), []byte{}), true},
		{"有元数据", NewPayload([]byte("x"), []byte("m")), true},
		{"构建器空元数据", Builder().SetData([]byte("x")).SetMetadata(nil).Build(), true},
		{"构建器清除元数据", Builder().SetMetadataUTF8("m").ClearMetadata().Build(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasMeta, tt.p.HasMetadata())
			if tt.hasMeta {
				assert.NotNil(t, tt.p.Metadata())
			} else {
				assert.Nil(t, tt.p.Metadata())
			}
		})
	}
}

// TestPayloadBuilder_Immutable 测试 Build 之后修改构建器不影响已构建的载荷
func TestPayloadBuilder_Immutable(t *testing.T) {
	b := Builder().SetDataUTF8("hello").SetMetadataUTF8("meta")
	p := b.Build()

	b.AppendData([]byte(" world")).SetMetadataUTF8("changed")

	s, ok := p.DataUTF8()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
	m, ok := p.MetadataUTF8()
	require.True(t, ok)
	assert.Equal(t, "meta", m)

	src := []byte("abc")
	p2 := NewPayload(src, nil)
	src[0] = 'z'
	assert.Equal(t, []byte("abc"), p2.Data())
}

// TestPayload_DataUTF8 测试 UTF-8 访问
func TestPayload_DataUTF8(t *testing.T) {
	p := NewPayloadString("pong")
	s, ok := p.DataUTF8()
	assert.True(t, ok)
	assert.Equal(t, "pong", s)
	assert.True(t, p.HasData())

	_, ok = NewPayload([]byte{0xff, 0xfe}, nil).DataUTF8()
	assert.False(t, ok)

	assert.False(t, EmptyPayload().HasData())
	assert.Equal(t, "Payload{data=pong}", p.String())
}

// TestError_Is 测试协议错误的匹配
func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewError(ErrorCodeApplicationError, "boom"))

	assert.True(t, errors.Is(err, &Error{Code: ErrorCodeApplicationError}))
	assert.True(t, errors.Is(err, NewError(ErrorCodeApplicationError, "boom")))
	assert.False(t, errors.Is(err, &Error{Code: ErrorCodeRejected}))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Message)
	assert.Equal(t, "APPLICATION_ERROR: boom", pe.Error())

	assert.Equal(t, ErrorCodeApplicationError, AsError(errors.New("x")).Code)
	assert.Nil(t, AsError(nil))
}

// TestErrorCode_String 测试错误码字符串表示
func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "REJECTED_SETUP", ErrorCodeRejectedSetup.String())
	assert.Equal(t, "ERROR_CODE(0x00000999)", ErrorCode(0x999).String())
	assert.True(t, ErrorCodeConnectionClose.IsConnectionLevel())
	assert.False(t, ErrorCodeCanceled.IsConnectionLevel())
	assert.Equal(t, "request_channel", KindRequestChannel.String())
}
