package interfaces

import (
	"context"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// Source 惰性拉取的数据源
//
// Next 返回下一项，耗尽时返回 io.EOF，其余错误表示异常终止。
type Source interface {
	Next(ctx context.Context) (types.Payload, error)
}
