package socket

import (
	"github.com/dep2p/go-rsocket/config"
)

// ConfigFromUnified 从统一配置创建连接配置
//
// 只填充配置文件中可表达的字段，Responder、Clock、Observer、Logger
// 由调用方设置。
func ConfigFromUnified(cfg *config.Config) Config {
	cc := config.DefaultConnectionConfig()
	if cfg != nil {
		cc = cfg.Connection
	}
	return Config{
		KeepaliveInterval: cc.KeepaliveInterval.Duration(),
		MaxLifetime:       cc.MaxLifetime.Duration(),
		MissedKeepalives:  cc.MissedKeepalives,
		InitialRequestN:   cc.InitialRequestN,
		MTU:               cc.FragmentMTU,
		MaxReassembly:     cc.MaxReassembly,
		HalfCloseTimeout:  cc.HalfCloseTimeout.Duration(),
		CloseTimeout:      cc.CloseTimeout.Duration(),
		CancelGrace:       cc.CancelGrace.Duration(),
		MetadataMIME:      cc.MetadataMIME,
		DataMIME:          cc.DataMIME,
		Lease:             cc.Lease,
		LeaseTTL:          cc.LeaseTTL.Duration(),
		LeaseRequests:     cc.LeaseRequests,
	}
}
