package config

import (
	"errors"
	"time"
)

// ConnectionConfig 连接层配置
type ConnectionConfig struct {
	// KeepaliveInterval 客户端心跳间隔，0 表示禁用
	KeepaliveInterval Duration `json:"keepalive_interval"`

	// MaxLifetime 写入 SETUP 的最大存活时间
	MaxLifetime Duration `json:"max_lifetime"`

	// MissedKeepalives 连续错过多少次心跳判定连接失效
	MissedKeepalives int `json:"missed_keepalives"`

	// InitialRequestN 请求流/通道未指定时的初始请求数
	InitialRequestN uint32 `json:"initial_request_n"`

	// FragmentMTU 分片阈值，0 表示不分片
	FragmentMTU int `json:"fragment_mtu,omitempty"`

	// MaxReassembly 重组帧的最大字节数
	MaxReassembly int `json:"max_reassembly"`

	// HalfCloseTimeout 通道半关闭后的等待期限，0 表示无限
	HalfCloseTimeout Duration `json:"half_close_timeout,omitempty"`

	// CloseTimeout 关闭时等待写队列排空的期限
	CloseTimeout Duration `json:"close_timeout"`

	// CancelGrace 取消后继续丢弃在途帧的期限
	CancelGrace Duration `json:"cancel_grace"`

	// MetadataMIME / DataMIME SETUP 声明的 MIME 类型
	MetadataMIME string `json:"metadata_mime"`
	DataMIME     string `json:"data_mime"`

	// Lease 客户端请求租约
	Lease bool `json:"lease"`

	// LeaseTTL / LeaseRequests 服务端签发的租约，LeaseRequests 为 0 表示不支持租约
	LeaseTTL      Duration `json:"lease_ttl,omitempty"`
	LeaseRequests uint32   `json:"lease_requests,omitempty"`
}

// minMTU 分片阈值下限
const minMTU = 64

// DefaultConnectionConfig 返回默认连接配置
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		KeepaliveInterval: Duration(20 * time.Second),
		MaxLifetime:       Duration(90 * time.Second),
		MissedKeepalives:  2,
		InitialRequestN:   256,
		MaxReassembly:     16 << 20,
		CloseTimeout:      Duration(5 * time.Second),
		CancelGrace:       Duration(10 * time.Second),
		MetadataMIME:      "application/binary",
		DataMIME:          "application/binary",
		LeaseTTL:          Duration(30 * time.Second),
	}
}

// Validate 验证连接配置
func (c ConnectionConfig) Validate() error {
	if c.KeepaliveInterval < 0 {
		return errors.New("keepalive interval must not be negative")
	}
	if c.MaxLifetime <= 0 {
		return errors.New("max lifetime must be positive")
	}
	if c.MissedKeepalives <= 0 {
		return errors.New("missed keepalives must be positive")
	}
	if c.InitialRequestN == 0 || c.InitialRequestN > 0x7FFFFFFF {
		return errors.New("initial request n must be in [1, 2^31-1]")
	}
	if c.FragmentMTU != 0 && c.FragmentMTU < minMTU {
		return errors.New("fragment mtu must be 0 or at least 64")
	}
	if c.MaxReassembly <= 0 {
		return errors.New("max reassembly must be positive")
	}
	if c.HalfCloseTimeout < 0 || c.CloseTimeout < 0 || c.CancelGrace < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.MetadataMIME == "" || c.DataMIME == "" {
		return errors.New("mime types must not be empty")
	}
	if len(c.MetadataMIME) > 255 || len(c.DataMIME) > 255 {
		return errors.New("mime types must be at most 255 bytes")
	}
	if c.LeaseRequests > 0 && c.LeaseTTL <= 0 {
		return errors.New("lease ttl must be positive when lease requests is set")
	}
	return nil
}
