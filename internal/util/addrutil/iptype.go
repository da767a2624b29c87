// Package addrutil 提供监听与拨号地址的解析工具
//
// 支持的地址格式与各传输一致：
//
//	127.0.0.1:7878                    tcp / quic
//	ws://127.0.0.1:7879/rsocket       websocket
//	<nodeID>@127.0.0.1:7881           p2p
//	p2p://<nodeID>@127.0.0.1:7881
package addrutil

import (
	"net"
	"net/url"
	"strings"
)

// ============================================================================
//                              IP 类型判断工具
// ============================================================================

// IsLoopbackAddr 判断地址是否是回环地址
func IsLoopbackAddr(addr string) bool {
	ip := ExtractIP(addr)
	return ip != nil && ip.IsLoopback()
}

// IsPrivateAddr 判断地址是否是私网地址
//
// 私网地址范围：
//   - 10.0.0.0/8
//   - 172.16.0.0/12
//   - 192.168.0.0/16
//   - fc00::/7 (IPv6 ULA)
//   - fe80::/10 (IPv6 链路本地)
func IsPrivateAddr(addr string) bool {
	ip := ExtractIP(addr)
	return ip != nil && (ip.IsPrivate() || ip.IsLinkLocalUnicast())
}

// IsPublicAddr 判断地址是否是公网地址
func IsPublicAddr(addr string) bool {
	ip := ExtractIP(addr)
	return ip != nil && ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback()
}

// IsUnspecifiedAddr 判断地址是否绑定在全部网卡（0.0.0.0 / :: / 空主机）
func IsUnspecifiedAddr(addr string) bool {
	host, _, err := net.SplitHostPort(HostPort(addr))
	if err != nil {
		host = addr
	} else if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}

// Host 取出地址中的主机部分，无法解析时返回空串
func Host(addr string) string {
	hp := HostPort(addr)
	host, _, err := net.SplitHostPort(hp)
	if err != nil {
		return ""
	}
	return host
}

// HostPort 去掉 scheme、路径与 nodeID 前缀，返回 host:port
func HostPort(addr string) string {
	if strings.Contains(addr, "://") {
		if u, err := url.Parse(addr); err == nil {
			addr = u.Host
		}
	}
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		addr = addr[i+1:]
	}
	return addr
}

// ExtractIP 从地址中提取 IP，主机名或无法解析时返回 nil
func ExtractIP(addr string) net.IP {
	if addr == "" {
		return nil
	}
	if host := Host(addr); host != "" {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

// AddrType 返回地址类型描述
//
// 返回值：
//   - "loopback" - 回环地址
//   - "private" - 私网地址
//   - "public" - 公网地址
//   - "any" - 绑定全部网卡
//   - "dns" - 主机名（无法判断 IP 类型）
//   - "unknown" - 未知类型
func AddrType(addr string) string {
	if addr == "" {
		return "unknown"
	}
	if IsUnspecifiedAddr(addr) {
		return "any"
	}
	if IsLoopbackAddr(addr) {
		return "loopback"
	}
	if IsPrivateAddr(addr) {
		return "private"
	}
	if IsPublicAddr(addr) {
		return "public"
	}
	if Host(addr) != "" {
		return "dns"
	}
	return "unknown"
}

// ============================================================================
//                              可拨号地址
// ============================================================================

// DialableAddrs 把监听地址展开为可拨号地址
//
// 绑定全部网卡时，用本机各网卡的单播地址替换主机部分；否则原样返回。
func DialableAddrs(listen string) []string {
	if !IsUnspecifiedAddr(listen) {
		return []string{listen}
	}
	_, port, err := net.SplitHostPort(HostPort(listen))
	if err != nil {
		return []string{listen}
	}
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return []string{listen}
	}
	var out []string
	for _, a := range ifaces {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLinkLocalUnicast() || ipn.IP.IsMulticast() {
			continue
		}
		out = append(out, net.JoinHostPort(ipn.IP.String(), port))
	}
	if len(out) == 0 {
		return []string{listen}
	}
	return out
}
