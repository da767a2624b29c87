// Package main 提供 rsocket 客户端命令行工具
//
// 使用方法:
//
//	rsocket-client -transport tcp -addr 127.0.0.1:7878 -pattern rr -data ping
//	rsocket-client -transport ws -addr ws://127.0.0.1:7879/rsocket -pattern stream -data 10
//	rsocket-client -transport p2p -addr <nodeID>@127.0.0.1:7881 -pattern channel -data a,b,c
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dep2p/go-rsocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	transportName := flag.String("transport", "tcp", "传输 (tcp/ws/quic/p2p)")
	addr := flag.String("addr", "127.0.0.1:7878", "服务端地址")
	pattern := flag.String("pattern", "rr", "交互模式 (fnf/push/rr/stream/channel)")
	data := flag.String("data", "ping", "请求数据；channel 模式下逗号分隔多项")
	metadata := flag.String("metadata", "", "请求元数据")
	n := flag.Uint("n", 0, "初始请求数，0 表示按配置")
	count := flag.Int("count", 1, "重复次数")
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时")
	flag.Parse()

	ct, err := clientTransport(*transportName, *addr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	opts := []rsocket.Option{}
	if *n > 0 {
		opts = append(opts, rsocket.WithInitialRequestN(uint32(*n)))
	}
	c, err := rsocket.Connect(ctx, ct, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	fmt.Printf("已连接 %s (%s)\n", c.RemoteAddr(), *transportName)

	for i := 0; i < *count; i++ {
		start := time.Now()
		if err := do(ctx, c, *pattern, *data, *metadata); err != nil {
			return err
		}
		fmt.Printf("── 第 %d 次完成，用时 %s\n", i+1, time.Since(start).Round(time.Microsecond))
	}
	return nil
}

func clientTransport(name, addr string) (*rsocket.ClientTransport, error) {
	switch name {
	case "tcp":
		return rsocket.TCPClientTransport(addr), nil
	case "ws", "websocket":
		return rsocket.WebSocketClientTransport(addr), nil
	case "quic":
		return rsocket.QUICClientTransport(addr), nil
	case "p2p":
		return rsocket.P2PClientTransport(addr, nil), nil
	default:
		return nil, fmt.Errorf("未知传输: %s", name)
	}
}

func do(ctx context.Context, c *rsocket.Client, pattern, data, metadata string) error {
	p := request(data, metadata)
	switch pattern {
	case "fnf":
		return c.FireAndForget(ctx, p)
	case "push":
		return c.MetadataPush(ctx, rsocket.NewPayload(nil, []byte(metadata)))
	case "rr":
		resp, err := c.RequestResponse(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("← %s\n", resp)
		return nil
	case "stream":
		return c.RequestStreamWithCallback(ctx, p, printItem, printComplete)
	case "channel":
		var inputs []rsocket.Payload
		for _, s := range strings.Split(data, ",") {
			inputs = append(inputs, request(s, metadata))
		}
		return c.RequestChannelWithCallback(ctx, inputs, printItem, printComplete)
	default:
		return fmt.Errorf("未知交互模式: %s", pattern)
	}
}

func request(data, metadata string) rsocket.Payload {
	b := rsocket.Builder().SetDataUTF8(data)
	if metadata != "" {
		b.SetMetadataUTF8(metadata)
	}
	return b.Build()
}

func printItem(p rsocket.Payload, index int) {
	fmt.Printf("← [%d] %s\n", index, p)
}

func printComplete(total int, ok bool, err error) {
	if ok {
		fmt.Printf("完成，共 %d 项\n", total)
		return
	}
	fmt.Printf("终止于第 %d 项: %v\n", total, err)
}
