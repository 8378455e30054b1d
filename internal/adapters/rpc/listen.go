package rpc

import (
	"fmt"
	"net"
	"strings"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// ResolveListenAddr accepts host:port or a TCP multiaddr and returns host:port.
func ResolveListenAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "/") {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return "", fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
		return addr, nil
	}
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen multiaddr %q: %w", addr, err)
	}
	netAddr, err := manet.ToNetAddr(maddr)
	if err != nil {
		return "", fmt.Errorf("unsupported listen multiaddr %q: %w", addr, err)
	}
	tcp, ok := netAddr.(*net.TCPAddr)
	if !ok {
		return "", fmt.Errorf("listen multiaddr %q is not tcp", addr)
	}
	return tcp.String(), nil
}
