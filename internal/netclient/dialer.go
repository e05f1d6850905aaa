// internal/netclient/dialer.go
package netclient

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// Dialer opens stream connections.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewDialer returns a direct dialer, or a SOCKS5 dialer when proxyAddr
// is set ("socks5://host:port", "socks://" is accepted as an alias).
func NewDialer(proxyAddr string) (Dialer, error) {
	direct := &net.Dialer{}
	if proxyAddr == "" {
		return direct, nil
	}

	u, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("netclient: proxy url: %w", err)
	}
	if u.Scheme == "socks" {
		u.Scheme = "socks5"
	}

	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("netclient: proxy: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("netclient: proxy %q does not support dial contexts", u.Scheme)
	}
	return cd, nil
}
