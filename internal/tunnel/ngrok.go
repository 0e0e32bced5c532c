package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	ngroklib "golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
)

// NgrokTunnel implements Tunnel using ngrok. The hub serves HTTP directly
// on the ngrok listener, so the localAddr passed to Start is informational.
type NgrokTunnel struct {
	authToken string
	domain    string
	listener  net.Listener
	url       string
}

// NewNgrok creates an ngrok tunnel. domain is optional; without one ngrok
// assigns a random hostname.
func NewNgrok(authToken, domain string) *NgrokTunnel {
	return &NgrokTunnel{authToken: authToken, domain: domain}
}

// Start opens the tunnel and returns its public URL.
func (n *NgrokTunnel) Start(ctx context.Context, localAddr string) (string, error) {
	if n.authToken == "" {
		return "", fmt.Errorf("ngrok auth token is required (set tunnel.authtoken in config or BYTEBOT_NGROK_AUTHTOKEN env var)")
	}

	slog.Info("starting ngrok tunnel", "local_addr", localAddr, "domain", n.domain)

	var endpoint ngrokconfig.Tunnel
	if n.domain != "" {
		endpoint = ngrokconfig.HTTPEndpoint(ngrokconfig.WithDomain(n.domain))
	} else {
		endpoint = ngrokconfig.HTTPEndpoint()
	}

	listener, err := ngroklib.Listen(ctx, endpoint, ngroklib.WithAuthtoken(n.authToken))
	if err != nil {
		return "", fmt.Errorf("creating ngrok tunnel: %w", err)
	}

	n.listener = listener

	addr := listener.Addr().String()
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "https://" + addr
	}
	n.url = addr

	slog.Info("ngrok tunnel established", "public_url", n.url)
	return n.url, nil
}

// Close shuts down the tunnel listener.
func (n *NgrokTunnel) Close() error {
	if n.listener == nil {
		return nil
	}

	slog.Info("closing ngrok tunnel", "public_url", n.url)
	if err := n.listener.Close(); err != nil {
		return fmt.Errorf("closing ngrok tunnel: %w", err)
	}
	n.listener = nil
	n.url = ""
	return nil
}

// PublicURL returns the public URL of the tunnel.
func (n *NgrokTunnel) PublicURL() string {
	return n.url
}

// Listener returns the tunnel's net.Listener for serving HTTP.
func (n *NgrokTunnel) Listener() net.Listener {
	return n.listener
}
