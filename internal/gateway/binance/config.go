package binance

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	RESTBaseURL string
	StreamURL   string
	HTTPTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string
	WSProxyURL   string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	out.StreamURL = strings.TrimSpace(out.StreamURL)
	if out.StreamURL == "" {
		out.StreamURL = "wss://fstream.binance.com/ws"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	out.WSProxyURL = strings.TrimSpace(out.WSProxyURL)
	return out
}

func (c Config) httpClient() (*http.Client, error) {
	client := &http.Client{Timeout: c.HTTPTimeout}
	if !c.ProxyEnabled || c.RESTProxyURL == "" {
		return client, nil
	}
	proxyURL, err := url.Parse(c.RESTProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REST proxy url: %w", err)
	}
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok || baseTransport == nil {
		return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	client.Transport = transport
	return client, nil
}

// wsDialer returns nil when no websocket proxy is configured.
func (c Config) wsDialer() (*websocket.Dialer, error) {
	if !c.ProxyEnabled {
		return nil, nil
	}
	raw := c.WSProxyURL
	if raw == "" {
		raw = c.RESTProxyURL
	}
	if raw == "" {
		return nil, nil
	}
	proxyURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket proxy url: %w", err)
	}
	d := *websocket.DefaultDialer
	d.Proxy = http.ProxyURL(proxyURL)
	return &d, nil
}
