// Package stream runs vendor websocket feeds: connection state, reconnects,
// subscription changes, bounded buffering and optional re-publishing.
package stream

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/pkg/redact"
	"fincore/internal/schema"
)

type FrameKind int

const (
	FrameData FrameKind = iota
	FrameHeartbeat
	FrameAuthOK
	FrameAuthRejected
	FrameInfo
	FrameError
)

// Frame is one decoded vendor message.
type Frame struct {
	Kind    FrameKind
	Rows    []schema.Record
	Message string
}

// Protocol is a vendor's websocket dialect. Implementations may keep state
// (a subscription id, say) and must be safe for one reader and one writer.
type Protocol interface {
	URL() string
	Header(creds fetcher.Credentials) http.Header
	// Handshake returns the messages sent right after dialing. They carry
	// authentication and the subscription for symbols.
	Handshake(creds fetcher.Credentials, symbols []string) ([][]byte, error)
	Subscribe(creds fetcher.Credentials, symbols []string) ([][]byte, error)
	Unsubscribe(creds fetcher.Credentials, symbols []string) ([][]byte, error)
	Decode(msg []byte) ([]Frame, error)
	// RequiresAuth makes Connect wait for FrameAuthOK or FrameAuthRejected.
	RequiresAuth() bool
}

// Conn is the subset of *websocket.Conn the client uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WSDialer dials with gorilla/websocket.
type WSDialer struct {
	Dialer *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errs.Unauthorized("", "websocket handshake rejected with HTTP %d", resp.StatusCode)
		}
		e := errs.Transient(err, "dial websocket")
		e.Request = "GET " + redact.URL(url)
		return nil, e
	}
	return conn, nil
}
