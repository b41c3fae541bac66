package stream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fincore/internal/logger"
	"fincore/internal/pkg/jsonutil"
	"fincore/internal/schema"
)

const (
	peerBuffer   = 256
	writeTimeout = 5 * time.Second
)

// Broadcaster re-publishes rows to every websocket peer connected to it.
// A slow peer loses rows rather than slowing the stream.
type Broadcaster struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  map[*peer]struct{}
	closed bool
	wg     sync.WaitGroup
}

type peer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewBroadcaster listens on addr and serves peers at path.
func NewBroadcaster(addr, path string) (*Broadcaster, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	b := &Broadcaster{
		ln:    ln,
		peers: make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, b.serve)
	b.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("broadcast %s: %v", ln.Addr(), err)
		}
	}()
	return b, nil
}

// Addr is the bound listen address.
func (b *Broadcaster) Addr() string {
	return b.ln.Addr().String()
}

// Peers is the number of connected peers.
func (b *Broadcaster) Peers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.peers)
}

func (b *Broadcaster) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn, send: make(chan []byte, peerBuffer)}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	b.peers[p] = struct{}{}
	b.wg.Add(2)
	b.mu.Unlock()

	go b.writePeer(p)
	go b.readPeer(p)
}

func (b *Broadcaster) writePeer(p *peer) {
	defer b.wg.Done()
	for msg := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.drop(p)
			_ = p.conn.Close()
			for range p.send {
			}
			return
		}
	}
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = p.conn.Close()
}

// readPeer discards inbound frames; it exists to notice disconnects.
func (b *Broadcaster) readPeer(p *peer) {
	defer b.wg.Done()
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			b.drop(p)
			return
		}
	}
}

func (b *Broadcaster) drop(p *peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.peers[p]; ok {
		delete(b.peers, p)
		close(p.send)
	}
}

func (b *Broadcaster) Write(row schema.Record) error {
	msg, err := jsonutil.Marshal(row)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.peers {
		select {
		case p.send <- msg:
		default:
		}
	}
	return nil
}

func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for p := range b.peers {
		delete(b.peers, p)
		close(p.send)
	}
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := b.srv.Shutdown(ctx)
	b.wg.Wait()
	return err
}
