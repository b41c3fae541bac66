package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/envelope"
	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/pkg/jsonutil"
	"fincore/internal/schema"
)

// testProtocol speaks a small JSON dialect:
// client ops {"op":"auth"|"sub"|"unsub","symbols":[...]},
// vendor frames {"type":"ok"|"denied"|"hb"|"row","symbol":..,"price":..}.
type testProtocol struct {
	url  string
	auth bool
}

type testOp struct {
	Op      string   `json:"op"`
	Token   string   `json:"token,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

type testFrame struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol,omitempty"`
	Price  float64 `json:"price,omitempty"`
}

func (p *testProtocol) URL() string                            { return p.url }
func (p *testProtocol) Header(fetcher.Credentials) http.Header { return http.Header{} }
func (p *testProtocol) RequiresAuth() bool                     { return p.auth }

func (p *testProtocol) Handshake(creds fetcher.Credentials, symbols []string) ([][]byte, error) {
	var out [][]byte
	if p.auth {
		msg, _ := jsonutil.Marshal(testOp{Op: "auth", Token: creds.Get("token")})
		out = append(out, msg)
	}
	sub, err := p.Subscribe(creds, symbols)
	return append(out, sub...), err
}

func (p *testProtocol) Subscribe(_ fetcher.Credentials, symbols []string) ([][]byte, error) {
	msg, err := jsonutil.Marshal(testOp{Op: "sub", Symbols: symbols})
	return [][]byte{msg}, err
}

func (p *testProtocol) Unsubscribe(_ fetcher.Credentials, symbols []string) ([][]byte, error) {
	msg, err := jsonutil.Marshal(testOp{Op: "unsub", Symbols: symbols})
	return [][]byte{msg}, err
}

func (p *testProtocol) Decode(msg []byte) ([]Frame, error) {
	var f testFrame
	if err := jsonutil.Unmarshal(msg, &f); err != nil {
		return nil, err
	}
	switch f.Type {
	case "ok":
		return []Frame{{Kind: FrameAuthOK}}, nil
	case "denied":
		return []Frame{{Kind: FrameAuthRejected, Message: "bad token"}}, nil
	case "hb":
		return []Frame{{Kind: FrameHeartbeat}}, nil
	default:
		return []Frame{{Kind: FrameData, Rows: []schema.Record{{"symbol": f.Symbol, "price": f.Price}}}}, nil
	}
}

type vendorConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (v *vendorConn) send(t *testing.T, frames ...testFrame) {
	t.Helper()
	require.NoError(t, v.write(frames...))
}

func (v *vendorConn) write(frames ...testFrame) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, f := range frames {
		msg, err := jsonutil.Marshal(f)
		if err != nil {
			return err
		}
		if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	return nil
}

func (v *vendorConn) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.conn.Close()
}

// fakeVendor is a websocket server that records client ops.
type fakeVendor struct {
	srv      *httptest.Server
	conns    chan *vendorConn
	ops      chan testOp
	token    string
	refusing atomic.Bool
}

func newFakeVendor(t *testing.T, token string) *fakeVendor {
	t.Helper()
	v := &fakeVendor{
		conns: make(chan *vendorConn, 8),
		ops:   make(chan testOp, 64),
		token: token,
	}
	upgrader := websocket.Upgrader{}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.refusing.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		vc := &vendorConn{conn: conn}
		v.conns <- vc
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var op testOp
			if jsonutil.Unmarshal(msg, &op) != nil {
				continue
			}
			if op.Op == "auth" {
				reply := testFrame{Type: "ok"}
				if op.Token != v.token {
					reply.Type = "denied"
				}
				_ = vc.write(reply)
			}
			v.ops <- op
		}
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVendor) url() string {
	return "ws" + strings.TrimPrefix(v.srv.URL, "http")
}

func (v *fakeVendor) nextConn(t *testing.T) *vendorConn {
	t.Helper()
	select {
	case c := <-v.conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func (v *fakeVendor) nextOp(t *testing.T, op string) testOp {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-v.ops:
			if got.Op == op {
				return got
			}
		case <-deadline:
			t.Fatalf("no %s op", op)
			return testOp{}
		}
	}
}

// gatedDialer holds each dial until release is closed.
type gatedDialer struct {
	dialing chan struct{}
	release chan struct{}
	conn    Conn
}

func (d *gatedDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	close(d.dialing)
	<-d.release
	conn, err := WSDialer{}.Dial(ctx, url, header)
	d.conn = conn
	return conn, err
}

func newTestClient(v *fakeVendor, auth bool, opts Options) *Client {
	opts.Provider = "test"
	opts.Standard = "CryptoQuote"
	opts.Protocol = &testProtocol{url: v.url(), auth: auth}
	if opts.Credentials == nil {
		opts.Credentials = fetcher.Credentials{"token": "good"}
	}
	return New(opts)
}

func bufferedSymbols(c *Client) []string {
	var out []string
	for row := range c.Messages() {
		out = append(out, row.String("symbol"))
	}
	return out
}

func TestClient_SubscriptionChurn(t *testing.T) {
	v := newFakeVendor(t, "good")
	c := newTestClient(v, false, Options{Symbols: []string{"BTCUSD"}, Limit: 10})

	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()
	vc := v.nextConn(t)
	assert.Equal(t, []string{"BTCUSD"}, v.nextOp(t, "sub").Symbols)

	require.NoError(t, c.Subscribe("ETHUSD"))
	assert.Equal(t, []string{"ETHUSD"}, v.nextOp(t, "sub").Symbols)
	require.NoError(t, c.Unsubscribe("BTCUSD"))
	assert.Equal(t, []string{"BTCUSD"}, v.nextOp(t, "unsub").Symbols)
	assert.True(t, c.IsRunning())

	vc.send(t,
		testFrame{Type: "row", Symbol: "BTCUSD", Price: 60000},
		testFrame{Type: "row", Symbol: "ETHUSD", Price: 3000},
		testFrame{Type: "hb"},
		testFrame{Type: "row", Symbol: "BTCUSD", Price: 60001},
		testFrame{Type: "row", Symbol: "ETHUSD", Price: 3001},
	)

	require.Eventually(t, func() bool { return c.ring.Len() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ETHUSD", "ETHUSD"}, bufferedSymbols(c))
	assert.Equal(t, []string{"ETHUSD"}, c.Symbols())
	assert.True(t, c.IsRunning())
	assert.Zero(t, c.Stats().Reconnects)
	require.Eventually(t, func() bool { return c.Stats().Heartbeats == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Disconnect())
	assert.Equal(t, StateClosed, c.State())
	assert.False(t, c.IsRunning())
	require.NoError(t, c.Disconnect())
	assert.Len(t, bufferedSymbols(c), 2)
}

func TestClient_Authentication(t *testing.T) {
	v := newFakeVendor(t, "good")

	c := newTestClient(v, true, Options{Symbols: []string{"BTCUSD"}})
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StateRunning, c.State())
	require.NoError(t, c.Disconnect())

	bad := newTestClient(v, true, Options{
		Symbols:     []string{"BTCUSD"},
		Credentials: fetcher.Credentials{"token": "wrong"},
	})
	err := bad.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Equal(t, StateClosed, bad.State())
	assert.False(t, bad.IsRunning())
	assert.NotContains(t, err.Error(), "wrong")
}

func TestClient_ConnectTwice(t *testing.T) {
	v := newFakeVendor(t, "good")
	c := newTestClient(v, false, Options{Symbols: []string{"BTCUSD"}})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	err := c.Connect(context.Background())
	assert.Equal(t, errs.KindPermanent, errs.KindOf(err))
}

func TestClient_BufferOverrun(t *testing.T) {
	v := newFakeVendor(t, "good")
	c := newTestClient(v, false, Options{Symbols: []string{"BTCUSD"}, Limit: 2})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()
	vc := v.nextConn(t)

	for i := range 5 {
		vc.send(t, testFrame{Type: "row", Symbol: "BTCUSD", Price: float64(i + 1)})
	}

	require.Eventually(t, func() bool { return c.Stats().Evicted == 3 }, 5*time.Second, 10*time.Millisecond)
	var prices []float64
	for row := range c.Messages() {
		price, _ := row.Float("price")
		prices = append(prices, price)
	}
	assert.Equal(t, []float64{4, 5}, prices)

	overruns := 0
	for _, w := range c.Warnings() {
		if w.Category == envelope.CategoryBufferOverrun {
			overruns++
		}
	}
	assert.Equal(t, 1, overruns)
	assert.True(t, c.IsRunning())
}

func TestClient_QueueDropsOldest(t *testing.T) {
	c := New(Options{Config: Config{QueueSize: 2}})
	for i := range 3 {
		c.enqueue(schema.Record{"n": i})
	}

	var got []int
	for range 2 {
		got = append(got, (<-c.queue)["n"].(int))
	}
	assert.Equal(t, []int{1, 2}, got)
	assert.EqualValues(t, 1, c.Stats().Dropped)
	require.Len(t, c.Warnings(), 1)
	assert.Equal(t, envelope.CategoryBufferOverrun, c.Warnings()[0].Category)
}

func TestClient_Reconnects(t *testing.T) {
	v := newFakeVendor(t, "good")
	c := newTestClient(v, false, Options{
		Symbols: []string{"BTCUSD", "ETHUSD"},
		Config:  Config{BackoffInitial: 10 * time.Millisecond, BackoffMax: 50 * time.Millisecond},
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()
	first := v.nextConn(t)
	v.nextOp(t, "sub")

	first.close()

	second := v.nextConn(t)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, v.nextOp(t, "sub").Symbols)
	require.Eventually(t, func() bool { return c.Stats().Reconnects == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateRunning, c.State())

	second.send(t, testFrame{Type: "row", Symbol: "ETHUSD", Price: 1})
	require.Eventually(t, func() bool { return c.ring.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	v := newFakeVendor(t, "good")
	c := newTestClient(v, false, Options{
		Symbols: []string{"BTCUSD"},
		Config: Config{
			ReconnectAttempts: 2,
			BackoffInitial:    5 * time.Millisecond,
			BackoffMax:        10 * time.Millisecond,
		},
	})
	require.NoError(t, c.Connect(context.Background()))
	vc := v.nextConn(t)

	v.refusing.Store(true)
	vc.close()

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
	assert.Equal(t, StateClosed, c.State())
	assert.False(t, c.IsRunning())
	assert.NotEmpty(t, c.Stats().LastError)
	assert.True(t, slices.ContainsFunc(c.Warnings(), func(w envelope.Warning) bool {
		return w.Category == envelope.CategoryPartialFailure
	}))
	require.NoError(t, c.Disconnect())
}

func TestClient_DisconnectBeforeConnect(t *testing.T) {
	c := New(Options{Protocol: &testProtocol{}})
	require.NoError(t, c.Disconnect())
	assert.Equal(t, StateClosed, c.State())
	assert.Error(t, c.Connect(context.Background()))
}

func TestClient_Describe(t *testing.T) {
	c := New(Options{Provider: "test", Standard: "CryptoQuote", Symbols: []string{"btcusd, ethusd", "BTCUSD"}, Limit: 5})
	d := c.Describe()

	assert.Equal(t, c.ID(), d["id"])
	assert.Equal(t, "INIT", d["state"])
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, d["symbols"])
	assert.Equal(t, 5, d["limit"])
}

func TestSymbolSets(t *testing.T) {
	subs := addSymbols(nil, []string{"a,b", " B ", "c"})
	assert.Equal(t, []string{"A", "B", "C"}, subs)

	kept, removed := removeSymbols(subs, []string{"b", "z"})
	assert.Equal(t, []string{"A", "C"}, kept)
	assert.Equal(t, []string{"B"}, removed)
}

func TestClient_DisconnectWhileConnecting(t *testing.T) {
	v := newFakeVendor(t, "good")
	d := &gatedDialer{dialing: make(chan struct{}), release: make(chan struct{})}
	c := newTestClient(v, false, Options{Symbols: []string{"BTCUSD"}, Limit: 10, Dialer: d})

	connectErr := make(chan error, 1)
	go func() { connectErr <- c.Connect(context.Background()) }()
	<-d.dialing

	disconnected := make(chan struct{})
	go func() {
		_ = c.Disconnect()
		close(disconnected)
	}()
	require.Eventually(t, c.closing.Load, time.Second, time.Millisecond)
	close(d.release)

	select {
	case err := <-connectErr:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not return")
	}
	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect hung")
	}
	assert.Equal(t, StateClosed, c.State())
	assert.False(t, c.IsRunning())
	require.NotNil(t, d.conn)
	assert.Error(t, d.conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"sub"}`)), "socket closed")
}
