package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fincore/internal/envelope"
	"fincore/internal/errs"
	"fincore/internal/fetcher"
	"fincore/internal/logger"
	"fincore/internal/schema"
)

const maxWarnings = 100

type Config struct {
	QueueSize         int
	ReconnectAttempts int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	// OverrunWindow spaces buffer_overrun warnings.
	OverrunWindow time.Duration
	AuthTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.QueueSize <= 0 {
		out.QueueSize = 1024
	}
	if out.ReconnectAttempts <= 0 {
		out.ReconnectAttempts = 5
	}
	if out.BackoffInitial <= 0 {
		out.BackoffInitial = 500 * time.Millisecond
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 30 * time.Second
	}
	if out.OverrunWindow <= 0 {
		out.OverrunWindow = 10 * time.Second
	}
	if out.AuthTimeout <= 0 {
		out.AuthTimeout = 10 * time.Second
	}
	return out
}

type Options struct {
	Provider    string
	Standard    string
	Protocol    Protocol
	Dialer      Dialer
	Credentials fetcher.Credentials
	Symbols     []string
	// Limit is the buffer capacity.
	Limit    int
	Validate fetcher.RowValidator
	Sinks    []Sink
	Config   Config
	Metrics  *Metrics
}

type Stats struct {
	Received        int64  `json:"received"`
	Heartbeats      int64  `json:"heartbeats"`
	Dropped         int64  `json:"dropped"`
	Evicted         int64  `json:"evicted"`
	Invalid         int64  `json:"invalid"`
	Reconnects      int64  `json:"reconnects"`
	SubscribeErrors int64  `json:"subscribe_errors"`
	LastError       string `json:"last_error,omitempty"`
}

// Client is one streaming connection. Connect it once; Disconnect is
// idempotent and final.
type Client struct {
	id       string
	provider string
	standard string
	proto    Protocol
	dialer   Dialer
	creds    fetcher.Credentials
	validate fetcher.RowValidator
	cfg      Config
	metrics  *Metrics
	sinks    []Sink

	ring  *Ring
	queue chan schema.Record

	mu      sync.Mutex
	state   State
	conn    Conn
	cancel  context.CancelFunc
	subs    []string
	closing atomic.Bool

	writeMu sync.Mutex

	statsMu     sync.Mutex
	stats       Stats
	warnings    []envelope.Warning
	lastOverrun time.Time

	readDone  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Client {
	cfg := opts.Config.withDefaults()
	validate := opts.Validate
	if validate == nil {
		validate = func(r schema.Record) (schema.Record, error) { return r, nil }
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WSDialer{}
	}
	c := &Client{
		id:       uuid.NewString(),
		provider: opts.Provider,
		standard: opts.Standard,
		proto:    opts.Protocol,
		dialer:   dialer,
		creds:    opts.Credentials,
		validate: validate,
		cfg:      cfg,
		metrics:  opts.Metrics,
		sinks:    opts.Sinks,
		ring:     NewRing(opts.Limit),
		queue:    make(chan schema.Record, cfg.QueueSize),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.subs = addSymbols(nil, opts.Symbols)
	return c
}

func (c *Client) ID() string       { return c.id }
func (c *Client) Provider() string { return c.provider }
func (c *Client) Standard() string { return c.standard }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRunning is true while connected or reconnecting.
func (c *Client) IsRunning() bool {
	if c.closing.Load() {
		return false
	}
	s := c.State()
	return s == StateRunning || s == StateDegraded
}

// Symbols returns the current subscriptions in subscription order.
func (c *Client) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subs...)
}

func (c *Client) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Client) Warnings() []envelope.Warning {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return append([]envelope.Warning(nil), c.warnings...)
}

// Messages yields a snapshot of the buffer, oldest first.
func (c *Client) Messages() iter.Seq[schema.Record] {
	return func(yield func(schema.Record) bool) {
		for _, row := range c.ring.Snapshot() {
			if !yield(row) {
				return
			}
		}
	}
}

// Tail returns the rows buffered after seq and the next sequence.
func (c *Client) Tail(seq int64) ([]schema.Record, int64) {
	return c.ring.Since(seq)
}

// Describe is the serializable view used in envelopes and HTTP responses.
func (c *Client) Describe() map[string]any {
	return map[string]any{
		"id":       c.id,
		"provider": c.provider,
		"standard": c.standard,
		"state":    c.State().String(),
		"running":  c.IsRunning(),
		"symbols":  c.Symbols(),
		"buffered": c.ring.Len(),
		"limit":    c.ring.Cap(),
		"stats":    c.Stats(),
		"warnings": c.Warnings(),
	}
}

// Done is closed once the client has fully stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect dials, authenticates and starts ingestion. ctx bounds only the
// connection phase; ingestion runs until Disconnect or a terminal failure.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInit {
		state := c.state
		c.mu.Unlock()
		return errs.Permanent(nil, "stream %s: connect in state %s", c.id, state)
	}
	c.state = StateConnecting
	symbols := append([]string(nil), c.subs...)
	c.mu.Unlock()

	conn, err := c.open(ctx, symbols, true)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnauthorized {
			c.setState(StateUnauthorized)
		}
		c.setState(StateClosed)
		c.closeSinks()
		close(c.readDone)
		close(c.done)
		return c.tag(err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	if c.closing.Load() {
		c.state = StateClosed
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		c.closeSinks()
		close(c.readDone)
		close(c.done)
		return c.tag(errs.Permanent(nil, "stream %s: disconnected while connecting", c.id))
	}
	c.conn = conn
	c.cancel = cancel
	c.state = StateRunning
	c.mu.Unlock()
	c.metrics.clientUp(c.provider)
	logger.Infof("stream %s: %s %s running, symbols=%v", c.id, c.provider, c.standard, symbols)

	go c.writeLoop()
	go c.readLoop(runCtx)
	return nil
}

// open dials and performs the handshake. initial selects whether state
// transitions are reported; reconnects stay DEGRADED until they succeed.
func (c *Client) open(ctx context.Context, symbols []string, initial bool) (Conn, error) {
	conn, err := c.dialer.Dial(ctx, c.proto.URL(), c.proto.Header(c.creds))
	if err != nil {
		return nil, err
	}
	msgs, err := c.proto.Handshake(c.creds, symbols)
	if err != nil {
		_ = conn.Close()
		return nil, errs.Permanent(err, "build handshake")
	}
	if initial && c.proto.RequiresAuth() {
		c.setState(StateAuthenticating)
	}
	for _, m := range msgs {
		if err := c.writeTo(conn, m); err != nil {
			_ = conn.Close()
			return nil, errs.Transient(err, "send handshake")
		}
	}
	if !c.proto.RequiresAuth() {
		return conn, nil
	}
	if err := c.awaitAuth(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// awaitAuth reads until the vendor accepts or rejects the credentials. Data
// arriving first is ingested normally.
func (c *Client) awaitAuth(ctx context.Context, conn Conn) error {
	type result struct{ err error }
	out := make(chan result, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				out <- result{errs.Transient(err, "read during authentication")}
				return
			}
			frames, err := c.proto.Decode(msg)
			if err != nil {
				c.countInvalid(err)
				continue
			}
			for _, f := range frames {
				switch f.Kind {
				case FrameAuthOK:
					out <- result{}
					return
				case FrameAuthRejected:
					out <- result{errs.Unauthorized(c.provider, "authentication rejected: %s", f.Message)}
					return
				default:
					c.handleFrame(f)
				}
			}
		}
	}()
	timer := time.NewTimer(c.cfg.AuthTimeout)
	defer timer.Stop()
	select {
	case r := <-out:
		return r.err
	case <-timer.C:
		_ = conn.Close()
		return errs.Transient(nil, "no authentication response within %s", c.cfg.AuthTimeout)
	case <-ctx.Done():
		_ = conn.Close()
		return errs.FromContext(ctx.Err())
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.readDone)
	defer close(c.queue)
	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.closing.Load() {
				return
			}
			c.recordError(err)
			if !c.reconnect(ctx) {
				return
			}
			continue
		}
		frames, err := c.proto.Decode(msg)
		if err != nil {
			c.countInvalid(err)
			continue
		}
		for _, f := range frames {
			if f.Kind == FrameAuthRejected {
				logger.Warnf("stream %s: credentials rejected mid-stream: %s", c.id, f.Message)
				c.recordError(errors.New(f.Message))
				c.setState(StateUnauthorized)
				c.closeConn()
				return
			}
			c.handleFrame(f)
		}
	}
}

func (c *Client) handleFrame(f Frame) {
	switch f.Kind {
	case FrameHeartbeat:
		c.statsMu.Lock()
		c.stats.Heartbeats++
		c.statsMu.Unlock()
	case FrameData:
		for _, row := range f.Rows {
			c.ingest(row)
		}
	case FrameError:
		c.recordError(errors.New(f.Message))
		logger.Warnf("stream %s: vendor error: %s", c.id, f.Message)
	case FrameInfo:
		logger.Debugf("stream %s: %s", c.id, f.Message)
	}
}

func (c *Client) ingest(raw schema.Record) {
	row, err := c.validate(raw)
	if err != nil {
		c.countInvalid(err)
		return
	}
	if !c.subscribed(row.String("symbol")) {
		return
	}
	c.statsMu.Lock()
	c.stats.Received++
	c.statsMu.Unlock()
	c.metrics.message(c.provider)
	c.enqueue(row)
}

// enqueue never blocks: a full queue loses its oldest row.
func (c *Client) enqueue(row schema.Record) {
	select {
	case c.queue <- row:
		return
	default:
	}
	select {
	case <-c.queue:
		c.countDrop("queue")
		c.overrun("ingestion queue full (%d), dropped oldest message", c.cfg.QueueSize)
	default:
	}
	select {
	case c.queue <- row:
	default:
		c.countDrop("queue")
	}
}

func (c *Client) writeLoop() {
	defer close(c.done)
	for row := range c.queue {
		if c.ring.Push(row) {
			c.statsMu.Lock()
			c.stats.Evicted++
			c.statsMu.Unlock()
			c.metrics.drop(c.provider, "buffer")
			c.overrun("buffer limit %d reached, evicting oldest messages", c.ring.Cap())
		}
		for _, s := range c.sinks {
			if err := s.Write(row); err != nil {
				logger.Warnf("stream %s: sink write failed: %v", c.id, err)
			}
		}
	}
	c.closeSinks()
	c.setState(StateClosed)
	c.metrics.clientDown(c.provider)
	logger.Infof("stream %s: closed", c.id)
}

// reconnect retries the connection with exponential backoff. It returns
// false once the attempt budget is spent or the client is stopping.
func (c *Client) reconnect(ctx context.Context) bool {
	c.setState(StateDegraded)
	c.closeConn()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffInitial
	b.MaxInterval = c.cfg.BackoffMax
	conn, err := backoff.Retry(ctx, func() (Conn, error) {
		conn, err := c.open(ctx, c.Symbols(), false)
		if errs.KindOf(err) == errs.KindUnauthorized {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.ReconnectAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warnf("stream %s: reconnect failed, retrying in %s: %v", c.id, wait, err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil || c.closing.Load() {
			return false
		}
		if errs.KindOf(err) == errs.KindUnauthorized {
			c.setState(StateUnauthorized)
		}
		c.recordError(err)
		c.warn(envelope.Warning{
			Category: envelope.CategoryPartialFailure,
			Message:  fmt.Sprintf("stream stopped after %d reconnect attempts: %v", c.cfg.ReconnectAttempts, err),
		})
		return false
	}

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.state = StateRunning
	c.mu.Unlock()
	c.statsMu.Lock()
	c.stats.Reconnects++
	c.statsMu.Unlock()
	c.metrics.reconnect(c.provider)
	logger.Infof("stream %s: reconnected", c.id)
	return true
}

// Subscribe adds symbols. A connected client sends the change at once;
// otherwise it is applied on connect.
func (c *Client) Subscribe(symbols ...string) error {
	c.mu.Lock()
	before := len(c.subs)
	c.subs = addSymbols(c.subs, symbols)
	added := append([]string(nil), c.subs[before:]...)
	conn := c.liveConnLocked()
	c.mu.Unlock()
	if len(added) == 0 || conn == nil {
		return nil
	}
	msgs, err := c.proto.Subscribe(c.creds, added)
	if err != nil {
		return c.subscribeErr(err, "subscribe")
	}
	for _, m := range msgs {
		if err := c.writeTo(conn, m); err != nil {
			return c.subscribeErr(err, "subscribe")
		}
	}
	logger.Infof("stream %s: subscribed %v", c.id, added)
	return nil
}

func (c *Client) Unsubscribe(symbols ...string) error {
	c.mu.Lock()
	var removed []string
	c.subs, removed = removeSymbols(c.subs, symbols)
	conn := c.liveConnLocked()
	c.mu.Unlock()
	if len(removed) == 0 || conn == nil {
		return nil
	}
	msgs, err := c.proto.Unsubscribe(c.creds, removed)
	if err != nil {
		return c.subscribeErr(err, "unsubscribe")
	}
	for _, m := range msgs {
		if err := c.writeTo(conn, m); err != nil {
			return c.subscribeErr(err, "unsubscribe")
		}
	}
	logger.Infof("stream %s: unsubscribed %v", c.id, removed)
	return nil
}

// Disconnect stops ingestion, drains queued rows into the buffer, closes
// the socket and the sinks. Calling it again is a no-op.
func (c *Client) Disconnect() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.mu.Lock()
		cancel := c.cancel
		started := c.state != StateInit
		if !started {
			c.state = StateClosed
		}
		c.mu.Unlock()
		if !started {
			c.closeSinks()
			close(c.readDone)
			close(c.done)
			return
		}
		if cancel != nil {
			cancel()
		}
		c.closeConn()
		<-c.readDone
		<-c.done
	})
	return nil
}

func (c *Client) subscribed(symbol string) bool {
	symbol = normalizeSymbol(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		if s == symbol {
			return true
		}
	}
	return false
}

func (c *Client) currentConn() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) liveConnLocked() Conn {
	if c.state == StateRunning && !c.closing.Load() {
		return c.conn
	}
	return nil
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
}

func (c *Client) writeTo(conn Conn, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	if c.state != s {
		logger.Debugf("stream %s: %s -> %s", c.id, c.state, s)
	}
	c.state = s
}

func (c *Client) closeSinks() {
	for _, s := range c.sinks {
		if err := s.Close(); err != nil {
			logger.Warnf("stream %s: close sink: %v", c.id, err)
		}
	}
	c.sinks = nil
}

func (c *Client) overrun(format string, args ...any) {
	c.statsMu.Lock()
	now := time.Now()
	if !c.lastOverrun.IsZero() && now.Sub(c.lastOverrun) < c.cfg.OverrunWindow {
		c.statsMu.Unlock()
		return
	}
	c.lastOverrun = now
	c.statsMu.Unlock()
	c.warn(envelope.Warning{Category: envelope.CategoryBufferOverrun, Message: fmt.Sprintf(format, args...)})
}

func (c *Client) warn(w envelope.Warning) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if len(c.warnings) >= maxWarnings {
		c.warnings = c.warnings[1:]
	}
	c.warnings = append(c.warnings, w)
}

func (c *Client) countDrop(reason string) {
	c.statsMu.Lock()
	c.stats.Dropped++
	c.statsMu.Unlock()
	c.metrics.drop(c.provider, reason)
}

func (c *Client) countInvalid(err error) {
	c.statsMu.Lock()
	c.stats.Invalid++
	c.stats.LastError = err.Error()
	c.statsMu.Unlock()
	c.metrics.drop(c.provider, "invalid")
	logger.Debugf("stream %s: discarded message: %v", c.id, err)
}

func (c *Client) recordError(err error) {
	if err == nil {
		return
	}
	c.statsMu.Lock()
	c.stats.LastError = err.Error()
	c.statsMu.Unlock()
}

func (c *Client) subscribeErr(err error, op string) error {
	c.statsMu.Lock()
	c.stats.SubscribeErrors++
	c.stats.LastError = err.Error()
	c.statsMu.Unlock()
	return c.tag(errs.Transient(err, "%s", op))
}

func (c *Client) tag(err error) error {
	if e, ok := errs.As(err); ok {
		return e.WithProvider(c.provider).WithStandard(c.standard)
	}
	return err
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// addSymbols appends the new symbols in order, skipping duplicates. Each
// argument may itself be comma-separated.
func addSymbols(subs []string, symbols []string) []string {
	seen := make(map[string]bool, len(subs))
	for _, s := range subs {
		seen[s] = true
	}
	for _, raw := range symbols {
		for _, part := range strings.Split(raw, ",") {
			s := normalizeSymbol(part)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			subs = append(subs, s)
		}
	}
	return subs
}

func removeSymbols(subs []string, symbols []string) (kept, removed []string) {
	drop := make(map[string]bool)
	for _, raw := range symbols {
		for _, part := range strings.Split(raw, ",") {
			if s := normalizeSymbol(part); s != "" {
				drop[s] = true
			}
		}
	}
	for _, s := range subs {
		if drop[s] {
			removed = append(removed, s)
			continue
		}
		kept = append(kept, s)
	}
	return kept, removed
}
