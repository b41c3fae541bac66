package stream

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"fincore/internal/logger"
	"fincore/internal/schema"
	"fincore/internal/store"
)

// Sink receives every accepted row after it is buffered. Writes happen on
// the client's writer goroutine and should not block for long.
type Sink interface {
	Write(row schema.Record) error
	Close() error
}

// LogSink appends rows to a StreamLog under one client id.
type LogSink struct {
	log      store.StreamLog
	clientID string
	standard string
	timeout  time.Duration
	owned    bool
}

// NewLogSink writes to log. When owned is set, Close closes log as well.
func NewLogSink(log store.StreamLog, clientID, standard string, owned bool) *LogSink {
	return &LogSink{log: log, clientID: clientID, standard: standard, timeout: 5 * time.Second, owned: owned}
}

func (s *LogSink) Write(row schema.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.log.Append(ctx, s.clientID, s.standard, []schema.Record{row})
}

func (s *LogSink) Close() error {
	if s.owned {
		return s.log.Close()
	}
	return nil
}

// BroadcastTarget is a parsed broadcast address.
type BroadcastTarget struct {
	Scheme  string
	Addr    string
	Path    string
	Subject string
}

// ParseBroadcast accepts ws://host:port/path, nats://host:port/subject or a
// bare host:port, which means a websocket server at "/".
func ParseBroadcast(raw string) (BroadcastTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BroadcastTarget{}, fmt.Errorf("empty broadcast address")
	}
	if !strings.Contains(raw, "://") {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return BroadcastTarget{}, fmt.Errorf("broadcast address %q: %w", raw, err)
		}
		return BroadcastTarget{Scheme: "ws", Addr: raw, Path: "/"}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return BroadcastTarget{}, fmt.Errorf("broadcast address %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws":
		path := u.Path
		if path == "" {
			path = "/"
		}
		return BroadcastTarget{Scheme: "ws", Addr: u.Host, Path: path}, nil
	case "nats":
		return BroadcastTarget{
			Scheme:  "nats",
			Addr:    "nats://" + u.Host,
			Subject: strings.Trim(u.Path, "/"),
		}, nil
	default:
		return BroadcastTarget{}, fmt.Errorf("broadcast address %q: unsupported scheme %q", raw, u.Scheme)
	}
}

// SinkOptions selects the optional outputs of one client.
type SinkOptions struct {
	ClientID string
	Standard string
	// RecordLog, when set, receives every row.
	RecordLog store.StreamLog
	// OwnLog makes the sink close RecordLog on shutdown.
	OwnLog bool
	// Broadcast is a ws:// or nats:// address, or empty.
	Broadcast string
}

// NewSinks builds the sinks named by opts. On error every sink already
// opened is closed.
func NewSinks(opts SinkOptions) ([]Sink, error) {
	var sinks []Sink
	if opts.RecordLog != nil {
		sinks = append(sinks, NewLogSink(opts.RecordLog, opts.ClientID, opts.Standard, opts.OwnLog))
	}
	if opts.Broadcast == "" {
		return sinks, nil
	}
	target, err := ParseBroadcast(opts.Broadcast)
	if err == nil {
		var sink Sink
		switch target.Scheme {
		case "ws":
			sink, err = NewBroadcaster(target.Addr, target.Path)
		case "nats":
			subject := target.Subject
			if subject == "" {
				subject = "fincore.stream." + opts.ClientID
			}
			sink, err = NewNATSSink(target.Addr, subject)
		}
		if err == nil {
			logger.Infof("stream %s: broadcasting to %s", opts.ClientID, opts.Broadcast)
			return append(sinks, sink), nil
		}
	}
	for _, s := range sinks {
		_ = s.Close()
	}
	return nil, err
}
