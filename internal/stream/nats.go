package stream

import (
	"github.com/nats-io/nats.go"

	"fincore/internal/pkg/jsonutil"
	"fincore/internal/schema"
)

// NATSSink publishes each row as JSON on one subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("fincore-stream"))
	if err != nil {
		return nil, err
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Subject() string { return s.subject }

func (s *NATSSink) Write(row schema.Record) error {
	payload, err := jsonutil.Marshal(row)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.subject, payload)
}

func (s *NATSSink) Close() error {
	err := s.conn.Flush()
	s.conn.Close()
	return err
}
