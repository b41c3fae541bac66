// Package store persists vendor responses and stream rows. Every
// implementation is advisory: callers log failures and carry on.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	"fincore/internal/pkg/redact"
	"fincore/internal/schema"
)

// ResponseCache stores raw vendor response bodies by request key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// StreamEvent is one persisted stream row.
type StreamEvent struct {
	ClientID  string
	Standard  string
	Row       schema.Record
	CreatedAt time.Time
}

// StreamLog records stream rows per client, bounded by a per-client cap.
type StreamLog interface {
	Append(ctx context.Context, clientID, standard string, rows []schema.Record) error
	List(ctx context.Context, clientID string, limit int) ([]StreamEvent, error)
	Close() error
}

// CacheKey hashes a request with every credential removed, so callers with
// different keys share entries.
func CacheKey(method, rawURL string, header http.Header, body []byte) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(redact.StripURL(rawURL)))
	h.Write([]byte{0})
	names := make([]string, 0, len(header))
	for name := range header {
		if redact.IsSensitive(name) {
			continue
		}
		names = append(names, http.CanonicalHeaderKey(name))
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{':'})
		h.Write([]byte(strings.Join(header.Values(name), ",")))
		h.Write([]byte{'\n'})
	}
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
