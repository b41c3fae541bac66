package tiingo

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"

	"fincore/internal/fetcher"
	"fincore/internal/pkg/jsonutil"
	"fincore/internal/pkg/symbol"
	"fincore/internal/schema"
	"fincore/internal/standard"
	"fincore/internal/stream"
)

// thresholdLevel 2 delivers top-of-book quotes and trades.
const thresholdLevel = 2

type cryptoQuote struct {
	fetcher.Base
	url      string
	settings stream.Settings
}

func newCryptoQuote(url string, settings stream.Settings) *cryptoQuote {
	return &cryptoQuote{url: url, settings: settings}
}

func (f *cryptoQuote) Info() fetcher.Info {
	return fetcher.Info{
		Standard:    standard.CryptoQuote,
		Provider:    Name,
		Description: "Live crypto quotes and trades from the Tiingo websocket.",
		Query:       schema.Extension{MultipleItems: []string{"symbol"}},
		Data: schema.Extension{
			Fields: []schema.Field{
				{Name: "mid_price", Type: schema.TypeNumber},
			},
		},
		Shape:               fetcher.ShapeStream,
		RequiresCredentials: true,
		CredentialNames:     []string{CredentialName},
	}
}

func (f *cryptoQuote) ExtractData(ctx context.Context, q fetcher.Query, creds fetcher.Credentials) (any, error) {
	return stream.Open(ctx, f.settings, Name, standard.CryptoQuote, NewProtocol(f.url), q, creds)
}

func (f *cryptoQuote) TransformData(_ fetcher.Query, raw any) (any, error) {
	return raw, nil
}

// Protocol is Tiingo's crypto websocket dialect. The first subscribe
// carries the token; the "I" reply assigns a subscription id that later
// changes must quote.
type Protocol struct {
	url string

	mu             sync.Mutex
	subscriptionID int64
}

func NewProtocol(url string) *Protocol {
	if url == "" {
		url = DefaultStreamURL
	}
	return &Protocol{url: url}
}

type event struct {
	EventName     string    `json:"eventName"`
	Authorization string    `json:"authorization"`
	EventData     eventData `json:"eventData"`
}

type eventData struct {
	SubscriptionID int64    `json:"subscriptionId,omitempty"`
	ThresholdLevel int      `json:"thresholdLevel,omitempty"`
	Tickers        []string `json:"tickers"`
}

func (p *Protocol) URL() string                            { return p.url }
func (p *Protocol) Header(fetcher.Credentials) http.Header { return nil }
func (p *Protocol) RequiresAuth() bool                     { return true }

func (p *Protocol) Handshake(creds fetcher.Credentials, symbols []string) ([][]byte, error) {
	p.mu.Lock()
	p.subscriptionID = 0
	p.mu.Unlock()
	return p.encode("subscribe", creds, symbols, thresholdLevel)
}

func (p *Protocol) Subscribe(creds fetcher.Credentials, symbols []string) ([][]byte, error) {
	return p.encode("subscribe", creds, symbols, 0)
}

func (p *Protocol) Unsubscribe(creds fetcher.Credentials, symbols []string) ([][]byte, error) {
	return p.encode("unsubscribe", creds, symbols, 0)
}

func (p *Protocol) encode(name string, creds fetcher.Credentials, symbols []string, threshold int) ([][]byte, error) {
	tickers := make([]string, 0, len(symbols))
	for _, s := range symbols {
		tickers = append(tickers, symbol.Tiingo.ToExchange(s))
	}
	p.mu.Lock()
	id := p.subscriptionID
	p.mu.Unlock()
	msg, err := jsonutil.Marshal(event{
		EventName:     name,
		Authorization: creds.Get(CredentialName),
		EventData:     eventData{SubscriptionID: id, ThresholdLevel: threshold, Tickers: tickers},
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{msg}, nil
}

// Decode handles the message types I (info), H (heartbeat), E (error)
// and A (data).
func (p *Protocol) Decode(msg []byte) ([]stream.Frame, error) {
	if !gjson.ValidBytes(msg) {
		return nil, fmt.Errorf("tiingo: malformed message")
	}
	res := gjson.ParseBytes(msg)
	code := res.Get("response.code").Int()
	text := res.Get("response.message").String()
	switch res.Get("messageType").String() {
	case "I":
		if code != 0 && code != 200 {
			return []stream.Frame{{Kind: stream.FrameAuthRejected, Message: text}}, nil
		}
		if id := res.Get("data.subscriptionId").Int(); id != 0 {
			p.mu.Lock()
			p.subscriptionID = id
			p.mu.Unlock()
		}
		return []stream.Frame{{Kind: stream.FrameAuthOK, Message: text}}, nil
	case "H":
		return []stream.Frame{{Kind: stream.FrameHeartbeat}}, nil
	case "E":
		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return []stream.Frame{{Kind: stream.FrameAuthRejected, Message: text}}, nil
		}
		return []stream.Frame{{Kind: stream.FrameError, Message: text}}, nil
	case "A":
		row, err := decodeData(res.Get("data"))
		if err != nil {
			return nil, err
		}
		return []stream.Frame{{Kind: stream.FrameData, Rows: []schema.Record{row}}}, nil
	default:
		return []stream.Frame{{Kind: stream.FrameInfo, Message: string(msg)}}, nil
	}
}

// decodeData reads a positional update:
// ["Q", ticker, date, exchange, bidSize, bidPrice, midPrice, askSize, askPrice]
// ["T", ticker, date, exchange, lastSize, lastPrice]
func decodeData(data gjson.Result) (schema.Record, error) {
	items := data.Array()
	if len(items) < 4 {
		return nil, fmt.Errorf("tiingo: short update %s", data.Raw)
	}
	row := schema.Record{
		"symbol":   symbol.Tiingo.FromExchange(items[1].String()),
		"date":     items[2].String(),
		"exchange": items[3].String(),
	}
	num := func(i int) any {
		if i >= len(items) || items[i].Type == gjson.Null {
			return nil
		}
		return items[i].Float()
	}
	switch items[0].String() {
	case "Q":
		if len(items) < 9 {
			return nil, fmt.Errorf("tiingo: short quote %s", data.Raw)
		}
		row["type"] = "quote"
		row["bid_size"] = num(4)
		row["bid_price"] = num(5)
		row["mid_price"] = num(6)
		row["ask_size"] = num(7)
		row["ask_price"] = num(8)
	case "T":
		if len(items) < 6 {
			return nil, fmt.Errorf("tiingo: short trade %s", data.Raw)
		}
		row["type"] = "trade"
		row["size"] = num(4)
		row["price"] = num(5)
	default:
		return nil, fmt.Errorf("tiingo: unknown update type %q", items[0].String())
	}
	return row.Compact(), nil
}
