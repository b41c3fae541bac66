package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"fincore/internal/fetcher"
	"fincore/internal/pkg/jsonutil"
	"fincore/internal/pkg/symbol"
	"fincore/internal/schema"
	"fincore/internal/standard"
	"fincore/internal/stream"
)

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
		Description: "Best bid and offer from the futures bookTicker stream.",
		Query:       schema.Extension{MultipleItems: []string{"symbol"}},
		Shape:       fetcher.ShapeStream,
	}
}

func (f *cryptoQuote) ExtractData(ctx context.Context, q fetcher.Query, creds fetcher.Credentials) (any, error) {
	return stream.Open(ctx, f.settings, Name, standard.CryptoQuote, NewProtocol(f.url), q, creds)
}

func (f *cryptoQuote) TransformData(_ fetcher.Query, raw any) (any, error) {
	return raw, nil
}

// Protocol speaks the Binance market stream JSON-RPC: SUBSCRIBE and
// UNSUBSCRIBE with "<symbol>@bookTicker" params. Rows carry the symbol as
// the caller subscribed it, so BTCUSD stays BTCUSD even though the
// contract is BTCUSDT.
type Protocol struct {
	url string

	mu     sync.Mutex
	nextID int64
	names  map[string]string
}

func NewProtocol(url string) *Protocol {
	return &Protocol{url: url, names: make(map[string]string)}
}

type rpc struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

func (p *Protocol) URL() string                            { return p.url }
func (p *Protocol) Header(fetcher.Credentials) http.Header { return nil }
func (p *Protocol) RequiresAuth() bool                     { return false }

func (p *Protocol) Handshake(creds fetcher.Credentials, symbols []string) ([][]byte, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	return p.Subscribe(creds, symbols)
}

func (p *Protocol) Subscribe(_ fetcher.Credentials, symbols []string) ([][]byte, error) {
	return p.call("SUBSCRIBE", symbols, true)
}

func (p *Protocol) Unsubscribe(_ fetcher.Credentials, symbols []string) ([][]byte, error) {
	return p.call("UNSUBSCRIBE", symbols, false)
}

func (p *Protocol) call(method string, symbols []string, remember bool) ([][]byte, error) {
	p.mu.Lock()
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		contract := symbol.Binance.ToExchange(s)
		if remember {
			p.names[contract] = strings.ToUpper(strings.TrimSpace(s))
		}
		params = append(params, strings.ToLower(contract)+"@bookTicker")
	}
	p.nextID++
	id := p.nextID
	p.mu.Unlock()
	msg, err := jsonutil.Marshal(rpc{Method: method, Params: params, ID: id})
	if err != nil {
		return nil, err
	}
	return [][]byte{msg}, nil
}

func (p *Protocol) name(contract string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.names[contract]; ok {
		return n
	}
	return contract
}

func (p *Protocol) Decode(msg []byte) ([]stream.Frame, error) {
	if !gjson.ValidBytes(msg) {
		return nil, fmt.Errorf("binance: malformed message")
	}
	res := gjson.ParseBytes(msg)
	if e := res.Get("error"); e.Exists() {
		return []stream.Frame{{Kind: stream.FrameError, Message: e.Get("msg").String()}}, nil
	}
	if res.Get("id").Exists() {
		return []stream.Frame{{Kind: stream.FrameInfo, Message: "ack " + res.Get("id").String()}}, nil
	}
	if res.Get("e").String() != "bookTicker" {
		return []stream.Frame{{Kind: stream.FrameInfo, Message: string(msg)}}, nil
	}
	row := schema.Record{
		"symbol":    p.name(res.Get("s").String()),
		"date":      time.UnixMilli(res.Get("T").Int()).UTC(),
		"type":      "quote",
		"exchange":  Name,
		"bid_price": price(res.Get("b").String()),
		"bid_size":  price(res.Get("B").String()),
		"ask_price": price(res.Get("a").String()),
		"ask_size":  price(res.Get("A").String()),
	}
	return []stream.Frame{{Kind: stream.FrameData, Rows: []schema.Record{row.Compact()}}}, nil
}
