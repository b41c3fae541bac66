package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/pkg/jsonutil"
)

func barSchema() Schema {
	return New("Bar",
		Field{Name: "date", Type: TypeDate, Required: true},
		Field{Name: "open", Type: TypeNumber},
		Field{Name: "close", Type: TypeNumber, Required: true},
		Field{Name: "volume", Type: TypeInteger, Validators: []Validator{NonNegative}},
	)
}

func querySchema() Schema {
	return New("Query",
		Field{Name: "symbol", Type: TypeString, Required: true, Multiple: true, Validators: []Validator{UpperCase}},
		Field{Name: "interval", Type: TypeString, Default: "1d", Validators: []Validator{Interval}},
		Field{Name: "adjusted", Type: TypeBoolean, Default: true},
		Field{Name: "sort", Type: TypeString, Default: "asc", Choices: []any{"asc", "desc"}},
	)
}

func TestCoerceRow(t *testing.T) {
	rec, err := barSchema().Coerce(map[string]any{
		"date":   "2024-01-02",
		"open":   "185.5",
		"close":  186,
		"volume": "1000",
		"vendor": "x",
	}, CoerceOptions{})
	require.NoError(t, err)

	assert.Equal(t, NewDate(2024, time.January, 2), rec["date"])
	assert.Equal(t, 185.5, rec["open"])
	assert.Equal(t, 186.0, rec["close"])
	assert.Equal(t, int64(1000), rec["volume"])
	assert.NotContains(t, rec, "vendor")
}

func TestCoerceErrorsNameTheField(t *testing.T) {
	_, err := barSchema().Coerce(map[string]any{"date": "2024-01-02", "close": "n/a"}, CoerceOptions{})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "close", fe.Field)

	_, err = barSchema().Coerce(map[string]any{"close": 1}, CoerceOptions{})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "date", fe.Field)

	_, err = barSchema().Coerce(map[string]any{"date": "2024-01-02", "close": 1, "volume": -5}, CoerceOptions{})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "volume", fe.Field)
}

func TestCoerceQueryDefaultsAndValidators(t *testing.T) {
	rec, err := querySchema().Coerce(map[string]any{
		"symbol":   []any{"aapl", " msft"},
		"interval": "1D",
	}, CoerceOptions{ApplyDefaults: true})
	require.NoError(t, err)

	assert.Equal(t, "AAPL,MSFT", rec["symbol"])
	assert.Equal(t, "1d", rec["interval"])
	assert.Equal(t, true, rec["adjusted"])
	assert.Equal(t, "asc", rec["sort"])

	_, err = querySchema().Coerce(map[string]any{"symbol": "x", "sort": "sideways"}, CoerceOptions{})
	assert.Error(t, err)
	_, err = querySchema().Coerce(map[string]any{"symbol": "x", "interval": "1y"}, CoerceOptions{})
	assert.Error(t, err)
}

func TestCoerceIsIdempotent(t *testing.T) {
	inputs := []map[string]any{
		{"symbol": "aapl,msft", "interval": "4H", "adjusted": "false"},
		{"symbol": []string{"btcusd"}},
	}
	for _, in := range inputs {
		once, err := querySchema().Coerce(in, CoerceOptions{ApplyDefaults: true})
		require.NoError(t, err)
		twice, err := querySchema().Coerce(once, CoerceOptions{ApplyDefaults: true})
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestRecordJSONRoundTrip(t *testing.T) {
	s := barSchema()
	rec, err := s.Coerce(map[string]any{"date": "2024-03-01", "open": 1.25, "close": "2.5", "volume": 10}, CoerceOptions{})
	require.NoError(t, err)

	raw, err := jsonutil.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-01","open":1.25,"close":2.5,"volume":10}`, string(raw))

	var back map[string]any
	require.NoError(t, jsonutil.Unmarshal(raw, &back))
	again, err := s.Coerce(back, CoerceOptions{})
	require.NoError(t, err)
	assert.Equal(t, rec, again)
}

func TestNestedObjectsAndArrays(t *testing.T) {
	s := New("Curve",
		Field{Name: "points", Type: TypeArray, Fields: []Field{
			{Name: "maturity", Type: TypeString, Required: true},
			{Name: "rate", Type: TypeNumber, Required: true},
		}},
	)
	rec, err := s.Coerce(map[string]any{"points": []any{
		map[string]any{"maturity": "month_1", "rate": "5.1"},
	}}, CoerceOptions{})
	require.NoError(t, err)
	points := rec["points"].([]any)
	assert.Equal(t, 5.1, points[0].(Record)["rate"])

	_, err = s.Coerce(map[string]any{"points": []any{
		map[string]any{"maturity": "month_1", "rate": 1},
		map[string]any{"maturity": "year_1", "rate": "bad"},
	}}, CoerceOptions{})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "points[1].rate", fe.Field)
}

func TestCompose(t *testing.T) {
	std := querySchema()

	t.Run("extras and aliases", func(t *testing.T) {
		out, err := Compose(std, Extension{
			Fields:        []Field{{Name: "exchange", Type: TypeString}},
			Overrides:     []Field{{Name: "sort", Default: "desc"}},
			MultipleItems: []string{"symbol"},
			Aliases:       map[string]string{"symbol": "tickers"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"symbol", "interval", "adjusted", "sort", "exchange"}, out.Names())
		sym, _ := out.Field("symbol")
		assert.True(t, sym.Multiple)
		sortField, _ := out.Field("sort")
		assert.Equal(t, "desc", sortField.Default)

		wire := out.ToWire(Record{"symbol": "AAPL", "sort": "asc"})
		assert.Equal(t, Record{"tickers": "AAPL", "sort": "asc"}, wire)
		assert.Equal(t, Record{"symbol": "AAPL", "sort": "asc"}, out.FromWire(wire))
	})

	t.Run("standard multiple without provider support", func(t *testing.T) {
		out, err := Compose(std, Extension{})
		require.NoError(t, err)
		sym, _ := out.Field("symbol")
		assert.False(t, sym.Multiple)
	})

	bad := map[string]Extension{
		"extra redefines standard": {Fields: []Field{{Name: "symbol", Type: TypeInteger}}},
		"override changes type":    {Overrides: []Field{{Name: "adjusted", Type: TypeString}}},
		"override unknown":         {Overrides: []Field{{Name: "nope", Type: TypeString}}},
		"dangling alias":           {Aliases: map[string]string{"ghost": "g"}},
		"empty alias":              {Aliases: map[string]string{"symbol": ""}},
		"duplicate alias":          {Aliases: map[string]string{"symbol": "s", "sort": "s"}},
		"shadowing alias":          {Aliases: map[string]string{"symbol": "sort"}},
		"multiple on single":       {MultipleItems: []string{"interval"}},
		"multiple unknown":         {MultipleItems: []string{"ghost"}},
	}
	for name, ext := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := Compose(std, ext)
			assert.Error(t, err)
		})
	}
}

func TestCompiledValidate(t *testing.T) {
	s := barSchema()
	compiled, err := s.Compile()
	require.NoError(t, err)

	rec, err := s.Coerce(map[string]any{"date": "2024-01-02", "close": 1}, CoerceOptions{})
	require.NoError(t, err)
	assert.NoError(t, compiled.Validate(rec))

	err = compiled.Validate(Record{"date": "2024-01-02", "close": "high"})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "close", fe.Field)

	err = compiled.Validate(Record{"date": "not-a-date", "close": 1.0})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "date", fe.Field)
}
