package venue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func TestDecodeExecution(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		raw := []byte(`{"ok":true,"sequenceId":2,"account":"EXB123","venue":"TESTEX","symbol":"FOOBAR",
			"order":{"ok":true,"id":"A","direction":"buy","originalQty":10,"totalFilled":10,"price":100,"open":false,
			"fills":[{"qty":10,"price":100,"sequenceId":2,"ts":"2026-01-02T14:59:59Z"}]}}`)
		ev, err := DecodeExecution(raw, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), ev.SequenceID)
		assert.Equal(t, int64(2), ev.Order.SequenceID)
		assert.Equal(t, "A", ev.OrderID())
		assert.Equal(t, now, ev.ReceivedAt)
		require.Len(t, ev.Order.Fills, 1)
		assert.Equal(t, int64(2), ev.Order.Fills[0].SequenceID)
	})

	t.Run("missing order id passes through", func(t *testing.T) {
		raw := []byte(`{"ok":true,"sequenceId":3,"order":{"direction":"buy","originalQty":1}}`)
		ev, err := DecodeExecution(raw, now)
		require.NoError(t, err)
		assert.Empty(t, ev.OrderID())
	})

	bad := []struct {
		desc string
		raw  string
	}{
		{"not json", `{`},
		{"not ok", `{"ok":false,"error":"boom"}`},
		{"no order", `{"ok":true,"sequenceId":1}`},
		{"no sequence", `{"ok":true,"order":{"id":1,"direction":"buy"}}`},
	}
	for _, tc := range bad {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := DecodeExecution([]byte(tc.raw), now)
			assert.ErrorIs(t, err, domain.ErrMalformedEvent)
		})
	}
}

func TestDecodeQuote(t *testing.T) {
	raw := []byte(`{"ok":true,"quote":{"symbol":"FOOBAR","bid":5000,"bidSize":10,"ask":5050,"askSize":20,
		"last":5025,"lastSize":3,"lastTrade":"2026-01-02T15:00:00Z","quoteTime":"2026-01-02T15:00:01Z"}}`)
	q, err := DecodeQuote(raw)
	require.NoError(t, err)
	assert.True(t, q.TwoSided())
	tr, ok := q.Trade()
	require.True(t, ok)
	assert.Equal(t, int64(5025), tr.Price)
	assert.Equal(t, int64(3), tr.Size)

	_, err = DecodeQuote([]byte(`{"ok":true,"quote":{"bid":1}}`))
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = DecodeQuote([]byte(`{"ok":false,"error":"closed"}`))
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestFlexID(t *testing.T) {
	cases := []struct {
		desc string
		raw  string
		want string
	}{
		{"number", `{"id":1234}`, "1234"},
		{"string", `{"id":"abc"}`, "abc"},
		{"null", `{"id":null}`, ""},
		{"absent", `{}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var o APIOrder
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &o))
			assert.Equal(t, tc.want, string(o.ID))
		})
	}
}
