package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/shopdash/internal/model"
)

func TestDecodeDispatch(t *testing.T) {
	tests := []struct {
		topic string
		body  string
		want  interface{}
	}{
		{"customers/create", `{"id":1,"first_name":"Ann","total_spent":"10.00"}`, &CustomerUpserted{}},
		{"customers/update", `{"id":1}`, &CustomerUpserted{}},
		{"customers/delete", `{"id":1}`, &CustomerDeleted{}},
		{"products/create", `{"id":2,"variants":[{"price":"5.00","inventory_quantity":3}]}`, &ProductUpserted{}},
		{"products/delete", `{"id":2}`, &ProductDeleted{}},
		{"orders/create", `{"id":3,"total_price":"50.00","customer":{"id":1}}`, &OrderUpserted{}},
		{"orders/updated", `{"id":3}`, &OrderUpserted{}},
		{"orders/paid", `{"id":3}`, &OrderUpserted{}},
		{"orders/cancelled", `{"id":3}`, &OrderTransitioned{}},
		{"orders/fulfilled", `{"id":3}`, &OrderTransitioned{}},
		{"checkouts/create", `{"id":4}`, &CheckoutStarted{}},
		{"checkouts/update", `{"id":4,"abandoned_checkout_url":"https://x"}`, &CheckoutUpdated{}},
		{"app/uninstalled", `{"id":"gid://shop/1"}`, &Unrecognized{}},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			ev, err := Decode(tt.topic, []byte(tt.body))
			require.NoError(t, err)
			assert.IsType(t, tt.want, ev)
			assert.Equal(t, tt.topic, ev.Topic())
			assert.JSONEq(t, tt.body, string(ev.Raw()))
		})
	}
}

func TestDecodeNormalizesTransitionNames(t *testing.T) {
	ev, err := Decode("orders/cancelled", []byte(`{"id":9}`))
	require.NoError(t, err)
	assert.Equal(t, model.EventOrderCancelled, ev.(*OrderTransitioned).EventType)

	ev, err = Decode("orders/fulfilled", []byte(`{"id":9}`))
	require.NoError(t, err)
	assert.Equal(t, model.EventOrderFulfilled, ev.(*OrderTransitioned).EventType)
	assert.Equal(t, int64(9), *ev.ResourceID())
}

func TestDecodeTypedFields(t *testing.T) {
	ev, err := Decode("orders/create", []byte(`{"id":3,"total_price":"50.25","currency":"USD","customer":{"id":77},
		"line_items":[{"product_id":5,"title":"Mug","quantity":2,"price":"10.00"}]}`))
	require.NoError(t, err)
	order := ev.(*OrderUpserted).Order
	assert.Equal(t, 50.25, float64(order.TotalPrice))
	assert.Equal(t, int64(77), *order.CustomerID())
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, 2, order.LineItems[0].Quantity)
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	for _, tc := range []struct{ topic, body string }{
		{"customers/create", `{"id":"abc"}`},
		{"customers/create", `{"first_name":"no id"}`},
		{"orders/cancelled", `{}`},
		{"checkouts/update", `not json`},
		{"shop/update", `{"broken"`},
	} {
		_, err := Decode(tc.topic, []byte(tc.body))
		assert.ErrorIs(t, err, ErrInvalidPayload, tc.topic+" "+tc.body)
	}
}

func TestUnrecognizedKeepsNumericID(t *testing.T) {
	ev, err := Decode("refunds/create", []byte(`{"id":12}`))
	require.NoError(t, err)
	require.NotNil(t, ev.ResourceID())
	assert.Equal(t, int64(12), *ev.ResourceID())

	ev, err = Decode("refunds/create", []byte(`{"id":"x"}`))
	require.NoError(t, err)
	assert.Nil(t, ev.ResourceID())
}
