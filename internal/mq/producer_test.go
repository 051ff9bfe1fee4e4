package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRecord(t *testing.T) {
	key := "sale-1"
	rec := BuildRecord(ProduceMsg{
		Topic:        "pos.sale.completed",
		Headers:      map[string]string{"event_type": "sale.completed"},
		Payload:      []byte(`{"sale_id":"sale-1"}`),
		PartitionKey: &key,
	})

	assert.Equal(t, "pos.sale.completed", rec.Topic)
	assert.Equal(t, []byte("sale-1"), rec.Key)
	assert.JSONEq(t, `{"sale_id":"sale-1"}`, string(rec.Value))
	if assert.Len(t, rec.Headers, 1) {
		assert.Equal(t, "event_type", rec.Headers[0].Key)
		assert.Equal(t, []byte("sale.completed"), rec.Headers[0].Value)
	}
}

func TestBuildRecord_NoPartitionKey(t *testing.T) {
	rec := BuildRecord(ProduceMsg{Topic: "t", Payload: []byte("{}")})
	assert.Nil(t, rec.Key)
	assert.Empty(t, rec.Headers)
}
