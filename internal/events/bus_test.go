package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishInOrder(t *testing.T) {
	b := NewBus(8)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish("purchase",
		PaymentTransferEvent{Amount: 125},
		AssetTransferredEvent{AssetID: 1},
		SoldEvent{},
	)

	var got []Type
	for i := 0; i < 3; i++ {
		env := <-ch
		assert.Equal(t, uint64(i+1), env.Seq)
		assert.Equal(t, "purchase", env.Op)
		got = append(got, env.Type)
	}
	assert.Equal(t, []Type{TypePaymentTransfer, TypeAssetTransferred, TypeSold}, got)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		b.Publish("mint", AssetMintedEvent{})
	}
	env := <-ch
	assert.Equal(t, uint64(1), env.Seq)
	select {
	case <-ch:
		t.Fatalf("expected remaining events to be dropped")
	default:
	}
}

func TestBus_Cancel(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())
	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
	_, ok := <-ch
	assert.False(t, ok)

	// 取消后发布不应 panic
	b.Publish("mint", AssetMintedEvent{})
}

func TestRawEnvelope_Decode(t *testing.T) {
	env := Envelope{Seq: 3, Type: TypeListingCancelled, Op: "cancel", Payload: ListingCancelledEvent{AssetID: 7}}
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var raw RawEnvelope
	require.NoError(t, json.Unmarshal(b, &raw))
	ev, err := raw.Decode()
	require.NoError(t, err)
	got, ok := ev.(*ListingCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(7), uint64(got.AssetID))
	assert.Equal(t, TypeListingCancelled, got.EventType())

	raw.Type = "bogus"
	_, err = raw.Decode()
	assert.Error(t, err)
}
