package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseUnmarshal(t *testing.T) {
	t.Run("camelCase extrinsic variant", func(t *testing.T) {
		var p Phase
		require.NoError(t, json.Unmarshal([]byte(`{"applyExtrinsic": 2}`), &p))

		assert.Equal(t, PhaseApplyExtrinsic, p.Kind)
		assert.Equal(t, uint32(2), p.ExtrinsicIndex)
		assert.True(t, p.IsExtrinsic())
	})

	t.Run("snake_case extrinsic variant", func(t *testing.T) {
		var p Phase
		require.NoError(t, json.Unmarshal([]byte(`{"apply_extrinsic": 7}`), &p))

		assert.Equal(t, PhaseApplyExtrinsic, p.Kind)
		assert.Equal(t, uint32(7), p.ExtrinsicIndex)
	})

	t.Run("string stage tags", func(t *testing.T) {
		var p Phase
		require.NoError(t, json.Unmarshal([]byte(`"Initialization"`), &p))
		assert.Equal(t, PhaseInitialization, p.Kind)
		assert.False(t, p.IsExtrinsic())

		require.NoError(t, json.Unmarshal([]byte(`"Finalization"`), &p))
		assert.Equal(t, PhaseFinalization, p.Kind)
	})

	t.Run("unknown tag is rejected", func(t *testing.T) {
		var p Phase
		assert.Error(t, json.Unmarshal([]byte(`"Teardown"`), &p))
	})

	t.Run("unknown object encoding is rejected", func(t *testing.T) {
		var p Phase
		assert.Error(t, json.Unmarshal([]byte(`{"somethingElse": 1}`), &p))
	})
}

func TestPhaseRoundTrip(t *testing.T) {
	t.Run("marshals in the camelCase convention", func(t *testing.T) {
		data, err := json.Marshal(Phase{Kind: PhaseApplyExtrinsic, ExtrinsicIndex: 3})
		require.NoError(t, err)
		assert.JSONEq(t, `{"applyExtrinsic": 3}`, string(data))

		var back Phase
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, Phase{Kind: PhaseApplyExtrinsic, ExtrinsicIndex: 3}, back)
	})
}

func TestEventUnmarshal(t *testing.T) {
	t.Run("camelCase convention", func(t *testing.T) {
		raw := []byte(`{
			"phase": {"applyExtrinsic": 1},
			"moduleName": "policies",
			"eventName": "PolicyCreated",
			"payload": {"id": "0x0123456789abcdef0123456789abcdef"}
		}`)

		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))

		assert.Equal(t, "policies", ev.Module)
		assert.Equal(t, "PolicyCreated", ev.Name)
		assert.Contains(t, ev.Payload, "id")
	})

	t.Run("snake_case convention with data payload", func(t *testing.T) {
		raw := []byte(`{
			"phase": {"apply_extrinsic": 1},
			"module_name": "policies",
			"event_name": "PolicyCreated",
			"data": {"record_id": "42"}
		}`)

		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))

		assert.Equal(t, "policies", ev.Module)
		assert.Equal(t, "PolicyCreated", ev.Name)
		assert.Contains(t, ev.Payload, "record_id")
	})

	t.Run("camelCase keys win when both conventions are present", func(t *testing.T) {
		raw := []byte(`{
			"phase": "Initialization",
			"moduleName": "camel",
			"module_name": "snake",
			"eventName": "Camel",
			"event_name": "Snake"
		}`)

		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))

		assert.Equal(t, "camel", ev.Module)
		assert.Equal(t, "Camel", ev.Name)
	})
}

func TestErrorDescriptorString(t *testing.T) {
	t.Run("with description", func(t *testing.T) {
		d := ErrorDescriptor{Module: "policies", Name: "InsufficientShares", Description: "not enough shares remain"}
		assert.Equal(t, "policies.InsufficientShares: not enough shares remain", d.String())
	})

	t.Run("without description", func(t *testing.T) {
		d := ErrorDescriptor{Module: "policies", Name: "InsufficientShares"}
		assert.Equal(t, "policies.InsufficientShares", d.String())
	})
}

func TestBlockRefIsZero(t *testing.T) {
	assert.True(t, BlockRef{}.IsZero())
	assert.False(t, BlockRef{Hash: "0xaaa"}.IsZero())
	assert.False(t, BlockRef{Height: 1}.IsZero())
}
