package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// policySchema mirrors the shape used by the live client: strings, an enum,
// a plain integer, two fixed-point decimals, and a high-extreme accumulator.
func policySchema() Schema {
	return Schema{
		Name: "policy",
		Fields: []FieldSpec{
			{Name: "policyId", Position: 0, Kind: KindString, Required: true},
			{Name: "status", Position: 1, Kind: KindEnum, Required: true},
			{Name: "totalShares", Position: 2, Kind: KindInteger, Required: true},
			{Name: "premiumPerShare", Position: 3, Kind: KindDecimal, Scale: 6, Required: true},
			{Name: "lowestAsk", Position: 4, Kind: KindDecimal, Scale: 6, Sentinel: SentinelHigh},
		},
	}
}

func TestNormalize_FieldNameResolution(t *testing.T) {
	schema := policySchema()

	camel := json.RawMessage(`{
		"policyId": "pol-1",
		"status": "Active",
		"totalShares": 10000,
		"premiumPerShare": 5000000,
		"lowestAsk": 1500000
	}`)

	snake := json.RawMessage(`{
		"policy_id": "pol-1",
		"status": "Active",
		"total_shares": 10000,
		"premium_per_share": 5000000,
		"lowest_ask": 1500000
	}`)

	positional := json.RawMessage(`["pol-1", "Active", 10000, 5000000, 1500000]`)

	t.Run("camelCase, snake_case, and positional forms normalize identically", func(t *testing.T) {
		fromCamel, err := Normalize(camel, schema)
		require.NoError(t, err)

		fromSnake, err := Normalize(snake, schema)
		require.NoError(t, err)

		fromPositional, err := Normalize(positional, schema)
		require.NoError(t, err)

		assert.Equal(t, fromCamel, fromSnake)
		assert.Equal(t, fromCamel, fromPositional)
	})

	t.Run("camelCase key wins over snake_case", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "camel",
			"policy_id": "snake",
			"status": "Active",
			"totalShares": 1,
			"premiumPerShare": 0
		}`), schema)
		require.NoError(t, err)

		got, ok := record.Field("policyId").String()
		require.True(t, ok)
		assert.Equal(t, "camel", got)
	})

	t.Run("missing required field is a malformed response carrying the raw payload", func(t *testing.T) {
		raw := json.RawMessage(`{"status": "Active"}`)

		_, err := Normalize(raw, schema)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedResponse)

		var malformed *MalformedError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "policyId", malformed.Field)
		assert.JSONEq(t, string(raw), string(malformed.Raw))
	})

	t.Run("missing optional field is absent, not an error", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": 1,
			"premiumPerShare": 0
		}`), schema)
		require.NoError(t, err)

		assert.True(t, record.Field("lowestAsk").Absent())
	})
}

func TestNormalize_Numbers(t *testing.T) {
	schema := policySchema()

	t.Run("strips grouping separators and applies scale exactly once", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": "10,000",
			"premiumPerShare": 5000000
		}`), schema)
		require.NoError(t, err)

		shares, ok := record.Field("totalShares").Int()
		require.True(t, ok)
		assert.Equal(t, int64(10000), shares)

		premium, ok := record.Field("premiumPerShare").Decimal()
		require.True(t, ok)
		assert.Equal(t, 5.0, premium)
	})

	t.Run("already-scaled decimal token is never rescaled", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": 1,
			"premiumPerShare": 5.0
		}`), schema)
		require.NoError(t, err)

		premium, ok := record.Field("premiumPerShare").Decimal()
		require.True(t, ok)
		assert.Equal(t, 5.0, premium)
	})

	t.Run("fractional token on an integer field is malformed", func(t *testing.T) {
		_, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": 1.5,
			"premiumPerShare": 0
		}`), schema)

		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("non-numeric string is malformed", func(t *testing.T) {
		_, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": "lots",
			"premiumPerShare": 0
		}`), schema)

		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestNormalize_Enums(t *testing.T) {
	schema := policySchema()

	t.Run("bare string tag", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{"policyId":"pol-1","totalShares":1,"premiumPerShare":0,"status":"Active"}`), schema)
		require.NoError(t, err)

		tag, ok := record.Field("status").String()
		require.True(t, ok)
		assert.Equal(t, "Active", tag)
	})

	t.Run("single-key map variant", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{"policyId":"pol-1","totalShares":1,"premiumPerShare":0,"status":{"Lapsed":null}}`), schema)
		require.NoError(t, err)

		tag, ok := record.Field("status").String()
		require.True(t, ok)
		assert.Equal(t, "Lapsed", tag)
	})

	t.Run("unknown tags pass through verbatim", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{"policyId":"pol-1","totalShares":1,"premiumPerShare":0,"status":"SomeFutureVariant"}`), schema)
		require.NoError(t, err)

		tag, ok := record.Field("status").String()
		require.True(t, ok)
		assert.Equal(t, "SomeFutureVariant", tag)
	})

	t.Run("multi-key map is malformed", func(t *testing.T) {
		_, err := Normalize(json.RawMessage(`{"policyId":"pol-1","totalShares":1,"premiumPerShare":0,"status":{"A":null,"B":null}}`), schema)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestNormalize_Sentinels(t *testing.T) {
	schema := policySchema()

	t.Run("exact high extreme folds to no data", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": 1,
			"premiumPerShare": 0,
			"lowestAsk": 9007199254740992
		}`), schema)
		require.NoError(t, err)

		assert.True(t, record.Field("lowestAsk").NoData())
	})

	t.Run("near-extreme within threshold folds to no data", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": 1,
			"premiumPerShare": 0,
			"lowestAsk": 9007199254740970
		}`), schema)
		require.NoError(t, err)

		assert.True(t, record.Field("lowestAsk").NoData())
	})

	t.Run("ordinary value below the threshold stays numeric", func(t *testing.T) {
		record, err := Normalize(json.RawMessage(`{
			"policyId": "pol-1",
			"status": "Active",
			"totalShares": 1,
			"premiumPerShare": 0,
			"lowestAsk": 1500000
		}`), schema)
		require.NoError(t, err)

		ask, ok := record.Field("lowestAsk").Decimal()
		require.True(t, ok)
		assert.Equal(t, 1.5, ask)
		assert.False(t, record.Field("lowestAsk").NoData())
	})

	t.Run("low-extreme sentinel folds at or below its threshold", func(t *testing.T) {
		lowSchema := Schema{
			Name: "oracleState",
			Fields: []FieldSpec{
				{Name: "highestQuote", Kind: KindDecimal, Scale: 3, Sentinel: SentinelLow, SentinelThreshold: -DefaultHighSentinel},
			},
		}

		record, err := Normalize(json.RawMessage(`{"highestQuote": -9007199254740992}`), lowSchema)
		require.NoError(t, err)

		assert.True(t, record.Field("highestQuote").NoData())
	})
}

func TestNormalize_Idempotence(t *testing.T) {
	schema := policySchema()

	t.Run("normalizing normalized output is a no-op", func(t *testing.T) {
		first, err := Normalize(json.RawMessage(`{
			"policy_id": "pol-1",
			"status": {"Active": null},
			"total_shares": "10,000",
			"premium_per_share": 5000000,
			"lowest_ask": 9007199254740992
		}`), schema)
		require.NoError(t, err)

		rendered, err := json.Marshal(first)
		require.NoError(t, err)

		second, err := Normalize(rendered, schema)
		require.NoError(t, err)

		assert.Equal(t, first, second)

		// In particular the decimal must not be scaled a second time.
		premium, ok := second.Field("premiumPerShare").Decimal()
		require.True(t, ok)
		assert.Equal(t, 5.0, premium)
	})
}

func TestNormalize_MalformedPayloads(t *testing.T) {
	schema := policySchema()

	t.Run("non-JSON payload", func(t *testing.T) {
		_, err := Normalize(json.RawMessage(`not json`), schema)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("scalar payload", func(t *testing.T) {
		_, err := Normalize(json.RawMessage(`42`), schema)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
