// Package normalizer collapses the ledger node's historically inconsistent
// query encodings into one canonical record shape. A raw record may present
// the same logical field under a camelCase key, a snake_case key, or a bare
// positional slot; numbers arrive as native JSON numbers, decimal strings
// with grouping separators, or fixed-point integers carrying a known scale;
// enum-like fields arrive as a bare tag or a single-key map; and accumulator
// fields use near-extreme integers to mean "never observed". Each convention
// is resolved exactly once here, against a declared per-record schema, so no
// downstream consumer ever re-interprets (or re-scales) a value.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedResponse indicates that a required field could not be resolved
// by any known naming convention, or that a resolved value had an
// unrecognizable shape. It is never retried; the raw payload travels with the
// error for diagnosis.
var ErrMalformedResponse = errors.New("malformed response")

// MalformedError carries the context of a normalization failure: which
// schema and field failed, why, and the raw payload that produced it.
type MalformedError struct {
	Schema string
	Field  string
	Reason string
	Raw    json.RawMessage
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %s", ErrMalformedResponse, e.Schema, e.Field, e.Reason)
}

// Is reports whether target is ErrMalformedResponse.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// Kind enumerates the logical types a schema field can take.
type Kind int

const (
	// KindString resolves to a plain string.
	KindString Kind = iota

	// KindInteger resolves to an int64, stripping grouping separators from
	// string-encoded numbers. No scale is ever applied.
	KindInteger

	// KindDecimal resolves to a float64. Integer-encoded inputs are treated
	// as fixed-point and divided by 10^Scale exactly once; inputs that
	// already carry a decimal point or exponent are taken as scaled.
	KindDecimal

	// KindEnum resolves a variant tag from either a bare string or a
	// single-key map. Unknown tags pass through verbatim.
	KindEnum
)

// Sentinel marks which extreme of an accumulator field encodes "no data yet".
type Sentinel int

const (
	// SentinelNone disables sentinel folding for the field.
	SentinelNone Sentinel = iota

	// SentinelHigh folds values at or above the threshold into NoData
	// ("minimum so far" accumulators initialized to a maximum).
	SentinelHigh

	// SentinelLow folds values at or below the threshold into NoData
	// ("maximum so far" accumulators initialized to a minimum).
	SentinelLow
)

// DefaultHighSentinel is the default near-extreme threshold for SentinelHigh
// fields. Upstream encoders round-tripped u64 extremes through IEEE-754
// doubles, so the literal extreme drifts by a few ulps; anything at or above
// 2^53-64 is treated as "never observed".
const DefaultHighSentinel = float64(9007199254740992 - 64)

// FieldSpec declares how one logical field is resolved from a raw record.
type FieldSpec struct {
	// Name is the canonical camelCase name the field takes in the
	// normalized record.
	Name string

	// Keys is the ordered list of candidate keys tried against an
	// object-shaped raw record. When empty it defaults to the canonical
	// name followed by its snake_case form.
	Keys []string

	// Position is the slot tried against an array-shaped raw record.
	// Negative disables the positional fallback.
	Position int

	// Kind selects the conversion applied to the resolved value.
	Kind Kind

	// Scale is the number of fixed-point decimal places for KindDecimal
	// fields. Zero means the integer form is already in display units.
	Scale int

	// Sentinel and SentinelThreshold configure "no data" folding for
	// accumulator fields. A zero threshold on a SentinelHigh field uses
	// DefaultHighSentinel.
	Sentinel          Sentinel
	SentinelThreshold float64

	// Required makes an unresolvable field a MalformedError instead of an
	// absent value.
	Required bool
}

// Schema declares the full resolution table for one record type.
type Schema struct {
	Name   string
	Fields []FieldSpec
}

// candidateKeys returns the explicit key list, or the canonical-then-snake
// default resolution order.
func (f FieldSpec) candidateKeys() []string {
	if len(f.Keys) > 0 {
		return f.Keys
	}
	return []string{f.Name, toSnakeCase(f.Name)}
}

func (f FieldSpec) sentinelThreshold() float64 {
	if f.SentinelThreshold != 0 {
		return f.SentinelThreshold
	}
	if f.Sentinel == SentinelHigh {
		return DefaultHighSentinel
	}
	return -DefaultHighSentinel
}

// toSnakeCase converts a camelCase identifier to snake_case.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// valueKind tags the dynamic type held by a Value.
type valueKind int

const (
	valueAbsent valueKind = iota
	valueNoData
	valueString
	valueInteger
	valueDecimal
)

// Value is one normalized field. It is either absent, an explicit "no data"
// marker, or a typed value. Accessors return ok=false when the value does not
// hold the requested type.
type Value struct {
	kind valueKind
	str  string
	i    int64
	f    float64
}

// Absent reports whether the field was missing from the raw record.
func (v Value) Absent() bool { return v.kind == valueAbsent }

// NoData reports whether the field held a sentinel extreme meaning
// "never observed".
func (v Value) NoData() bool { return v.kind == valueNoData }

// String returns the string value of a KindString or KindEnum field.
func (v Value) String() (string, bool) {
	return v.str, v.kind == valueString
}

// Int returns the integer value of a KindInteger field.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == valueInteger
}

// Decimal returns the scaled value of a KindDecimal field.
func (v Value) Decimal() (float64, bool) {
	return v.f, v.kind == valueDecimal
}

// MarshalJSON renders the value so that re-normalizing the output is a
// no-op: decimals always carry a decimal point (never re-scalable), and
// NoData renders as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueString:
		return json.Marshal(v.str)
	case valueInteger:
		return json.Marshal(v.i)
	case valueDecimal:
		s := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	default:
		return []byte("null"), nil
	}
}

// Record is the canonical form of one query result: immutable, keyed by the
// canonical field names of the schema that produced it.
type Record struct {
	schema string
	names  []string
	fields map[string]Value
}

// Schema returns the name of the schema that produced the record.
func (r Record) Schema() string { return r.schema }

// Field returns the named value. Absent fields yield a Value whose Absent
// method reports true.
func (r Record) Field(name string) Value {
	return r.fields[name]
}

// Names returns the canonical field names in schema order.
func (r Record) Names() []string {
	return append([]string(nil), r.names...)
}

// MarshalJSON renders the record under canonical camelCase keys. Absent
// fields are omitted; NoData fields render as null.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]Value, len(r.fields))
	for name, v := range r.fields {
		if v.Absent() {
			continue
		}
		out[name] = v
	}
	return json.Marshal(out)
}

// Normalize converts a raw query payload into the canonical Record described
// by schema. The raw payload may be an object (keys resolved camelCase, then
// snake_case) or an array (positional fallback). Scaling, separator
// stripping, enum folding, and sentinel detection all happen here and only
// here.
func Normalize(raw json.RawMessage, schema Schema) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return Record{}, &MalformedError{Schema: schema.Name, Reason: err.Error(), Raw: raw}
	}

	var (
		asObject, isObject = decoded.(map[string]any)
		asArray, isArray   = decoded.([]any)
	)
	if !isObject && !isArray {
		return Record{}, &MalformedError{Schema: schema.Name, Reason: "payload is neither object nor array", Raw: raw}
	}

	record := Record{
		schema: schema.Name,
		names:  make([]string, 0, len(schema.Fields)),
		fields: make(map[string]Value, len(schema.Fields)),
	}

	for _, field := range schema.Fields {
		record.names = append(record.names, field.Name)

		rawValue, found := resolveRaw(field, asObject, isObject, asArray, isArray)
		if !found || rawValue == nil {
			if field.Required && !found {
				return Record{}, &MalformedError{
					Schema: schema.Name,
					Field:  field.Name,
					Reason: "field not present under any known convention",
					Raw:    raw,
				}
			}

			// A JSON null on a sentinel field is an already-normalized
			// "no data" marker; anything else null/missing is absent.
			if found && field.Sentinel != SentinelNone {
				record.fields[field.Name] = Value{kind: valueNoData}
			} else {
				record.fields[field.Name] = Value{kind: valueAbsent}
			}
			continue
		}

		value, err := convert(field, rawValue)
		if err != nil {
			return Record{}, &MalformedError{
				Schema: schema.Name,
				Field:  field.Name,
				Reason: err.Error(),
				Raw:    raw,
			}
		}
		record.fields[field.Name] = value
	}

	return record, nil
}

// resolveRaw locates the raw value for a field: candidate keys against an
// object, the declared position against an array.
func resolveRaw(field FieldSpec, obj map[string]any, isObject bool, arr []any, isArray bool) (any, bool) {
	if isObject {
		for _, key := range field.candidateKeys() {
			if v, ok := obj[key]; ok {
				return v, true
			}
		}
		return nil, false
	}

	if isArray && field.Position >= 0 && field.Position < len(arr) {
		return arr[field.Position], true
	}

	return nil, false
}

// convert applies the field's Kind to a resolved raw value.
func convert(field FieldSpec, raw any) (Value, error) {
	switch field.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return Value{kind: valueString, str: s}, nil

	case KindEnum:
		return convertEnum(raw)

	case KindInteger:
		return convertInteger(field, raw)

	case KindDecimal:
		return convertDecimal(field, raw)

	default:
		return Value{}, fmt.Errorf("unsupported field kind %d", field.Kind)
	}
}

// convertEnum folds the two variant encodings into a bare tag. Unknown tags
// pass through verbatim so new ledger variants never break older clients.
func convertEnum(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return Value{kind: valueString, str: v}, nil
	case map[string]any:
		if len(v) != 1 {
			return Value{}, fmt.Errorf("variant map must have exactly one key, got %d", len(v))
		}
		for tag := range v {
			return Value{kind: valueString, str: tag}, nil
		}
	}
	return Value{}, fmt.Errorf("expected variant tag or single-key map, got %T", raw)
}

// convertInteger parses native numbers and separator-grouped decimal strings
// into an int64, folding sentinel extremes first.
func convertInteger(field FieldSpec, raw any) (Value, error) {
	token, err := numericToken(raw)
	if err != nil {
		return Value{}, err
	}

	if isScaledToken(token) {
		// Already-normalized integers never carry a fraction; reject rather
		// than silently truncate.
		return Value{}, fmt.Errorf("expected integer, got fractional token %q", token)
	}

	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("unparseable integer %q", token)
	}

	if folded, ok := foldSentinel(field, float64(n)); ok {
		return folded, nil
	}

	return Value{kind: valueInteger, i: n}, nil
}

// convertDecimal parses the three numeric encodings into a float64, applying
// the fixed-point scale exactly once. A token that already carries a decimal
// point or exponent is taken as scaled and is never divided again; that rule
// is what makes normalization idempotent.
func convertDecimal(field FieldSpec, raw any) (Value, error) {
	token, err := numericToken(raw)
	if err != nil {
		return Value{}, err
	}

	if isScaledToken(token) {
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Value{}, fmt.Errorf("unparseable decimal %q", token)
		}

		if folded, ok := foldSentinel(field, f); ok {
			return folded, nil
		}
		return Value{kind: valueDecimal, f: f}, nil
	}

	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return Value{}, fmt.Errorf("unparseable fixed-point integer %q", token)
	}

	if folded, ok := foldSentinel(field, float64(n)); ok {
		return folded, nil
	}

	return Value{kind: valueDecimal, f: float64(n) / math.Pow10(field.Scale)}, nil
}

// numericToken reduces the numeric encodings to one parseable token,
// stripping grouping separators from string forms.
func numericToken(raw any) (string, error) {
	switch v := raw.(type) {
	case json.Number:
		return string(v), nil
	case string:
		cleaned := strings.NewReplacer(",", "", "_", "", " ", "").Replace(v)
		if cleaned == "" {
			return "", fmt.Errorf("empty numeric string")
		}
		return cleaned, nil
	default:
		return "", fmt.Errorf("expected number or numeric string, got %T", raw)
	}
}

// isScaledToken reports whether a numeric token already carries a fraction or
// exponent, meaning it was produced by a previous normalization (or a node
// encoder that scales server-side).
func isScaledToken(token string) bool {
	return strings.ContainsAny(token, ".eE")
}

// foldSentinel maps near-extreme accumulator values to the explicit NoData
// marker. The threshold is inclusive on the configured side.
func foldSentinel(field FieldSpec, v float64) (Value, bool) {
	switch field.Sentinel {
	case SentinelHigh:
		if v >= field.sentinelThreshold() {
			return Value{kind: valueNoData}, true
		}
	case SentinelLow:
		if v <= field.sentinelThreshold() {
			return Value{kind: valueNoData}, true
		}
	}
	return Value{}, false
}
