package docstore

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAccessors(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := Document{
		ID: "7",
		Data: map[string]any{
			"title":      "Dune",
			"count":      float64(3),
			"big":        json.Number("12"),
			"frac":       1.5,
			"owner":      "42",
			"members":    []any{float64(1), "2", json.Number("3")},
			"bad_list":   []any{float64(1), "x"},
			"created":    created.Format(time.RFC3339Nano),
			"exported":   map[string]any{"_seconds": float64(created.Unix()), "_nanoseconds": float64(0)},
			"null_field": nil,
		},
	}

	s, err := doc.RequireString("title")
	require.NoError(t, err)
	assert.Equal(t, "Dune", s)

	n, err := doc.RequireInt("count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = doc.RequireInt("big")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	_, err = doc.RequireInt("frac")
	assert.ErrorIs(t, err, ErrFieldType)

	id, err := doc.RequireID("owner")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	ids, err := doc.RequireIDSlice("members")
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, ids)

	_, err = doc.RequireIDSlice("bad_list")
	assert.ErrorIs(t, err, ErrFieldType)

	ts, err := doc.RequireTime("created")
	require.NoError(t, err)
	assert.True(t, created.Equal(ts))

	ts, err = doc.RequireTime("exported")
	require.NoError(t, err)
	assert.True(t, created.Equal(ts))

	_, err = doc.RequireString("null_field")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = doc.RequireString("absent")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = doc.RequireString("count")
	assert.ErrorIs(t, err, ErrFieldType)

	assert.Equal(t, "", doc.OptionalString("absent"))
	assert.Equal(t, []uint{}, doc.OptionalIDSlice("absent"))
	assert.Zero(t, doc.OptionalInt("absent"))

	docID, err := doc.DocID()
	require.NoError(t, err)
	assert.Equal(t, uint(7), docID)
}

func TestDocID_Invalid(t *testing.T) {
	for _, id := range []string{"", "0", "abc", "-1"} {
		_, err := Document{ID: id}.DocID()
		assert.Error(t, err, id)
	}
}

func TestRequireInt_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"largest exact float", float64(1 << 62), true},
		{"smallest int64", float64(-(1 << 63)), true},
		{"two to the 63rd", float64(1 << 63), false},
		{"huge float", 1e300, false},
		{"huge negative float", -1e19, false},
		{"infinity", math.Inf(1), false},
		{"nan", math.NaN(), false},
		{"uint64 above max", uint64(math.MaxInt64) + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{Data: map[string]any{"n": tt.value}}
			_, err := doc.RequireInt("n")
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrFieldType)
			}
		})
	}
}
