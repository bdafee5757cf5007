package pagination_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"newsdeck/internal/common/pagination"
)

type item struct{ id, title string }

func itemID(i item) string { return i.id }

func TestClampLimit(t *testing.T) {
	t.Parallel()

	cfg := pagination.DefaultConfig()
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: 50},
		{name: "negative uses default", limit: -5, want: 50},
		{name: "within range", limit: 10, want: 10},
		{name: "at max", limit: 200, want: 200},
		{name: "above max", limit: 500, want: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.ClampLimit(tt.limit); got != tt.want {
				t.Errorf("ClampLimit(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestAppendUnique(t *testing.T) {
	t.Parallel()

	list := []item{{"a", "A"}, {"b", "B"}}
	seen := pagination.IDSet{"a": {}, "b": {}}

	list, added := pagination.AppendUnique(list, seen, []item{{"b", "B again"}, {"c", "C"}, {"c", "C twice"}}, itemID)

	assert.Equal(t, 1, added)
	assert.Equal(t, []item{{"a", "A"}, {"b", "B"}, {"c", "C"}}, list)
	assert.True(t, seen.Has("c"))
}

func TestAppendUnique_FullOverlapIsIdempotent(t *testing.T) {
	t.Parallel()

	page := []item{{"a", "A"}, {"b", "B"}, {"c", "C"}}
	seen := pagination.IDSet{}
	list, _ := pagination.AppendUnique(nil, seen, page, itemID)

	before := testutil.ToFloat64(pagination.DuplicatesSuppressedTotal)
	list, added := pagination.AppendUnique(list, seen, page, itemID)

	assert.Zero(t, added)
	assert.Equal(t, page, list)
	assert.GreaterOrEqual(t, testutil.ToFloat64(pagination.DuplicatesSuppressedTotal)-before, 3.0)
}

func TestRecordLoad(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(pagination.PageLoadsTotal.WithLabelValues("refresh", "error"))
	pagination.RecordLoad("refresh", errors.New("offline"))
	assert.GreaterOrEqual(t, testutil.ToFloat64(pagination.PageLoadsTotal.WithLabelValues("refresh", "error"))-before, 1.0)
}
