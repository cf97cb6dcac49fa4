package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, DefaultPerPage, 0},
		{"page=3&per_page=50", 3, 50, 100},
		{"page=-1", 1, DefaultPerPage, 0},
		{"page=abc&per_page=xyz", 1, DefaultPerPage, 0},
		{"per_page=101", 1, DefaultPerPage, 0},
		{"per_page=100&page=2", 2, 100, 100},
		{"per_page=0", 1, DefaultPerPage, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest(http.MethodGet, "/posts?"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestNewResult(t *testing.T) {
	r := NewResult([]string{"a", "b"}, 45, Params{Page: 2, PerPage: 20, Offset: 20})

	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)

	last := NewResult([]string{"z"}, 40, Params{Page: 2, PerPage: 20})
	assert.Equal(t, 2, last.TotalPages)
	assert.False(t, last.HasNext)
}

func TestNewResult_NilDataEncodesAsEmptyArray(t *testing.T) {
	r := NewResult[int](nil, 0, DefaultParams())

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":[]`)
	assert.Equal(t, 0, r.TotalPages)
	assert.False(t, r.HasPrev)
}
