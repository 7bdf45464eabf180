package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestParseOffsetRequest(t *testing.T) {
	assert.Equal(t, OffsetPagination{Page: 1, PageSize: 50, Offset: 0}, ParseOffsetRequest(nil, nil))
	assert.Equal(t, OffsetPagination{Page: 3, PageSize: 20, Offset: 40}, ParseOffsetRequest(intPtr(3), intPtr(20)))
	assert.Equal(t, OffsetPagination{Page: 1, PageSize: 50, Offset: 0}, ParseOffsetRequest(intPtr(-2), intPtr(500)))
}

func TestPages(t *testing.T) {
	pages := Pages(3, 50)
	assert.Len(t, pages, 3)
	assert.Equal(t, 0, pages[0].Offset)
	assert.Equal(t, 100, pages[2].Offset)

	assert.Nil(t, Pages(0, 50))
	assert.Equal(t, DefaultPageSize, Pages(1, 0)[0].PageSize)
}

func TestNewPageInfo(t *testing.T) {
	assert.True(t, NewPageInfo(0, 50, 120).HasMore)
	assert.False(t, NewPageInfo(100, 20, 120).HasMore)
}
