package pagination

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type OffsetPagination struct {
	Page     int
	PageSize int
	Offset   int
}

func ParseOffsetRequest(page, pageSize *int) OffsetPagination {
	p := 1
	if page != nil && *page > 0 {
		p = *page
	}

	ps := DefaultPageSize
	if pageSize != nil && *pageSize > 0 && *pageSize <= MaxPageSize {
		ps = *pageSize
	}

	return OffsetPagination{
		Page:     p,
		PageSize: ps,
		Offset:   (p - 1) * ps,
	}
}

// Pages returns the first n pages of size pageSize, newest page first.
func Pages(n, pageSize int) []OffsetPagination {
	if n <= 0 {
		return nil
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	out := make([]OffsetPagination, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, OffsetPagination{Page: i, PageSize: pageSize, Offset: (i - 1) * pageSize})
	}
	return out
}

type PageInfo struct {
	Offset  int
	Count   int
	Total   int
	HasMore bool
}

func NewPageInfo(offset, count, total int) PageInfo {
	return PageInfo{
		Offset:  offset,
		Count:   count,
		Total:   total,
		HasMore: offset+count < total,
	}
}
