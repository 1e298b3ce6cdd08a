package domain

import "testing"

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, size         int
		wantLimit, wantOff int
	}{
		{page: 0, size: 0, wantLimit: DefaultPageSize, wantOff: 0},
		{page: 3, size: 10, wantLimit: 10, wantOff: 20},
		{page: 2, size: 1000, wantLimit: MaxPageSize, wantOff: MaxPageSize},
	}

	for _, tt := range tests {
		p := NewPagination(tt.page, tt.size)
		if p.Limit() != tt.wantLimit || p.Offset() != tt.wantOff {
			t.Errorf("NewPagination(%d, %d) = limit %d offset %d, want %d %d",
				tt.page, tt.size, p.Limit(), p.Offset(), tt.wantLimit, tt.wantOff)
		}
	}
}

func TestNewMetadata(t *testing.T) {
	m := NewMetadata(41, NewPagination(2, 20))
	if m.LastPage != 3 || m.CurrentPage != 2 || m.TotalRecords != 41 {
		t.Errorf("unexpected metadata %+v", m)
	}

	if empty := NewMetadata(0, NewPagination(1, 20)); empty.LastPage != 1 {
		t.Errorf("LastPage of empty result = %d, want 1", empty.LastPage)
	}
}
