// internal/models/user_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryOptions_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		in        QueryOptions
		wantLimit int
		wantPage  int
	}{
		{"defaults", QueryOptions{}, DefaultPageSize, 1},
		{"negative", QueryOptions{Limit: -5, Page: -1}, DefaultPageSize, 1},
		{"kept", QueryOptions{Limit: 25, Page: 3}, 25, 3},
		{"at ceiling", QueryOptions{Limit: MaxPageSize}, MaxPageSize, 1},
		{"over ceiling", QueryOptions{Limit: 1000000, Page: 2}, MaxPageSize, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantPage, got.Page)
		})
	}
}

func TestNewPage_UsesClampedLimit(t *testing.T) {
	page := NewPage([]int{1, 2}, QueryOptions{Limit: 500}.Normalize(), 250)
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Equal(t, 3, page.TotalPages)
}
