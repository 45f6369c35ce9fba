package api

import (
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// PageResponse is one page of a listing.
type PageResponse[T any] struct {
	Items      []T    `json:"items" doc:"Items on this page"`
	NextCursor string `json:"next_cursor,omitempty" doc:"Pass as cursor to fetch the next page"`
	HasMore    bool   `json:"has_more" doc:"Whether more items follow"`
}

// pageParams builds store pagination from query parameters.
func pageParams(limit int, cursor string) store.PaginationParams {
	params := store.PaginationParams{Limit: limit, Cursor: cursor}
	params.Validate()
	return params
}

func toPage[T any](res *store.PaginatedResult[T]) PageResponse[T] {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{Items: items, NextCursor: res.NextCursor, HasMore: res.HasMore}
}
