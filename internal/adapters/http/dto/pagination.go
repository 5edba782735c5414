package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Page size bounds for cursor-paged lists.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	// ErrInvalidCursor means the cursor was not produced by EncodeCursor.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrNoCursor asks for the first page. It is not a failure.
	ErrNoCursor = errors.New("no cursor provided")
)

// PaginationRequest is bound from ?cursor=&limit=.
type PaginationRequest struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetLimit clamps Limit to [1, MaxLimit], treating zero as DefaultLimit.
func (p *PaginationRequest) GetLimit() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

func (p *PaginationRequest) DecodeCursor() (*CursorData, error) {
	return DecodeCursor(p.Cursor)
}

// PaginatedResponse is one page. NextCursor is set only when HasMore.
type PaginatedResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// NewPaginatedResponse expects up to limit+1 items: the extra one only
// proves there is a next page and is dropped. next builds the cursor from
// the last item kept.
func NewPaginatedResponse[T any](items []T, limit int, next func(T) *CursorData) *PaginatedResponse[T] {
	page := &PaginatedResponse[T]{Items: items, HasMore: len(items) > limit}

	if page.HasMore {
		page.Items = items[:limit]
	}

	if page.Items == nil {
		page.Items = []T{}
	}

	if page.HasMore && len(page.Items) > 0 && next != nil {
		page.NextCursor = EncodeCursor(next(page.Items[len(page.Items)-1]))
	}

	return page
}

// CursorData is what a cursor carries: the sort field, the sort value of
// the last item returned, and that item's ID.
type CursorData struct {
	Field string `json:"f"`
	Value string `json:"v"`
	ID    string `json:"id"`
}

func NewCursor(field, value, id string) *CursorData {
	return &CursorData{Field: field, Value: value, ID: id}
}

// EncodeCursor renders data as URL-safe base64 of its JSON. nil is "".
func EncodeCursor(data *CursorData) string {
	if data == nil {
		return ""
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. An empty string is ErrNoCursor and
// anything undecodable is ErrInvalidCursor.
func DecodeCursor(encoded string) (*CursorData, error) {
	if encoded == "" {
		return nil, ErrNoCursor
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var data CursorData
	if json.Unmarshal(raw, &data) != nil {
		return nil, ErrInvalidCursor
	}

	return &data, nil
}
