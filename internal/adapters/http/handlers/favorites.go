package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/qotd/internal/adapters/http/dto"
	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/domain"
)

// cursorField names the sort key encoded in favorites cursors.
const cursorField = "position"

// FavoritesHandler serves the favorites collection.
type FavoritesHandler struct {
	store *app.QuoteStore
}

// NewFavoritesHandler creates a new favorites handler.
func NewFavoritesHandler(store *app.QuoteStore) *FavoritesHandler {
	return &FavoritesHandler{store: store}
}

// FavoriteItem is a favorite with its position in insertion order.
type FavoriteItem struct {
	QuoteResponse
	Position int `json:"position"`
}

// ToggleFavoriteRequest is the body of POST /favorites/toggle.
type ToggleFavoriteRequest struct {
	ID     string `json:"id"     validate:"required,notblank,max=256"`
	Text   string `json:"text"   validate:"required,notblank,max=4096"`
	Author string `json:"author" validate:"max=512"`
}

// MembershipResponse reports whether a quote id is a favorite.
type MembershipResponse struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"isFavorite"`
}

// List handles GET /api/v1/favorites?limit=&cursor=.
// Pages follow insertion order, oldest first.
func (h *FavoritesHandler) List(c *gin.Context) {
	var req dto.PaginationRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.HandleValidationError(c, err)
		return
	}

	favorites := h.store.Favorites()

	start, err := pageStart(&req, favorites)
	if err != nil {
		dto.HandleError(c, domain.NewValidationError("cursor", "is not a favorites cursor"))
		return
	}

	limit := req.GetLimit()
	end := min(start+limit+1, len(favorites))

	items := make([]FavoriteItem, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, FavoriteItem{QuoteResponse: toQuoteResponse(favorites[i]), Position: i})
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(items, limit, func(it FavoriteItem) *dto.CursorData {
		return dto.NewCursor(cursorField, strconv.Itoa(it.Position), it.ID)
	}))
}

// pageStart resolves the index after the cursor's item. When that item has
// since been unfavorited, the stored position is used instead.
func pageStart(req *dto.PaginationRequest, favorites domain.Favorites) (int, error) {
	cursor, err := req.DecodeCursor()
	if errors.Is(err, dto.ErrNoCursor) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	if cursor.Field != cursorField {
		return 0, dto.ErrInvalidCursor
	}

	if i := favorites.IndexOf(cursor.ID); i >= 0 {
		return i + 1, nil
	}

	pos, err := strconv.Atoi(cursor.Value)
	if err != nil || pos < 0 {
		return 0, dto.ErrInvalidCursor
	}

	// The removed item shifted everything after it down by one.
	return min(pos, len(favorites)), nil
}

// Toggle handles POST /api/v1/favorites/toggle.
func (h *FavoritesHandler) Toggle(c *gin.Context) {
	var req ToggleFavoriteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleValidationError(c, err)
		return
	}

	quote := domain.Quote{ID: req.ID, Text: req.Text, Author: req.Author}

	isFavorite := h.store.ToggleFavorite(context.WithoutCancel(c.Request.Context()), quote)

	c.JSON(http.StatusOK, MembershipResponse{ID: quote.ID, IsFavorite: isFavorite})
}

// Get handles GET /api/v1/favorites/:id.
func (h *FavoritesHandler) Get(c *gin.Context) {
	id := c.Param("id")

	c.JSON(http.StatusOK, MembershipResponse{
		ID:         id,
		IsFavorite: h.store.IsFavorite(domain.Quote{ID: id}),
	})
}

// RegisterRoutes registers the favorites endpoints on rg.
func (h *FavoritesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	favorites := rg.Group("/favorites")
	favorites.GET("", h.List)
	favorites.POST("/toggle", h.Toggle)
	favorites.GET("/:id", h.Get)
}
