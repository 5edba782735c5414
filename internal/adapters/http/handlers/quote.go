package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/qotd/internal/adapters/http/dto"
	"github.com/jsamuelsen/qotd/internal/app"
	"github.com/jsamuelsen/qotd/internal/domain"
)

// QuoteHandler serves the daily quote.
type QuoteHandler struct {
	store *app.QuoteStore
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(store *app.QuoteStore) *QuoteHandler {
	return &QuoteHandler{store: store}
}

// QuoteResponse is the HTTP representation of a quote.
type QuoteResponse struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

func toQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:     q.ID,
		Text:   q.Text,
		Author: q.Author,
	}
}

// TodayResponse describes the current daily quote and the store around it.
// Quote is null until the first quote resolves.
type TodayResponse struct {
	Quote       *QuoteResponse `json:"quote"`
	IsFavorite  bool           `json:"isFavorite"`
	IsLoading   bool           `json:"isLoading"`
	Origin      string         `json:"origin"`
	LastRefresh string         `json:"lastRefresh,omitempty"`
}

func toTodayResponse(snap app.Snapshot) TodayResponse {
	resp := TodayResponse{
		IsLoading:   snap.IsLoading,
		Origin:      string(snap.Origin),
		LastRefresh: snap.LastRefresh,
	}

	if snap.CurrentQuote != nil {
		q := toQuoteResponse(*snap.CurrentQuote)
		resp.Quote = &q
		resp.IsFavorite = snap.Favorites.Contains(snap.CurrentQuote.ID)
	}

	return resp
}

// ShareResponse carries the share text of a quote.
type ShareResponse struct {
	Text string `json:"text"`
}

// GetToday handles GET /api/v1/quotes/today.
func (h *QuoteHandler) GetToday(c *gin.Context) {
	h.store.EnsureToday(context.WithoutCancel(c.Request.Context()))

	c.JSON(http.StatusOK, toTodayResponse(h.store.Snapshot()))
}

// Refresh handles POST /api/v1/quotes/refresh.
// It always answers 200: a failed fetch surfaces as origin "fallback".
func (h *QuoteHandler) Refresh(c *gin.Context) {
	// A client hanging up must not turn into a fallback quote for the day.
	h.store.Refresh(context.WithoutCancel(c.Request.Context()))

	c.JSON(http.StatusOK, toTodayResponse(h.store.Snapshot()))
}

// Share handles GET /api/v1/quotes/today/share.
func (h *QuoteHandler) Share(c *gin.Context) {
	h.store.EnsureToday(context.WithoutCancel(c.Request.Context()))

	current := h.store.CurrentQuote()
	if current == nil {
		dto.HandleError(c, domain.NewNotFoundError("daily quote", ""))
		return
	}

	c.JSON(http.StatusOK, ShareResponse{Text: h.store.ShareText(*current)})
}

// RegisterRoutes registers the quote endpoints on rg.
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("/today", h.GetToday)
	quotes.GET("/today/share", h.Share)
	quotes.POST("/refresh", h.Refresh)
}
