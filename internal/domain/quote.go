package domain

import "strings"

// FallbackQuoteID identifies the built-in quote used when the remote source fails.
const FallbackQuoteID = "fallback"

// Quote represents a quotation with its author.
// Quotes are values: they are replaced or copied, never mutated.
type Quote struct {
	// ID is unique within the issuing source (remote API id or FallbackQuoteID).
	ID string `json:"id"`

	// Text is the body of the quote. Never empty for a valid quote.
	Text string `json:"text"`

	// Author may be empty when unknown.
	Author string `json:"author"`
}

// FallbackQuote returns the fixed quote substituted whenever a refresh fails.
// The values are persisted by earlier sessions and must not change.
func FallbackQuote() Quote {
	return Quote{
		ID:     FallbackQuoteID,
		Text:   "The only way to do great work is to love what you do.",
		Author: "Steve Jobs",
	}
}

// Validate reports whether the quote can be shown and stored.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return NewValidationError("id", "cannot be empty")
	}

	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "cannot be empty")
	}

	return nil
}

// IsFallback reports whether q is the built-in fallback quote.
func (q Quote) IsFallback() bool {
	return q.ID == FallbackQuoteID
}

// ShareText formats the quote for sharing or copying to a clipboard.
func (q Quote) ShareText() string {
	return `"` + q.Text + `" - ` + q.Author
}

// Origin describes where the current daily quote came from.
type Origin string

const (
	// OriginUnknown means no quote has been resolved yet.
	OriginUnknown Origin = "unknown"

	// OriginCache means the quote was reused from today's stored state.
	OriginCache Origin = "cache"

	// OriginRemote means the quote was fetched from the remote source.
	OriginRemote Origin = "remote"

	// OriginFallback means the remote fetch failed and the fallback was used.
	OriginFallback Origin = "fallback"
)
