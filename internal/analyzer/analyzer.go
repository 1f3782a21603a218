package analyzer

import (
	"context"

	"github.com/RikaiDev/mimamori/internal/models"
)

// Request carries everything the analyzer needs to judge one message: the
// rendered conversation window, the raw message, display labels for the two
// parties, a language hint, and the pair's long-term signal summary if any.
type Request struct {
	FormattedContext  string
	RawMessageContent string
	AuthorLabel       string
	TargetLabel       string
	LanguageHint      string
	SignalSummary     string
}

// Analyzer produces a structured verdict for a single analyzed message.
// Callers treat any error as a non-concerning, zero-confidence default.
type Analyzer interface {
	Analyze(ctx context.Context, req *Request) (*models.Verdict, error)
}
