package backend

import (
	"context"
	"time"
)

// OriginFunc resolves the backend origin for a single request, so a
// changed backendUrl setting governs the calls made after it.
type OriginFunc func(ctx context.Context) (string, error)

// Config takes either a fixed BaseURL or an Origin resolver; Origin
// wins when both are set.
type Config struct {
	BaseURL string
	Origin  OriginFunc
	Timeout time.Duration
}

type SignedURLRequest struct {
	AgentID string `json:"agentId"`
}

type SignedURLResponse struct {
	SignedURL string `json:"signedUrl"`
}

type AnalyzePageRequest struct {
	SessionID   string `json:"sessionId"`
	URL         string `json:"url"`
	CleanedText string `json:"cleanedText"`
}

type AnalyzeURLRequest struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type PageAnalysis struct {
	Summary  string    `json:"summary"`
	Topics   []string  `json:"topics"`
	Sections []Section `json:"sections"`
}
