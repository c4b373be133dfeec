package api

import (
	"context"
	"time"

	"github.com/vytor/chessduel/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	SessionService  services.SessionService
	MatchService    services.MatchService
	LedgerService   services.LedgerService
	AnalysisService services.AnalysisService
	Store           Pinger
	RequestTimeout  time.Duration
	// AnalysisTimeout is added to RequestTimeout for the analysis route.
	AnalysisTimeout time.Duration
	// DevMode exposes wrapped error text in responses.
	DevMode bool
}
