package analysis

import "context"

// Analyzer forwards finished or ongoing matches to an external analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, in Request) (*Report, error)
}

var _ Analyzer = (*Client)(nil)
