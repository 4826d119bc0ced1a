// Package export defines the outbound port for report exports.
package export

import (
	"context"

	"coppia/internal/core"
)

// MonthlySummary is the export payload for one couple and one month of
// shared spending.
type MonthlySummary struct {
	CoupleName string
	Month      string // YYYY-MM
	Categories []core.CategoryTotal
	Total      core.Money
}

// SummaryWriter writes monthly summaries to an external destination.
type SummaryWriter interface {
	WriteMonthlySummary(ctx context.Context, s MonthlySummary) error
}
