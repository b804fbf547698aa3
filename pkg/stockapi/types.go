package stockapi

import "stockdash/internal/domain"

// Payload types, re-exported so callers outside this module need not import
// internal packages.
type (
	Period            = domain.Period
	HistoricalRecord  = domain.HistoricalRecord
	PricePayload      = domain.PricePayload
	AnalysisPayload   = domain.AnalysisPayload
	FinancialsPayload = domain.FinancialsPayload
	DividendsPayload  = domain.DividendsPayload
	PredictionPayload = domain.PredictionPayload
	TrackedStock      = domain.TrackedStock
	DashboardEntry    = domain.DashboardEntry
	AddStockResponse  = domain.AddStockResponse
	Holdings          = domain.Holdings
)
