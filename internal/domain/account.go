package domain

// Position is an open exchange position as reported by the account transport.
type Position struct {
	Symbol           string
	PositionAmt      float64
	EntryPrice       float64
	MarkPrice        float64
	UnrealizedProfit float64
	LiquidationPrice float64
}

// AccountContext is the account view built fresh on each decision cycle.
// It is never cached across cycles.
type AccountContext struct {
	Equity           float64
	AvailableBalance float64
	UnrealizedPnl    float64
	RealizedPnlDaily float64
	TradeCountDaily  int
	OpenPositions    []Position
	PositionSizeUsd  float64
}

// RiskDecision is the output of the risk gate. Recomputed every cycle,
// never persisted.
type RiskDecision struct {
	IsTradingAllowed bool
	Reason           string
	PositionSizeUsd  float64
}
