package domain

// Action represents a trading action proposed by an advisor or recorded in history.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// IsActionable reports whether the action would move money if executed.
func (a Action) IsActionable() bool {
	return a == Buy || a == Sell
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"
	CloseReasonTakeProfit CloseReason = "TP"
	CloseReasonAdvisor    CloseReason = "ADVISOR" // Advisor recommended the exit
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonUnknown    CloseReason = "Unknown"
)
