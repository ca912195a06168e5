package model

// StrategyContext is the opaque payload a strategy attaches to a proposal.
// Implementations are value types so hooks only ever see a copy.
type StrategyContext interface {
	Strategy() string
}

// ContextAs downcasts ctx to the concrete context of a known strategy.
func ContextAs[T StrategyContext](ctx StrategyContext) (T, bool) {
	value, ok := ctx.(T)
	return value, ok
}
