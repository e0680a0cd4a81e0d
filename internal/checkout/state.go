package checkout

// State is a step of the cart to order conversion.
type State string

const (
	StateInit             State = "init"
	StateCartLoaded       State = "cart_loaded"
	StateStockValidated   State = "stock_validated"
	StateOrderPersisted   State = "order_persisted"
	StateItemsPersisted   State = "items_persisted"
	StateStockDecremented State = "stock_decremented"
	StateCartCleared      State = "cart_cleared"
	StateDone             State = "done"
)

var transitions = map[State]State{
	StateInit:             StateCartLoaded,
	StateCartLoaded:       StateStockValidated,
	StateStockValidated:   StateOrderPersisted,
	StateOrderPersisted:   StateItemsPersisted,
	StateItemsPersisted:   StateStockDecremented,
	StateStockDecremented: StateCartCleared,
	StateCartCleared:      StateDone,
}

// Next returns the state that follows s, or s itself when s is terminal.
func (s State) Next() State {
	if next, ok := transitions[s]; ok {
		return next
	}
	return s
}
