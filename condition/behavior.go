package condition

type (
	// BehaviorFunc is invoked when a monitored expression's evaluation
	// changes, with the expression key, the new evaluation, and the previous
	// evaluation.
	BehaviorFunc func(key ExpressionKey, evaluation, lastEvaluation Evaluation)

	// Behavior wraps a BehaviorFunc so dispatchers can track it weakly. The
	// registrant keeps the sole strong reference; dropping it cancels the
	// behavior as of the next dispatch cycle.
	Behavior struct {
		fn BehaviorFunc
	}
)

// NewBehavior wraps fn. A nil fn panics.
func NewBehavior(fn BehaviorFunc) *Behavior {
	if fn == nil {
		panic(`condition: nil behavior func`)
	}
	return &Behavior{fn: fn}
}

// NewStateBehavior builds a behavior that applies op to the reservoir state
// under key, using operand, whenever the monitored expression settles on
// fireOn (true or false). Transitions from or to the unknown evaluation do
// not fire.
func NewStateBehavior(reservoir Reservoir, fireOn bool, key StateKey, op Operator, operand int64) *Behavior {
	if reservoir == nil {
		panic(`condition: nil reservoir`)
	}
	return NewBehavior(func(_ ExpressionKey, evaluation, lastEvaluation Evaluation) {
		if lastEvaluation >= 0 && evaluation >= 0 && fireOn == (evaluation > 0) {
			reservoir.Operate(key, op, operand)
		}
	})
}

func (x *Behavior) invoke(key ExpressionKey, evaluation, lastEvaluation Evaluation) {
	x.fn(key, evaluation, lastEvaluation)
}
