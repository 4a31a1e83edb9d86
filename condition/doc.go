// Package condition provides a state-driven condition dispatcher: it monitors
// boolean expressions over a state reservoir, detects evaluation transitions
// between ticks, and invokes registered behaviors with stable ordering.
//
// # Architecture
//
// A [Dispatcher] ties together two external collaborators: a [Reservoir]
// storing state values that publishes per-key "transitioned since last read"
// flags, and an [Evaluator] storing expressions composed of state comparisons
// and sub-expression references. Concrete implementations of both are
// provided ([MapReservoir], [TableEvaluator]); hosts may substitute their
// own.
//
// Each tick the host calls [Dispatcher.Detect], which wires newly registered
// expressions into the state-monitor table and marks expressions whose states
// transitioned, then [Dispatcher.Dispatch], which re-evaluates the marked
// expressions and fires the behaviors of those whose evaluation changed.
// Behaviors are invoked with the expression key, the new evaluation, and the
// previous evaluation, each tri-valued (unknown / false / true).
//
// Behaviors are held weakly: the registrant keeps the sole strong reference
// to a [Behavior], and dropping it unregisters implicitly at the next cycle.
//
// Transitions that cancel out between two consecutive Dispatch calls
// (false to true to false) are not detected; only the net change between
// calls is observed, bounding the number of behavior invocations per tick.
//
// The dispatcher and both provided collaborators are not safe for concurrent
// use; construct one set per owning goroutine.
package condition
