package condition

import (
	"slices"
	"sort"
	"weak"

	"github.com/joeycumines/logiface"
)

type (
	// DispatcherConfig models optional configuration for NewDispatcher.
	DispatcherConfig struct {
		// Logger receives structured diagnostics (wiring failures, contract
		// violations). May be nil.
		Logger *logiface.Logger[logiface.Event]

		// ReserveExpressions pre-sizes the expression-monitor table.
		ReserveExpressions int

		// ReserveStates pre-sizes the state-monitor table.
		ReserveStates int

		// ReserveCaches pre-sizes the behavior cache.
		ReserveCaches int
	}

	// Dispatcher owns the expression- and state-monitor tables and runs the
	// detect/fire cycle. Instances must be initialized using the
	// NewDispatcher factory. Not safe for concurrent use.
	Dispatcher struct {
		logger             *logiface.Logger[logiface.Event]
		expressionMonitors []*expressionMonitor // sorted by key
		stateMonitors      []*stateMonitor      // sorted by key
		behaviorCache      []behaviorRecord
		dispatchLock       bool
	}

	// expressionMonitor holds one expression's last evaluation and the
	// behaviors to fire on transition.
	expressionMonitor struct {
		behaviors []weak.Pointer[Behavior]
		key       ExpressionKey

		// lastEvaluation records whether the previous evaluation succeeded;
		// lastCondition is meaningful only when it did.
		lastEvaluation    bool
		lastCondition     bool
		evaluationRequest bool

		// constructed records whether this monitor's state subscriptions
		// have been wired into the state-monitor table.
		constructed bool
	}

	// stateMonitor lists the expressions to re-evaluate when one state
	// transitions.
	stateMonitor struct {
		expressionKeys []ExpressionKey // sorted, unique
		key            StateKey
	}

	behaviorRecord struct {
		behavior       weak.Pointer[Behavior]
		key            ExpressionKey
		evaluation     Evaluation
		lastEvaluation Evaluation
	}
)

// NewDispatcher constructs a dispatcher. The config may be nil.
func NewDispatcher(config *DispatcherConfig) *Dispatcher {
	var x Dispatcher
	if config != nil {
		x.logger = config.Logger
		x.expressionMonitors = make([]*expressionMonitor, 0, config.ReserveExpressions)
		x.stateMonitors = make([]*stateMonitor, 0, config.ReserveStates)
		x.behaviorCache = make([]behaviorRecord, 0, config.ReserveCaches)
	}
	return &x
}

func (x *expressionMonitor) evaluation() Evaluation {
	if !x.lastEvaluation {
		return EvaluationUnknown
	}
	if x.lastCondition {
		return EvaluationTrue
	}
	return EvaluationFalse
}

// RegisterBehavior registers behavior to fire when the expression under key
// changes evaluation. Registering the same behavior twice under one key is a
// no-op that reports true. The reserve parameter pre-sizes the monitor's
// behavior list, if positive. Reports false for a nil behavior.
func (x *Dispatcher) RegisterBehavior(key ExpressionKey, behavior *Behavior, reserve int) bool {
	if behavior == nil {
		return false
	}

	i := x.searchExpressionMonitor(key)
	var m *expressionMonitor
	if i < len(x.expressionMonitors) && x.expressionMonitors[i].key == key {
		m = x.expressionMonitors[i]
		if findBehavior(m, behavior) {
			return true
		}
	} else {
		m = &expressionMonitor{key: key}
		x.expressionMonitors = slices.Insert(x.expressionMonitors, i, m)
	}

	if reserve > 0 {
		m.behaviors = slices.Grow(m.behaviors, reserve)
	}
	m.behaviors = append(m.behaviors, weak.Make(behavior))
	return true
}

// UnregisterBehavior removes behavior from the expression under key, matched
// by identity.
func (x *Dispatcher) UnregisterBehavior(key ExpressionKey, behavior *Behavior) {
	if behavior == nil {
		return
	}
	if m := x.findExpressionMonitor(key); m != nil {
		removeBehavior(m, behavior)
	}
}

// UnregisterExpression drops the expression monitor under key, removing every
// behavior registered against it.
func (x *Dispatcher) UnregisterExpression(key ExpressionKey) {
	i := x.searchExpressionMonitor(key)
	if i < len(x.expressionMonitors) && x.expressionMonitors[i].key == key {
		x.expressionMonitors = slices.Delete(x.expressionMonitors, i, i+1)
	}
}

// UnregisterBehaviorAll removes behavior from every expression monitor,
// matched by identity.
func (x *Dispatcher) UnregisterBehaviorAll(behavior *Behavior) {
	if behavior == nil {
		return
	}
	for _, m := range x.expressionMonitors {
		removeBehavior(m, behavior)
	}
}

// Detect wires newly registered expression monitors into the state-monitor
// table, then marks for re-evaluation every expression depending on a state
// the reservoir reports as transitioned. The reserve parameter pre-sizes
// state monitors' expression lists, if positive.
//
// Wiring a monitor fails when its expression or chunk is missing from the
// evaluator, or when it references a sub-expression whose own monitor has not
// been wired yet (a forward reference; this rule is what makes cyclic
// references unwirable). Detect reports false if any monitor failed to wire
// this pass; failed monitors are left unwired and retried on the next call,
// and every other monitor proceeds normally.
func (x *Dispatcher) Detect(evaluator Evaluator, reservoir Reservoir, reserve int) bool {
	ok := true
	for _, m := range x.expressionMonitors {
		if m.constructed {
			continue
		}
		if x.wireExpression(m.key, m.key, evaluator, reserve) {
			m.constructed = true
		} else {
			ok = false
			x.logger.Warning().
				Uint64(`expression`, uint64(m.key)).
				Log(`condition: expression monitor could not be wired`)
		}
	}
	x.detectStateTransitions(reservoir)
	return ok
}

// Dispatch re-evaluates every expression marked by Detect, snapshots one
// cache entry per live behavior of each expression whose evaluation changed,
// and fires the cache in order: expression monitors are visited sorted by
// key, behaviors within one expression in registration order. Because the
// cache is snapshotted before firing, a behavior may freely register or
// unregister behaviors, including itself; only already-expired entries are
// skipped.
//
// Reports false on a re-entrant call, which is a contract violation and
// otherwise a no-op.
func (x *Dispatcher) Dispatch(evaluator Evaluator, reservoir Reservoir) bool {
	if x.dispatchLock {
		x.logger.Warning().Log(`condition: re-entrant dispatch`)
		return false
	}
	x.dispatchLock = true
	defer func() { x.dispatchLock = false }()

	// claim the cache; behaviors must not observe a shared buffer
	cache := x.behaviorCache[:0]
	x.behaviorCache = nil

	for i := 0; i < len(x.expressionMonitors); {
		m := x.expressionMonitors[i]
		if m.evaluationRequest {
			m.evaluationRequest = false
			cache = cacheBehaviors(cache, m, evaluator, reservoir)
			if len(m.behaviors) == 0 {
				x.expressionMonitors = slices.Delete(x.expressionMonitors, i, i+1)
				continue
			}
		}
		i++
	}

	for _, rec := range cache {
		if b := rec.behavior.Value(); b != nil {
			b.invoke(rec.key, rec.evaluation, rec.lastEvaluation)
		}
	}

	clear(cache)
	x.behaviorCache = cache[:0]
	return true
}

// wireExpression subscribes owner to every state key the expression under key
// references, directly or through sub-expression references. Sub-expression
// references require the referenced monitor to exist and be constructed
// already; constructed monitors form a topological order, so the recursion
// terminates.
func (x *Dispatcher) wireExpression(owner, key ExpressionKey, evaluator Evaluator, reserve int) bool {
	expr, ok := evaluator.FindExpression(key)
	if !ok {
		return false
	}
	chunk, ok := evaluator.FindChunk(expr.Chunk)
	if !ok {
		return false
	}
	switch expr.Kind {
	case KindStateComparison:
		if expr.Begin < 0 || expr.End > len(chunk.StateComparisons) || expr.Begin > expr.End {
			return false
		}
		for _, el := range chunk.StateComparisons[expr.Begin:expr.End] {
			x.subscribeState(el.Key, owner, reserve)
		}
		return true
	case KindSubExpression:
		if expr.Begin < 0 || expr.End > len(chunk.SubExpressions) || expr.Begin > expr.End {
			return false
		}
		for _, el := range chunk.SubExpressions[expr.Begin:expr.End] {
			sub := x.findExpressionMonitor(el.Key)
			if sub == nil || !sub.constructed {
				return false
			}
			if !x.wireExpression(owner, el.Key, evaluator, reserve) {
				return false
			}
		}
		return true
	}
	return false
}

// subscribeState records that the expression under owner must re-evaluate
// when state transitions.
func (x *Dispatcher) subscribeState(state StateKey, owner ExpressionKey, reserve int) {
	i := sort.Search(len(x.stateMonitors), func(i int) bool { return x.stateMonitors[i].key >= state })
	var m *stateMonitor
	if i < len(x.stateMonitors) && x.stateMonitors[i].key == state {
		m = x.stateMonitors[i]
	} else {
		m = &stateMonitor{key: state}
		x.stateMonitors = slices.Insert(x.stateMonitors, i, m)
	}
	if reserve > 0 {
		m.expressionKeys = slices.Grow(m.expressionKeys, reserve)
	}
	m.expressionKeys = insertKey(m.expressionKeys, owner)
}

// detectStateTransitions reads each monitored state's transition flag and
// marks the dependent expressions. State monitors whose expression lists
// empty out are erased.
func (x *Dispatcher) detectStateTransitions(reservoir Reservoir) {
	for i := 0; i < len(x.stateMonitors); {
		m := x.stateMonitors[i]
		if transition := reservoir.Transition(m.key); transition >= 0 {
			x.notifyStateTransition(m, transition > 0)
			if len(m.expressionKeys) == 0 {
				x.stateMonitors = slices.Delete(x.stateMonitors, i, i+1)
				continue
			}
		}
		i++
	}
}

// notifyStateTransition requests re-evaluation of every expression depending
// on the transitioned state. An expression whose last evaluation was unknown
// is only requested when the state became valid; a re-evaluation without the
// state cannot succeed either. Keys whose expression monitors no longer exist are
// pruned.
func (x *Dispatcher) notifyStateTransition(m *stateMonitor, valid bool) {
	for i := 0; i < len(m.expressionKeys); {
		em := x.findExpressionMonitor(m.expressionKeys[i])
		if em == nil {
			m.expressionKeys = slices.Delete(m.expressionKeys, i, i+1)
			continue
		}
		em.evaluationRequest = valid || em.lastEvaluation
		i++
	}
}

// cacheBehaviors re-evaluates m's expression, and, if the evaluation changed,
// appends one cache entry per live behavior. The behavior list is compacted
// either way.
func cacheBehaviors(cache []behaviorRecord, m *expressionMonitor, evaluator Evaluator, reservoir Reservoir) []behaviorRecord {
	last := m.evaluation()
	result := evaluator.EvaluateExpression(m.key, reservoir)
	m.lastEvaluation = result >= 0
	m.lastCondition = result > 0
	now := m.evaluation()

	live := m.behaviors[:0]
	for _, entry := range m.behaviors {
		if entry.Value() == nil {
			continue
		}
		live = append(live, entry)
		if now != last {
			cache = append(cache, behaviorRecord{
				behavior:       entry,
				key:            m.key,
				evaluation:     now,
				lastEvaluation: last,
			})
		}
	}
	clear(m.behaviors[len(live):])
	m.behaviors = live
	return cache
}

func (x *Dispatcher) searchExpressionMonitor(key ExpressionKey) int {
	return sort.Search(len(x.expressionMonitors), func(i int) bool {
		return x.expressionMonitors[i].key >= key
	})
}

func (x *Dispatcher) findExpressionMonitor(key ExpressionKey) *expressionMonitor {
	if i := x.searchExpressionMonitor(key); i < len(x.expressionMonitors) && x.expressionMonitors[i].key == key {
		return x.expressionMonitors[i]
	}
	return nil
}

// findBehavior reports whether behavior is already registered on m,
// compacting expired entries along the way.
func findBehavior(m *expressionMonitor, behavior *Behavior) bool {
	found := false
	live := m.behaviors[:0]
	for _, entry := range m.behaviors {
		v := entry.Value()
		if v == nil {
			continue
		}
		if v == behavior {
			found = true
		}
		live = append(live, entry)
	}
	clear(m.behaviors[len(live):])
	m.behaviors = live
	return found
}

// removeBehavior removes the first entry holding behavior from m, compacting
// expired entries along the way.
func removeBehavior(m *expressionMonitor, behavior *Behavior) bool {
	found := false
	live := m.behaviors[:0]
	for _, entry := range m.behaviors {
		v := entry.Value()
		if v == nil {
			continue
		}
		if !found && v == behavior {
			found = true
			continue
		}
		live = append(live, entry)
	}
	clear(m.behaviors[len(live):])
	m.behaviors = live
	return found
}
