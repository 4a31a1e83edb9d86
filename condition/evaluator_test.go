package condition

import (
	"testing"
)

func TestTableEvaluator_registration(t *testing.T) {
	ev := NewTableEvaluator()

	if ev.RegisterComparisonExpression(1, 1, LogicAnd, nil) {
		t.Fatal(`expected empty elements to be refused`)
	}
	if !ev.RegisterComparisonExpression(1, 1, LogicAnd, []StateComparison{
		{Key: 10, Operator: CompareEqual, Value: 1},
	}) {
		t.Fatal(`expected registration to succeed`)
	}
	if ev.RegisterComparisonExpression(1, 1, LogicAnd, []StateComparison{
		{Key: 10, Operator: CompareEqual, Value: 1},
	}) {
		t.Fatal(`expected duplicate key to be refused`)
	}

	// sub-expressions may only reference registered expressions
	if ev.RegisterSubExpression(2, 1, LogicAnd, []SubExpression{{Key: 99, Condition: true}}) {
		t.Fatal(`expected an unregistered reference to be refused`)
	}
	if !ev.RegisterSubExpression(2, 1, LogicAnd, []SubExpression{{Key: 1, Condition: true}}) {
		t.Fatal(`expected registration to succeed`)
	}

	expr, ok := ev.FindExpression(2)
	if !ok || expr.Kind != KindSubExpression {
		t.Fatalf(`expression = %+v, %v`, expr, ok)
	}
	chunk, ok := ev.FindChunk(1)
	if !ok || len(chunk.StateComparisons) != 1 || len(chunk.SubExpressions) != 1 {
		t.Fatalf(`chunk = %+v, %v`, chunk, ok)
	}
}

func TestTableEvaluator_evaluateComparisons(t *testing.T) {
	ev := NewTableEvaluator()
	r := NewMapReservoir()

	ev.RegisterComparisonExpression(1, 1, LogicAnd, []StateComparison{
		{Key: 10, Operator: CompareGreaterEqual, Value: 5},
		{Key: 11, Operator: CompareNotEqual, Value: 0},
	})
	ev.RegisterComparisonExpression(2, 1, LogicOr, []StateComparison{
		{Key: 10, Operator: CompareLess, Value: 0},
		{Key: 11, Operator: CompareEqual, Value: 7},
	})

	if got := ev.EvaluateExpression(1, r); got != EvaluationUnknown {
		t.Fatalf(`missing states evaluate to %d, want unknown`, got)
	}

	r.SetValue(10, 5)
	r.SetValue(11, 7)
	if got := ev.EvaluateExpression(1, r); got != EvaluationTrue {
		t.Fatalf(`and = %d, want true`, got)
	}
	if got := ev.EvaluateExpression(2, r); got != EvaluationTrue {
		t.Fatalf(`or = %d, want true`, got)
	}

	r.SetValue(11, 0)
	if got := ev.EvaluateExpression(1, r); got != EvaluationFalse {
		t.Fatalf(`and = %d, want false`, got)
	}
	if got := ev.EvaluateExpression(2, r); got != EvaluationFalse {
		t.Fatalf(`or = %d, want false`, got)
	}

	if got := ev.EvaluateExpression(42, r); got != EvaluationUnknown {
		t.Fatalf(`missing expression = %d, want unknown`, got)
	}
}

func TestTableEvaluator_evaluateSubExpressions(t *testing.T) {
	ev := NewTableEvaluator()
	r := NewMapReservoir()

	ev.RegisterComparisonExpression(1, 1, LogicAnd, []StateComparison{
		{Key: 10, Operator: CompareEqual, Value: 1},
	})
	ev.RegisterComparisonExpression(2, 1, LogicAnd, []StateComparison{
		{Key: 11, Operator: CompareEqual, Value: 1},
	})
	// fires when 1 holds and 2 does not
	ev.RegisterSubExpression(3, 1, LogicAnd, []SubExpression{
		{Key: 1, Condition: true},
		{Key: 2, Condition: false},
	})

	r.SetValue(10, 1)
	r.SetValue(11, 0)
	if got := ev.EvaluateExpression(3, r); got != EvaluationTrue {
		t.Fatalf(`evaluation = %d, want true`, got)
	}

	r.SetValue(11, 1)
	if got := ev.EvaluateExpression(3, r); got != EvaluationFalse {
		t.Fatalf(`evaluation = %d, want false`, got)
	}

	r.Remove(10)
	if got := ev.EvaluateExpression(3, r); got != EvaluationUnknown {
		t.Fatalf(`evaluation = %d, want unknown`, got)
	}
}
