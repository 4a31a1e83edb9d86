package condition

import (
	"testing"
)

func TestMapReservoir_transitions(t *testing.T) {
	r := NewMapReservoir()

	if got := r.Transition(1); got >= 0 {
		t.Fatalf(`unknown state transition = %d, want negative`, got)
	}

	if !r.SetValue(1, 10) {
		t.Fatal(`expected set to succeed`)
	}
	if got := r.Transition(1); got <= 0 {
		t.Fatalf(`created state transition = %d, want positive`, got)
	}
	if got := r.Transition(1); got >= 0 {
		t.Fatalf(`transition flag must clear on read, got %d`, got)
	}

	// writing the held value is not a transition
	r.SetValue(1, 10)
	if got := r.Transition(1); got >= 0 {
		t.Fatalf(`same-value write transition = %d, want negative`, got)
	}

	r.SetValue(1, 11)
	if got := r.Transition(1); got <= 0 {
		t.Fatalf(`value change transition = %d, want positive`, got)
	}

	if !r.Remove(1) {
		t.Fatal(`expected remove to succeed`)
	}
	if got := r.Transition(1); got != 0 {
		t.Fatalf(`removed state transition = %d, want 0`, got)
	}
	if got := r.Transition(1); got >= 0 {
		t.Fatalf(`forgotten state transition = %d, want negative`, got)
	}
	if r.Remove(1) {
		t.Fatal(`expected removing a missing state to fail`)
	}
}

func TestMapReservoir_value(t *testing.T) {
	r := NewMapReservoir()
	if _, ok := r.Value(5); ok {
		t.Fatal(`expected a missing state`)
	}
	r.SetValue(5, -3)
	if v, ok := r.Value(5); !ok || v != -3 {
		t.Fatalf(`value = %d, %v`, v, ok)
	}
	r.Remove(5)
	if _, ok := r.Value(5); ok {
		t.Fatal(`expected the state to be missing after remove`)
	}
}

func TestMapReservoir_operate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		op      Operator
		initial int64
		operand int64
		want    int64
	}{
		{`copy`, OperatorCopy, 1, 9, 9},
		{`add`, OperatorAdd, 10, 3, 13},
		{`sub`, OperatorSub, 10, 3, 7},
		{`mul`, OperatorMul, 10, 3, 30},
		{`div`, OperatorDiv, 10, 3, 3},
		{`or`, OperatorOr, 0b1010, 0b0110, 0b1110},
		{`and`, OperatorAnd, 0b1010, 0b0110, 0b0010},
		{`xor`, OperatorXor, 0b1010, 0b0110, 0b1100},
		{`shift left`, OperatorShiftLeft, 3, 2, 12},
		{`shift right`, OperatorShiftRight, -12, 2, -3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NewMapReservoir()
			r.SetValue(1, tc.initial)
			if !r.Operate(1, tc.op, tc.operand) {
				t.Fatal(`expected operate to succeed`)
			}
			if v, _ := r.Value(1); v != tc.want {
				t.Fatalf(`value = %d, want %d`, v, tc.want)
			}
		})
	}
}

func TestMapReservoir_operateFailures(t *testing.T) {
	r := NewMapReservoir()

	if r.Operate(1, OperatorAdd, 1) {
		t.Fatal(`expected operate on a missing state to fail`)
	}
	// copy creates
	if !r.Operate(1, OperatorCopy, 4) {
		t.Fatal(`expected copy to create the state`)
	}

	if r.Operate(1, OperatorDiv, 0) {
		t.Fatal(`expected division by zero to fail`)
	}
	if r.Operate(1, OperatorShiftLeft, -1) {
		t.Fatal(`expected a negative shift to fail`)
	}
	if r.Operate(1, OperatorShiftRight, -1) {
		t.Fatal(`expected a negative shift to fail`)
	}
	if v, _ := r.Value(1); v != 4 {
		t.Fatalf(`failed operations must not write; value = %d`, v)
	}
}
