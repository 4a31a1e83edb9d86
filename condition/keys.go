package condition

import (
	"sort"

	"golang.org/x/exp/constraints"
)

type (
	// StateKey identifies a state value in a [Reservoir]. Keys are typically
	// fingerprints of state names; the package treats them as opaque.
	StateKey uint32

	// ExpressionKey identifies an expression in an [Evaluator].
	ExpressionKey uint32

	// ChunkKey identifies a chunk of expression elements in an [Evaluator].
	ChunkKey uint32

	// Evaluation is a tri-valued expression result.
	Evaluation int8
)

const (
	// EvaluationUnknown means the expression could not be evaluated, e.g. a
	// referenced state is missing.
	EvaluationUnknown Evaluation = -1
	// EvaluationFalse means the expression evaluated to false.
	EvaluationFalse Evaluation = 0
	// EvaluationTrue means the expression evaluated to true.
	EvaluationTrue Evaluation = 1
)

// searchKey returns the lower-bound index of key in the sorted keys.
func searchKey[K constraints.Ordered](keys []K, key K) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
}

// insertKey inserts key into the sorted keys, deduplicated.
func insertKey[K constraints.Ordered](keys []K, key K) []K {
	i := searchKey(keys, key)
	if i < len(keys) && keys[i] == key {
		return keys
	}
	keys = append(keys, key)
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	return keys
}
