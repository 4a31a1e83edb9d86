package mortontree

import (
	"math/bits"
	"slices"
	"sort"
	"weak"

	"github.com/joeycumines/logiface"
)

type (
	// TreeConfig models optional configuration for NewTree.
	TreeConfig struct {
		// Logger receives structured diagnostics. May be nil.
		Logger *logiface.Logger[logiface.Event]
	}

	// Handle anchors one external object into a tree. The tree holds the
	// handle weakly; the owner keeps the strong reference, and dropping it
	// vacates the handle's cell as of the next enumeration.
	Handle[T any] struct {
		// Payload is the user-supplied id passed to overlap callbacks.
		Payload T

		cell *cell[T]
	}

	// cell is one entry in the linear tree. Multiple cells may share an
	// order; each holds at most one attachee.
	cell[T any] struct {
		attachee weak.Pointer[Handle[T]]
		order    Order
	}

	// Tree is a linear quadtree/octree over a [Space]. Instances must be
	// initialized using the NewTree factory. Not safe for concurrent use.
	Tree[T any] struct {
		logger *logiface.Logger[logiface.Event]
		space  Space
		cells  []*cell[T] // ascending by order
		// detecting forbids cell creation for the duration of one
		// DetectCollision call.
		detecting bool
	}
)

// NewHandle constructs a detached handle carrying payload.
func NewHandle[T any](payload T) *Handle[T] {
	return &Handle[T]{Payload: payload}
}

// IsAttached reports whether the handle currently occupies a tree cell.
func (x *Handle[T]) IsAttached() bool { return x.cell != nil }

// NewTree constructs a tree over space. The config may be nil.
func NewTree[T any](space Space, config *TreeConfig) *Tree[T] {
	if space == nil {
		panic(`mortontree: nil space`)
	}
	x := Tree[T]{space: space}
	if config != nil {
		x.logger = config.Logger
	}
	return &x
}

// WorldAABB returns the bounds orders are computed against.
func (x *Tree[T]) WorldAABB() AABB { return x.space.AABB() }

// LevelCap returns the tree's deepest subdivision level.
func (x *Tree[T]) LevelCap() int { return x.space.LevelCap() }

// Attach links handle to the cell covering aabb, creating the cell entry. If
// the handle is already attached, here or to another tree, it is moved.
// Reports false during DetectCollision, when no cell may be created; the
// caller retries after the enumeration.
func (x *Tree[T]) Attach(handle *Handle[T], aabb AABB) bool {
	if handle == nil {
		panic(`mortontree: nil handle`)
	}
	if x.detecting {
		x.logger.Warning().Log(`mortontree: attach during collision detection`)
		return false
	}

	order := x.CalcOrder(aabb)
	c := &cell[T]{order: order}
	i := sort.Search(len(x.cells), func(i int) bool { return x.cells[i].order > order })
	x.cells = slices.Insert(x.cells, i, c)

	if handle.cell != nil {
		handle.cell.attachee = weak.Pointer[Handle[T]]{}
	}
	c.attachee = weak.Make(handle)
	handle.cell = c
	return true
}

// Detach unlinks handle from its cell. The vacated cell entry is compacted
// during the next DetectCollision. Permitted at any time, including inside an
// overlap callback; a detached handle no-ops.
func (x *Tree[T]) Detach(handle *Handle[T]) {
	if handle == nil || handle.cell == nil {
		return
	}
	handle.cell.attachee = weak.Pointer[Handle[T]]{}
	handle.cell = nil
}

// Clear detaches every attached handle and empties the tree. Reports false
// during DetectCollision.
func (x *Tree[T]) Clear() bool {
	if x.detecting {
		return false
	}
	for _, c := range x.cells {
		if h := c.attachee.Value(); h != nil {
			h.cell = nil
		}
	}
	clear(x.cells)
	x.cells = x.cells[:0]
	return true
}

// DetectCollision enumerates every pair of attached handles whose cells share
// an order or nest along an ancestor chain, invoking cb with both payloads.
// Either handle may be detached inside cb; liveness is re-checked after every
// invocation. Reports false on a re-entrant call, which is a contract
// violation and otherwise a no-op.
func (x *Tree[T]) DetectCollision(cb func(a, b T)) bool {
	if cb == nil {
		panic(`mortontree: nil callback`)
	}
	if x.detecting {
		x.logger.Warning().Log(`mortontree: re-entrant collision detection`)
		return false
	}
	x.detecting = true
	defer func() { x.detecting = false }()

	x.compact()

	dimension := x.space.Dimension()
	for i, c := range x.cells {
		// cells sharing c's order, visited once per unordered pair
		if j := i + 1; j < len(x.cells) && x.cells[j].order == c.order {
			x.pairRange(c, j, cb)
		}
		// the ancestor chain
		for order := c.order; order > 0; {
			order = (order - 1) >> dimension
			if j, ok := x.searchOrder(order); ok {
				x.pairRange(c, j, cb)
			}
		}
	}
	return true
}

// CalcOrder returns the Morton order of the smallest cell whose covered
// region contains aabb.
func (x *Tree[T]) CalcOrder(aabb AABB) Order {
	level := x.space.LevelCap()
	if level <= 0 {
		return 0
	}
	dimension := x.space.Dimension()
	axisMax := Order(1)<<level - 1
	minOrder := x.space.PointOrder(aabb.Min, axisMax)
	maxOrder := x.space.PointOrder(aabb.Max, axisMax)

	// the highest differing interleaved bit gives the levels to climb before
	// one cell covers both corners
	var climb int
	if distance := minOrder ^ maxOrder; distance != 0 {
		climb = (bits.Len32(uint32(distance)) + dimension - 1) / dimension
	}

	// linear-tree offset of the effective level, (N^level - 1) / (N - 1)
	n := uint64(1) << dimension
	base := (uint64(1)<<(dimension*(level-climb)) - 1) / (n - 1)
	return Order(base) + maxOrder>>(climb*dimension)
}

// compact erases cell entries vacated since the previous enumeration.
func (x *Tree[T]) compact() {
	live := x.cells[:0]
	for _, c := range x.cells {
		if c.attachee.Value() != nil {
			live = append(live, c)
		}
	}
	if removed := len(x.cells) - len(live); removed > 0 {
		x.logger.Debug().Int(`removed`, removed).Log(`mortontree: cells compacted`)
	}
	clear(x.cells[len(live):])
	x.cells = live
}

// pairRange pairs subject against every cell in the equal-order run starting
// at begin. The subject's liveness is re-checked after each callback, so a
// detach from inside cb stops further pairing against it.
func (x *Tree[T]) pairRange(subject *cell[T], begin int, cb func(a, b T)) {
	a := subject.attachee.Value()
	if a == nil {
		return
	}
	order := x.cells[begin].order
	for i := begin; i < len(x.cells) && x.cells[i].order == order; i++ {
		b := x.cells[i].attachee.Value()
		if b == nil {
			// vacated mid-enumeration; compacted next pass
			continue
		}
		cb(a.Payload, b.Payload)
		if a = subject.attachee.Value(); a == nil {
			return
		}
	}
}

// searchOrder returns the index of the first cell at order.
func (x *Tree[T]) searchOrder(order Order) (int, bool) {
	i := sort.Search(len(x.cells), func(i int) bool { return x.cells[i].order >= order })
	return i, i < len(x.cells) && x.cells[i].order == order
}
