package mortontree

// Order is a Morton order: per-axis quantised coordinates, bit-interleaved
// one bit per dimension per level, low axis bit in the lowest output bit.
type Order uint32

const (
	orderBits = 32

	// LevelLimit2 is the deepest supported subdivision of a 2D space.
	LevelLimit2 = (orderBits - 1) / 2

	// LevelLimit3 is the deepest supported subdivision of a 3D space.
	LevelLimit3 = (orderBits - 1) / 3
)

// Space quantises absolute coordinates into Morton orders over a fixed world
// AABB. Use [NewSpace2] or [NewSpace3].
type Space interface {
	// Dimension returns the number of interleaved axes.
	Dimension() int

	// LevelCap returns the deepest subdivision level.
	LevelCap() int

	// AABB returns the world bounds.
	AABB() AABB

	// PointOrder returns the Morton order of point at the deepest level,
	// with each axis clamped to [0, axisMax].
	PointOrder(point Vector, axisMax Order) Order
}

type spaceBase struct {
	aabb     AABB
	scale    Vector
	levelCap int
}

// Space2 interleaves X and Y into a linear-quadtree order.
type Space2 struct {
	spaceBase
}

// Space3 interleaves X, Y, and Z into a linear-octree order.
type Space3 struct {
	spaceBase
}

// NewSpace2 constructs a 2D Morton space over aabb, subdivided levelCap
// times. Level caps beyond LevelLimit2 are clamped; negative caps are
// clamped to zero.
func NewSpace2(aabb AABB, levelCap int) *Space2 {
	return &Space2{newSpaceBase(aabb, levelCap, LevelLimit2)}
}

// NewSpace3 constructs a 3D Morton space over aabb, subdivided levelCap
// times. Level caps beyond LevelLimit3 are clamped; negative caps are
// clamped to zero.
func NewSpace3(aabb AABB, levelCap int) *Space3 {
	return &Space3{newSpaceBase(aabb, levelCap, LevelLimit3)}
}

func newSpaceBase(aabb AABB, levelCap, levelLimit int) spaceBase {
	levelCap = max(0, min(levelCap, levelLimit))
	units := float64(int64(1) << levelCap)
	return spaceBase{
		aabb: aabb,
		scale: Vector{
			X: axisScale(units, aabb.Max.X-aabb.Min.X),
			Y: axisScale(units, aabb.Max.Y-aabb.Min.Y),
			Z: axisScale(units, aabb.Max.Z-aabb.Min.Z),
		},
		levelCap: levelCap,
	}
}

// Dimension implements [Space].
func (x *Space2) Dimension() int { return 2 }

// Dimension implements [Space].
func (x *Space3) Dimension() int { return 3 }

// LevelCap implements [Space].
func (x *spaceBase) LevelCap() int { return x.levelCap }

// AABB implements [Space].
func (x *spaceBase) AABB() AABB { return x.aabb }

// PointOrder implements [Space].
func (x *Space2) PointOrder(point Vector, axisMax Order) Order {
	e0 := transformAxis(point.X, x.aabb.Min.X, x.aabb.Max.X, x.scale.X)
	e1 := transformAxis(point.Y, x.aabb.Min.Y, x.aabb.Max.Y, x.scale.Y)
	return separateBits2(clampAxisOrder(e0, axisMax))<<0 |
		separateBits2(clampAxisOrder(e1, axisMax))<<1
}

// PointOrder implements [Space].
func (x *Space3) PointOrder(point Vector, axisMax Order) Order {
	e0 := transformAxis(point.X, x.aabb.Min.X, x.aabb.Max.X, x.scale.X)
	e1 := transformAxis(point.Y, x.aabb.Min.Y, x.aabb.Max.Y, x.scale.Y)
	e2 := transformAxis(point.Z, x.aabb.Min.Z, x.aabb.Max.Z, x.scale.Z)
	return separateBits3(clampAxisOrder(e0, axisMax))<<0 |
		separateBits3(clampAxisOrder(e1, axisMax))<<1 |
		separateBits3(clampAxisOrder(e2, axisMax))<<2
}

const axisEpsilon = 1e-12

func axisScale(units, size float64) float64 {
	if size < axisEpsilon {
		return 0
	}
	return units / size
}

// transformAxis maps an absolute coordinate into Morton axis units, clamping
// to the world bounds.
func transformAxis(value, lo, hi, scale float64) float64 {
	if value < lo {
		return 0
	}
	if value > hi {
		value = hi
	}
	return (value - lo) * scale
}

func clampAxisOrder(value float64, axisMax Order) Order {
	if value < 1 {
		return 0
	}
	if o := Order(value); o < axisMax {
		return o
	}
	return axisMax
}

// separateBits2 spreads the low 16 bits of b one apart.
func separateBits2(b Order) Order {
	b &= 0xffff
	b = (b | b<<8) & 0x00ff00ff
	b = (b | b<<4) & 0x0f0f0f0f
	b = (b | b<<2) & 0x33333333
	b = (b | b<<1) & 0x55555555
	return b
}

// separateBits3 spreads the low 10 bits of b two apart.
func separateBits3(b Order) Order {
	b &= 0x3ff
	b = (b | b<<16) & 0x030000ff
	b = (b | b<<8) & 0x0300f00f
	b = (b | b<<4) & 0x030c30c3
	b = (b | b<<2) & 0x09249249
	return b
}
