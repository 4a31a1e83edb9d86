package mortontree

type (
	// Vector is a point in the tree's absolute coordinate system. 2D spaces
	// ignore Z.
	Vector struct {
		X, Y, Z float64
	}

	// AABB is an axis-aligned bounding box, Min through Max inclusive.
	AABB struct {
		Min, Max Vector
	}
)

// NewAABB builds the AABB spanning a and b, ordering each axis.
func NewAABB(a, b Vector) AABB {
	return AABB{
		Min: Vector{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vector{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// PointAABB builds the degenerate AABB covering only p.
func PointAABB(p Vector) AABB {
	return AABB{Min: p, Max: p}
}
