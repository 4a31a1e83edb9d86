// Package mortontree provides a linear quadtree/octree for broad-phase
// overlap detection, keyed by Morton order.
//
// # Architecture
//
// A [Tree] maps Morton orders to cells, each holding a weak reference to
// exactly one attached [Handle]. The Morton order of an axis-aligned bounding
// box identifies the smallest tree cell whose covered region contains the
// box; spatially close boxes land on adjacent keys, so the tree stays a flat
// sorted structure rather than a pointer-linked hierarchy. The parent of the
// cell at order k is at order (k-1) >> dimension.
//
// Handles anchor external objects into the tree: [Tree.Attach] computes the
// cell for an AABB and links the handle to it, [Tree.Detach] unlinks it, and
// [Tree.DetectCollision] enumerates every pair of handles whose cells
// coincide or nest, invoking a callback with both payloads. Detaching a
// handle from inside the callback is safe and expected; attaching during the
// enumeration fails.
//
// The tree is single-threaded; construct one per owning goroutine.
package mortontree
