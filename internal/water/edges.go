package water

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// feature is a water polygon in tile pixels
type feature struct {
	id    float64
	ocean bool
	polys orb.MultiPolygon
}

// edge is one segment of a feature ring
type edge struct {
	a, b orb.Point
	id   float64
}

// Point implements orb.Pointer, edges are indexed by their midpoint
func (e edge) Point() orb.Point {
	return orb.Point{(e.a[0] + e.b[0]) / 2, (e.a[1] + e.b[1]) / 2}
}

func (e edge) same(o edge) bool {
	return (e.a == o.a && e.b == o.b) || (e.a == o.b && e.b == o.a)
}

type ring struct {
	r     orb.Ring
	bound orb.Bound
	id    float64
}

// edgeIndex decides which feature edges get a slope. Edges entirely outside
// the tile, edges shared between features and edges lying inside another
// feature are skipped.
type edgeIndex struct {
	tile  orb.Bound
	tree  *quadtree.Quadtree
	rings []ring
	buf   []orb.Pointer
}

func newEdgeIndex(ppt float64, features []feature) *edgeIndex {
	idx := &edgeIndex{
		tile: orb.Bound{Max: orb.Point{ppt, ppt}},
		tree: quadtree.New(orb.Bound{Min: orb.Point{-ppt, -ppt}, Max: orb.Point{2 * ppt, 2 * ppt}}),
	}

	for _, f := range features {
		for _, p := range f.polys {
			for _, r := range p {
				idx.rings = append(idx.rings, ring{r: r, bound: r.Bound(), id: f.id})
				for k := 0; k+1 < len(r); k++ {
					// edges beyond the tile buffer can not be compared, they are
					// never drawn either
					_ = idx.tree.Add(edge{a: r[k], b: r[k+1], id: f.id})
				}
			}
		}
	}

	return idx
}

func (idx *edgeIndex) skip(e edge) bool {
	if !idx.tile.Contains(e.a) && !idx.tile.Contains(e.b) {
		return true
	}

	mid := e.Point()
	idx.buf = idx.tree.InBoundMatching(idx.buf[:0], mid.Bound().Pad(1e-9), func(p orb.Pointer) bool {
		o := p.(edge)
		return o.id != e.id && o.same(e)
	})
	if len(idx.buf) > 0 {
		return true
	}

	for _, r := range idx.rings {
		if r.id == e.id {
			continue
		}
		if !r.bound.Contains(e.a) || !r.bound.Contains(e.b) {
			continue
		}
		if planar.RingContains(r.r, e.a) && planar.RingContains(r.r, e.b) && planar.RingContains(r.r, mid) {
			return true
		}
	}

	return false
}
