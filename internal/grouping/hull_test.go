package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvexHull_Square(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {1, 1}, {2, 2}, {0, 2}, {1, 0}, {0, 0}}
	assert.Equal(t, []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}, ConvexHull(pts))
}

func TestConvexHull_Degenerate(t *testing.T) {
	assert.Empty(t, ConvexHull(nil))
	assert.Equal(t, []Point{{1, 1}}, ConvexHull([]Point{{1, 1}, {1, 1}}))
	assert.Equal(t, []Point{{0, 0}, {3, 3}}, ConvexHull([]Point{{3, 3}, {1, 1}, {0, 0}, {2, 2}}))
}

func TestConvexHull_DoesNotMutateInput(t *testing.T) {
	pts := []Point{{2, 2}, {0, 0}, {2, 0}}
	ConvexHull(pts)
	assert.Equal(t, []Point{{2, 2}, {0, 0}, {2, 0}}, pts)
}
