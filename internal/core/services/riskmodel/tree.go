package riskmodel

import (
	"math/rand"
	"sort"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// sample is one training row: normalised port and encoded tier.
type sample struct {
	x float64
	y int
}

// treeBuilder fits a CART classifier on a single scalar feature using Gini impurity.
type treeBuilder struct {
	maxDepth int
	classes  int
	rng      *rand.Rand
	nodes    []domain.TreeNode
}

func fitTree(samples []sample, classes, maxDepth int, seed int64) []domain.TreeNode {
	b := &treeBuilder{
		maxDepth: maxDepth,
		classes:  classes,
		rng:      rand.New(rand.NewSource(seed)),
	}
	sorted := make([]sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].x < sorted[j].x })
	b.build(sorted, 0)
	return b.nodes
}

// build appends the subtree for rows (sorted by x) and returns its node index.
func (b *treeBuilder) build(rows []sample, depth int) int {
	idx := len(b.nodes)
	counts := b.count(rows)
	b.nodes = append(b.nodes, domain.TreeNode{Leaf: true, Class: majority(counts)})

	if depth >= b.maxDepth || len(rows) < 2 || gini(counts, len(rows)) == 0 {
		return idx
	}

	pos, threshold, ok := b.bestSplit(rows, counts)
	if !ok {
		return idx
	}

	left := b.build(rows[:pos], depth+1)
	right := b.build(rows[pos:], depth+1)
	b.nodes[idx] = domain.TreeNode{Threshold: threshold, Left: left, Right: right, Class: b.nodes[idx].Class}
	return idx
}

type candidate struct {
	pos       int
	threshold float64
}

// bestSplit scans every boundary between distinct feature values and returns the
// one with the lowest weighted impurity. Equal-impurity candidates are broken with
// the seeded generator so fits are reproducible.
func (b *treeBuilder) bestSplit(rows []sample, total []int) (int, float64, bool) {
	n := len(rows)
	parent := gini(total, n)

	left := make([]int, b.classes)
	right := make([]int, b.classes)
	copy(right, total)

	best := parent
	var ties []candidate
	const eps = 1e-12

	for i := 0; i < n-1; i++ {
		left[rows[i].y]++
		right[rows[i].y]--
		if rows[i].x == rows[i+1].x {
			continue
		}
		nl, nr := i+1, n-i-1
		impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
		c := candidate{pos: i + 1, threshold: (rows[i].x + rows[i+1].x) / 2}
		switch {
		case impurity < best-eps:
			best = impurity
			ties = append(ties[:0], c)
		case len(ties) > 0 && impurity <= best+eps:
			ties = append(ties, c)
		}
	}

	if len(ties) == 0 {
		return 0, 0, false
	}
	pick := ties[0]
	if len(ties) > 1 {
		pick = ties[b.rng.Intn(len(ties))]
	}
	return pick.pos, pick.threshold, true
}

func (b *treeBuilder) count(rows []sample) []int {
	counts := make([]int, b.classes)
	for _, r := range rows {
		counts[r.y]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

// majority returns the most frequent class; ties go to the lowest index.
func majority(counts []int) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// predict walks the flat tree for feature x.
func predict(nodes []domain.TreeNode, x float64) int {
	if len(nodes) == 0 {
		return 0
	}
	i := 0
	for !nodes[i].Leaf {
		if x <= nodes[i].Threshold {
			i = nodes[i].Left
		} else {
			i = nodes[i].Right
		}
	}
	return nodes[i].Class
}
