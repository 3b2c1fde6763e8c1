package tree

import (
	"math/rand/v2"

	"github.com/ezoic/intelicar/core/parallel"
)

// Node is one entry of a flattened tree. Internal nodes send a row left when
// its value is <= Threshold (equivalently, its bin is <= Bin).
type Node struct {
	Feature   int
	Threshold float64
	Bin       uint8
	Left      int
	Right     int
	Value     float64
	Leaf      bool
	NSamples  int
	Gain      float64
}

// Tree is a regression tree stored as a slice with the root at index 0.
type Tree struct {
	Nodes []Node
}

// Params controls tree growth.
type Params struct {
	// MaxDepth limits the depth of the tree. Zero means unlimited.
	MaxDepth int
	// MinSamplesSplit is the minimum node size eligible for splitting.
	MinSamplesSplit int
	// MinSamplesLeaf is the minimum size of each child.
	MinSamplesLeaf int
	// MaxFeatures is the fraction of features sampled at each node. Values
	// outside (0, 1) use every feature.
	MaxFeatures float64
	// MinGain is the minimum SSE reduction required to split.
	MinGain float64
}

func (p Params) withDefaults() Params {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// nodes above this size build their feature histograms concurrently
const parallelNodeSize = 20000

type histBin struct {
	sum   float64
	count int
}

type split struct {
	feature int
	bin     uint8
	gain    float64
}

type frame struct {
	node    int
	indices []int
	depth   int
}

// Grow fits a regression tree to target over the rows in indices. A nil
// indices slice means every row. indices is reordered in place. rng drives
// feature subsampling and may be nil when MaxFeatures selects every feature.
func Grow(data *BinnedData, binner *Binner, target []float64, indices []int, p Params, rng *rand.Rand) *Tree {
	p = p.withDefaults()
	if indices == nil {
		indices = make([]int, data.NSamples)
		for i := range indices {
			indices[i] = i
		}
	}

	t := &Tree{Nodes: []Node{{}}}
	if len(indices) == 0 {
		t.Nodes[0].Leaf = true
		return t
	}

	features := make([]int, data.NFeatures)
	for j := range features {
		features[j] = j
	}
	nCandidates := data.NFeatures
	if p.MaxFeatures > 0 && p.MaxFeatures < 1 {
		nCandidates = int(p.MaxFeatures*float64(data.NFeatures) + 0.5)
		if nCandidates < 1 {
			nCandidates = 1
		}
	}

	stack := []frame{{node: 0, indices: indices, depth: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var sum float64
		for _, i := range f.indices {
			sum += target[i]
		}
		n := len(f.indices)
		node := &t.Nodes[f.node]
		node.NSamples = n
		node.Value = sum / float64(n)
		node.Leaf = true

		if (p.MaxDepth > 0 && f.depth >= p.MaxDepth) || n < p.MinSamplesSplit || n < 2*p.MinSamplesLeaf {
			continue
		}

		candidates := features
		if nCandidates < len(features) && rng != nil {
			rng.Shuffle(len(features), func(a, b int) { features[a], features[b] = features[b], features[a] })
			candidates = append([]int(nil), features[:nCandidates]...)
		}

		best := bestSplit(data, target, f.indices, candidates, sum, p)
		if best.feature < 0 || best.gain <= p.MinGain {
			continue
		}

		left, right := partition(data.Bins[best.feature], f.indices, best.bin)

		leftIdx := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{}, Node{})
		node = &t.Nodes[f.node]
		node.Leaf = false
		node.Feature = best.feature
		node.Bin = best.bin
		node.Threshold = binner.Threshold(best.feature, best.bin)
		node.Gain = best.gain
		node.Left = leftIdx
		node.Right = leftIdx + 1

		stack = append(stack,
			frame{node: leftIdx + 1, indices: right, depth: f.depth + 1},
			frame{node: leftIdx, indices: left, depth: f.depth + 1},
		)
	}
	return t
}

func bestSplit(data *BinnedData, target []float64, indices, candidates []int, total float64, p Params) split {
	results := make([]split, len(candidates))

	evaluate := func(start, end int) {
		for c := start; c < end; c++ {
			j := candidates[c]
			results[c] = featureSplit(j, data.Bins[j], data.NBins[j], target, indices, total, p)
		}
	}
	if len(indices) >= parallelNodeSize {
		parallel.ParallelizeWithThreshold(len(candidates), 2, evaluate)
	} else {
		evaluate(0, len(candidates))
	}

	best := split{feature: -1}
	for _, s := range results {
		if s.feature >= 0 && (best.feature < 0 || s.gain > best.gain) {
			best = s
		}
	}
	return best
}

// featureSplit scans the histogram of one feature for the bin boundary with
// the largest SSE reduction: sumL²/nL + sumR²/nR - sum²/n.
func featureSplit(j int, bins []uint8, nBins int, target []float64, indices []int, total float64, p Params) split {
	best := split{feature: -1}
	if nBins < 2 {
		return best
	}

	hist := make([]histBin, nBins)
	for _, i := range indices {
		h := &hist[bins[i]]
		h.sum += target[i]
		h.count++
	}

	n := len(indices)
	parent := total * total / float64(n)

	var leftSum float64
	leftCount := 0
	for k := 0; k < nBins-1; k++ {
		leftSum += hist[k].sum
		leftCount += hist[k].count
		if hist[k].count == 0 {
			continue
		}
		rightCount := n - leftCount
		if leftCount < p.MinSamplesLeaf {
			continue
		}
		if rightCount < p.MinSamplesLeaf {
			break
		}
		rightSum := total - leftSum
		gain := leftSum*leftSum/float64(leftCount) + rightSum*rightSum/float64(rightCount) - parent
		if best.feature < 0 || gain > best.gain {
			best = split{feature: j, bin: uint8(k), gain: gain}
		}
	}
	return best
}

// partition reorders indices so rows with bin <= cut come first and returns
// the two halves.
func partition(bins []uint8, indices []int, cut uint8) (left, right []int) {
	lo, hi := 0, len(indices)-1
	for lo <= hi {
		if bins[indices[lo]] <= cut {
			lo++
			continue
		}
		indices[lo], indices[hi] = indices[hi], indices[lo]
		hi--
	}
	return indices[:lo], indices[lo:]
}

// PredictRow walks the tree for one raw feature row.
func (t *Tree) PredictRow(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// PredictBinned walks the tree for sample i of data.
func (t *Tree) PredictBinned(data *BinnedData, sample int) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if data.Bins[n.Feature][sample] <= n.Bin {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Scale multiplies every node value by factor.
func (t *Tree) Scale(factor float64) {
	for i := range t.Nodes {
		t.Nodes[i].Value *= factor
	}
}

// AddGains accumulates the split gain of every internal node into dst,
// indexed by feature.
func (t *Tree) AddGains(dst []float64) {
	for _, n := range t.Nodes {
		if !n.Leaf && n.Feature < len(dst) {
			dst[n.Feature] += n.Gain
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := &t.Nodes[i]
		if n.Leaf {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	return walk(0, 0)
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Leaf {
			count++
		}
	}
	return count
}
