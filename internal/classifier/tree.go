package classifier

import "math/rand"

// #region node

// treeNode is one node of a regression tree. Feature == -1 marks a leaf.
// With 0/1 targets the variance criterion used below is equivalent to gini
// splitting, so the same tree serves classification (leaf value = positive
// fraction) and boosting (leaf value = mean residual).
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(x []float64) float64 {
	for n.Feature >= 0 {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// #endregion

// #region config

type treeConfig struct {
	maxDepth int
	minLeaf  int
	mtry     int // features considered per split; 0 = all
}

// #endregion

// #region build

// buildTree fits a regression tree on rows idx of x against targets t.
// Split gains are accumulated into importances (one slot per feature).
func buildTree(x [][]float64, t []float64, idx []int, cfg treeConfig, rng *rand.Rand, importances []float64) *treeNode {
	return growNode(x, t, idx, 0, cfg, rng, importances)
}

func growNode(x [][]float64, t []float64, idx []int, depth int, cfg treeConfig, rng *rand.Rand, importances []float64) *treeNode {
	mean, sse := meanSSE(t, idx)
	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minLeaf || sse == 0 {
		return &treeNode{Feature: -1, Value: mean}
	}

	feat, thresh, gain, ok := bestSplit(x, t, idx, cfg, rng)
	if !ok {
		return &treeNode{Feature: -1, Value: mean}
	}
	importances[feat] += gain

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if x[i][feat] <= thresh {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &treeNode{
		Feature:   feat,
		Threshold: thresh,
		Left:      growNode(x, t, leftIdx, depth+1, cfg, rng, importances),
		Right:     growNode(x, t, rightIdx, depth+1, cfg, rng, importances),
	}
}

// #endregion

// #region best-split

func bestSplit(x [][]float64, t []float64, idx []int, cfg treeConfig, rng *rand.Rand) (feat int, thresh, gain float64, ok bool) {
	d := len(x[idx[0]])
	features := candidateFeatures(d, cfg.mtry, rng)

	_, parentSSE := meanSSE(t, idx)
	bestSSE := parentSSE
	feat = -1

	for _, j := range features {
		f, th, sse, valid := bestSplitOnFeature(x, t, idx, j, cfg.minLeaf)
		if valid && sse < bestSSE {
			bestSSE = sse
			feat = f
			thresh = th
		}
	}
	if feat < 0 {
		return 0, 0, 0, false
	}
	return feat, thresh, parentSSE - bestSSE, true
}

func bestSplitOnFeature(x [][]float64, t []float64, idx []int, j, minLeaf int) (feat int, thresh, sse float64, ok bool) {
	type pair struct{ v, t float64 }
	pairs := make([]pair, len(idx))
	for i, row := range idx {
		pairs[i] = pair{x[row][j], t[row]}
	}
	// Insertion sort by value; stable across runs, and the datasets this
	// subsystem targets are small.
	for i := 1; i < len(pairs); i++ {
		for k := i; k > 0 && pairs[k].v < pairs[k-1].v; k-- {
			pairs[k], pairs[k-1] = pairs[k-1], pairs[k]
		}
	}

	n := len(pairs)
	totalSum, totalSq := 0.0, 0.0
	for _, p := range pairs {
		totalSum += p.t
		totalSq += p.t * p.t
	}

	leftSum, leftSq := 0.0, 0.0
	bestSSE := 0.0
	found := false

	for i := 0; i < n-1; i++ {
		leftSum += pairs[i].t
		leftSq += pairs[i].t * pairs[i].t
		if pairs[i].v == pairs[i+1].v {
			continue // cannot split between equal values
		}
		nl, nr := i+1, n-i-1
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		rightSum := totalSum - leftSum
		rightSq := totalSq - leftSq
		sseL := leftSq - leftSum*leftSum/float64(nl)
		sseR := rightSq - rightSum*rightSum/float64(nr)
		if total := sseL + sseR; !found || total < bestSSE {
			bestSSE = total
			thresh = (pairs[i].v + pairs[i+1].v) / 2
			found = true
		}
	}
	if !found {
		return 0, 0, 0, false
	}
	return j, thresh, bestSSE, true
}

func candidateFeatures(d, mtry int, rng *rand.Rand) []int {
	if mtry <= 0 || mtry >= d || rng == nil {
		all := make([]int, d)
		for j := range all {
			all[j] = j
		}
		return all
	}
	perm := rng.Perm(d)
	return perm[:mtry]
}

func meanSSE(t []float64, idx []int) (mean, sse float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += t[i]
	}
	mean = sum / float64(len(idx))
	for _, i := range idx {
		diff := t[i] - mean
		sse += diff * diff
	}
	return mean, sse
}

// #endregion
