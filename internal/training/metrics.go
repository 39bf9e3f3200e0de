package training

import "sort"

// #region accuracy

// accuracy is the fraction of labels predicted correctly at the 0.5
// threshold.
func accuracy(y []int, scores []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i, label := range y {
		pred := 0
		if scores[i] >= 0.5 {
			pred = 1
		}
		if pred == label {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// #endregion

// #region auc

// rocAUC computes the area under the ROC curve by the rank statistic, with
// average ranks over score ties. Returns 0.5 when either class is absent
// (the curve is undefined; 0.5 is the uninformative baseline).
func rocAUC(y []int, scores []float64) float64 {
	n := len(y)
	nPos := 0
	for _, label := range y {
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && scores[order[j]] == scores[order[i]] {
			j++
		}
		// ranks are 1-based; ties share the average rank of the block
		avg := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	rankSumPos := 0.0
	for i, label := range y {
		if label == 1 {
			rankSumPos += ranks[i]
		}
	}
	u := rankSumPos - float64(nPos)*float64(nPos+1)/2.0
	return u / (float64(nPos) * float64(nNeg))
}

// #endregion
