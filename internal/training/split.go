package training

import (
	"math/rand"
	"sort"

	"github.com/aegisrisk/weightd/internal/classifier"
	"github.com/aegisrisk/weightd/internal/sample"
)

// #region dataset

// buildDataset converts samples into an ordered feature matrix. Feature
// names are the sorted union of all sample keys; a sample missing a feature
// contributes zero for it. Sorting keeps the column order independent of map
// iteration, so identical sample sets always produce identical matrices.
func buildDataset(samples []sample.LabeledSample) classifier.Dataset {
	nameSet := make(map[string]bool)
	for _, s := range samples {
		for name := range s.Features {
			nameSet[name] = true
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	ds := classifier.Dataset{FeatureNames: names}
	ds.X = make([][]float64, len(samples))
	ds.Y = make([]int, len(samples))
	for i, s := range samples {
		row := make([]float64, len(names))
		for j, name := range names {
			row[j] = s.Features[name]
		}
		ds.X[i] = row
		ds.Y[i] = s.Label()
	}
	return ds
}

// #endregion

// #region stratified-split

// stratifiedSplit partitions row indices into train/test, preserving class
// proportions. The shuffle is driven entirely by rng, so a fixed seed and
// sample set always yield the same partition.
func stratifiedSplit(y []int, testFraction float64, rng *rand.Rand) (train, test []int) {
	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	for _, label := range []int{0, 1} {
		idx := byClass[label]
		if len(idx) == 0 {
			continue
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(float64(len(idx)) * testFraction)
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	// A tiny minority class can leave the test slice empty; move one row
	// over so holdout metrics remain defined.
	if len(test) == 0 && len(train) > 1 {
		test = append(test, train[len(train)-1])
		train = train[:len(train)-1]
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// #endregion

// #region stratified-folds

// stratifiedFolds assigns every row to one of k folds, round-robin within
// each class after a seeded shuffle. Each fold's complement (the fold's
// train slice) keeps both classes as long as each class has >= 2 members.
func stratifiedFolds(y []int, k int, rng *rand.Rand) [][]int {
	folds := make([][]int, k)
	for _, label := range []int{0, 1} {
		var idx []int
		for i, l := range y {
			if l == label {
				idx = append(idx, i)
			}
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for pos, i := range idx {
			f := pos % k
			folds[f] = append(folds[f], i)
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// #endregion
