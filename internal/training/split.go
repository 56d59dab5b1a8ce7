package training

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Agrid-Dev/thermoptim/internal/dataset"
)

// Partition splits d into train and test. Shuffle permutes indices with a
// PCG seeded from seed; chronological keeps insertion order and puts the
// most recent records in test. minTrain is the smallest acceptable train
// partition.
func Partition(d dataset.Dataset, fraction float64, split Split, seed uint64, minTrain int) (train, test dataset.Dataset, err error) {
	n := d.Len()
	nTest := int(math.Round(float64(n) * fraction))
	nTest = max(nTest, 1)
	nTrain := n - nTest
	if nTrain < max(minTrain, 2) {
		return dataset.Dataset{}, dataset.Dataset{}, fmt.Errorf("%w: %d records leave %d for training, need %d",
			ErrInsufficientData, n, max(nTrain, 0), max(minTrain, 2))
	}

	if split == SplitChronological {
		return d.Slice(0, nTrain), d.Slice(nTrain, n), nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, 0))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return d.Subset(idx[:nTrain]), d.Subset(idx[nTrain:]), nil
}

type fold struct {
	train []int
	valid []int
}

// kFold cuts [0, n) into k contiguous validation blocks. The first n%k
// blocks get one extra index.
func kFold(n, k int) []fold {
	folds := make([]fold, 0, k)
	start := 0
	for f := range k {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		fo := fold{valid: make([]int, 0, size), train: make([]int, 0, n-size)}
		for i := range n {
			if i >= start && i < end {
				fo.valid = append(fo.valid, i)
			} else {
				fo.train = append(fo.train, i)
			}
		}
		folds = append(folds, fo)
		start = end
	}
	return folds
}
