package clam_test

import (
	"fmt"

	"github.com/clamgo/clam"
)

func Example() {
	points := [][]float64{
		{0, 0}, {0, 1}, {1, 0},
		{10, 10}, {10, 11}, {11, 10},
	}

	m, err := clam.BuildVectors(points, "euclidean", []clam.Criterion{
		clam.MinPoints(3),
	})
	if err != nil {
		panic(err)
	}

	fmt.Println("clusters:", m.ClusterCount())
	for _, leaf := range m.Leaves() {
		fmt.Printf("leaf %q: %v\n", leaf.Name(), leaf.Indices())
	}

	// Output:
	// clusters: 3
	// leaf "0": [0 1 2]
	// leaf "1": [3 4 5]
}
