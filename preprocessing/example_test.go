package preprocessing_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/preprocessing"
)

// ExampleStandardScaler standardizes odometer readings.
func ExampleStandardScaler() {
	X := mat.NewDense(4, 1, []float64{20000, 40000, 60000, 80000})

	scaler := preprocessing.NewStandardScaler(true, true)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return
	}

	fmt.Printf("mean=%.0f first=%.2f last=%.2f\n", scaler.Mean[0], scaled.At(0, 0), scaled.At(3, 0))

	// Output: mean=50000 first=-1.34 last=1.34
}

func ExampleOneHotEncoder() {
	data := [][]string{
		{"automatic"},
		{"manual"},
		{"automatic"},
	}

	encoder := preprocessing.NewOneHotEncoder()
	encoded, err := encoder.FitTransform(data)
	if err != nil {
		return
	}

	fmt.Println(encoder.GetFeatureNamesOut([]string{"transmission"}))
	r, c := encoded.Dims()
	fmt.Printf("shape: (%d, %d)\n", r, c)

	// Output: [transmission_automatic transmission_manual]
	// shape: (3, 2)
}

// ExampleTargetEncoder replaces each model name with its smoothed mean price.
func ExampleTargetEncoder() {
	data := [][]string{{"altima"}, {"altima"}, {"escape"}}
	prices := []float64{12000, 14000, 16000}

	encoder := preprocessing.NewTargetEncoder(1)
	if err := encoder.Fit(data, prices); err != nil {
		return
	}

	dst := make([]float64, 1)
	for _, model := range []string{"altima", "escape", "unknown"} {
		if err := encoder.TransformRowInto([]string{model}, dst); err != nil {
			return
		}
		fmt.Printf("%s: %.0f\n", model, dst[0])
	}

	// Output: altima: 13333
	// escape: 15000
	// unknown: 14000
}
