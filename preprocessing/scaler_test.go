package preprocessing_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/preprocessing"
)

const epsilon = 1e-10

// odometer and condition for three vehicles
func vehicleNumerics() *mat.Dense {
	return mat.NewDense(3, 2, []float64{
		10000, 10,
		20000, 20,
		30000, 30,
	})
}

func TestStandardScaler_Statistics(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(vehicleNumerics()); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	wantMean := []float64{20000, 20}
	wantScale := []float64{10000 * math.Sqrt(2.0/3.0), 10 * math.Sqrt(2.0/3.0)}
	for j := range wantMean {
		if math.Abs(scaler.Mean[j]-wantMean[j]) > epsilon {
			t.Errorf("Mean[%d]: expected %f, got %f", j, wantMean[j], scaler.Mean[j])
		}
		if math.Abs(scaler.Scale[j]-wantScale[j]) > 1e-6 {
			t.Errorf("Scale[%d]: expected %f, got %f", j, wantScale[j], scaler.Scale[j])
		}
	}
}

func TestStandardScaler_TransformCentersColumns(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(vehicleNumerics())
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := scaled.Dims()
	for j := 0; j < c; j++ {
		var sum, ss float64
		for i := 0; i < r; i++ {
			sum += scaled.At(i, j)
			ss += scaled.At(i, j) * scaled.At(i, j)
		}
		if math.Abs(sum/float64(r)) > epsilon {
			t.Errorf("column %d mean should be 0, got %f", j, sum/float64(r))
		}
		if math.Abs(ss/float64(r)-1) > 1e-9 {
			t.Errorf("column %d variance should be 1, got %f", j, ss/float64(r))
		}
	}

	// both columns are perfectly correlated so they scale identically
	if math.Abs(scaled.At(0, 0)-scaled.At(0, 1)) > epsilon {
		t.Errorf("expected equal z-scores, got %f and %f", scaled.At(0, 0), scaled.At(0, 1))
	}
}

func TestStandardScaler_TransformRowInto(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	X := vehicleNumerics()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	full, err := scaler.Transform(X)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	dst := make([]float64, 2)
	if err := scaler.TransformRowInto([]float64{30000, 30}, dst); err != nil {
		t.Fatalf("TransformRowInto failed: %v", err)
	}
	for j := range dst {
		if math.Abs(dst[j]-full.At(2, j)) > epsilon {
			t.Errorf("dst[%d]: expected %f, got %f", j, full.At(2, j), dst[j])
		}
	}

	if err := scaler.TransformRowInto([]float64{1}, dst); err == nil {
		t.Error("Expected error for short row")
	}
}

func TestStandardScaler_InverseTransform(t *testing.T) {
	X := vehicleNumerics()
	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	restored, err := scaler.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}

	if !mat.EqualApprox(X, restored, 1e-6) {
		t.Errorf("restored matrix differs:\n%v", mat.Formatted(restored))
	}
}

func TestStandardScaler_Flags(t *testing.T) {
	X := vehicleNumerics()

	noMean := preprocessing.NewStandardScaler(false, true)
	if err := noMean.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if noMean.Mean[0] != 0 {
		t.Errorf("Mean should stay 0 with WithMean=false, got %f", noMean.Mean[0])
	}
	if math.Abs(noMean.Scale[1]-10*math.Sqrt(2.0/3.0)) > 1e-9 {
		t.Errorf("Scale should still be the population std, got %f", noMean.Scale[1])
	}

	noStd := preprocessing.NewStandardScaler(true, false)
	scaled, err := noStd.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if scaled.At(0, 0) != -10000 {
		t.Errorf("expected centered but unscaled value -10000, got %f", scaled.At(0, 0))
	}
}

func TestStandardScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		2012, 1,
		2012, 2,
		2012, 3,
	})

	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if scaler.Scale[0] != 1 {
		t.Errorf("constant feature should get Scale=1, got %f", scaler.Scale[0])
	}
	for i := 0; i < 3; i++ {
		if scaled.At(i, 0) != 0 {
			t.Errorf("row %d: constant feature should scale to 0, got %f", i, scaled.At(i, 0))
		}
	}
}

func TestStandardScaler_Errors(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	X := mat.NewDense(1, 2, []float64{1, 2})

	if _, err := scaler.Transform(X); err == nil {
		t.Error("Expected error for unfitted Transform")
	}
	if _, err := scaler.InverseTransform(X); err == nil {
		t.Error("Expected error for unfitted InverseTransform")
	}
	if err := scaler.Fit(&mat.Dense{}); err == nil {
		t.Error("Expected error for empty data")
	}

	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("Expected error for dimension mismatch")
	}
}

func TestStandardScaler_String(t *testing.T) {
	scaler := preprocessing.NewStandardScaler(true, false)
	if got, want := scaler.String(), "StandardScaler(with_mean=true, with_std=false)"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	_ = scaler.Fit(vehicleNumerics())
	if got, want := scaler.String(), "StandardScaler(with_mean=true, with_std=false, n_features=2)"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	params := scaler.GetParams()
	if params["with_mean"] != true || params["with_std"] != false {
		t.Errorf("unexpected params %v", params)
	}
}
