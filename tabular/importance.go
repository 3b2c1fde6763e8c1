package tabular

import (
	"context"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/intelicar/core/parallel"
	"github.com/ezoic/intelicar/metrics"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

// DefaultImportanceSampleSize caps the rows used for permutation importance.
const DefaultImportanceSampleSize = 5000

// ImportanceOptions configures FeatureImportance.
type ImportanceOptions struct {
	// SampleSize caps the rows scored, default DefaultImportanceSampleSize.
	SampleSize int
	// NumShuffles is the number of permutations averaged per column, default 3.
	NumShuffles int
	Seed        uint64
	MaxWorkers  int
}

// FeatureImportance is the permutation importance of one input column.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	StdDev     float64 `json:"stddev"`
}

// FeatureImportance measures, for every feature column, how much the best
// model's RMSE on f grows when that column is shuffled. Results are sorted
// by importance, highest first.
func (p *Predictor) FeatureImportance(ctx context.Context, f *Frame, opts ImportanceOptions) ([]FeatureImportance, error) {
	if p.Encoder == nil {
		return nil, scigoErrors.NewNotFittedError("Predictor", "FeatureImportance")
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultImportanceSampleSize
	}
	if opts.NumShuffles <= 0 {
		opts.NumShuffles = 3
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}

	if f.NumRows() > opts.SampleSize {
		_, sample := SplitIndices(f.NumRows(), float64(opts.SampleSize)/float64(f.NumRows()), opts.Seed)
		f = f.Take(sample[:min(opts.SampleSize, len(sample))])
	}

	y, err := f.Float(p.Label)
	if err != nil {
		return nil, err
	}
	yVec := mat.NewVecDense(len(y), y)
	base, err := p.rmseOn(f, yVec)
	if err != nil {
		return nil, err
	}

	columns := p.Encoder.FeatureColumns()
	out := make([]FeatureImportance, len(columns))
	err = parallel.ForEach(ctx, len(columns), opts.MaxWorkers, func(ctx context.Context, k int) error {
		name := columns[k]
		cells, err := f.Column(name)
		if err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(opts.Seed, uint64(k)))

		deltas := make([]float64, opts.NumShuffles)
		for s := range deltas {
			if err := ctx.Err(); err != nil {
				return err
			}
			shuffled := append([]string(nil), cells...)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			permuted, err := f.WithColumn(name, shuffled)
			if err != nil {
				return err
			}
			score, err := p.rmseOn(permuted, yVec)
			if err != nil {
				return err
			}
			deltas[s] = score - base
		}

		mean, std := meanStd(deltas)
		out[k] = FeatureImportance{Feature: name, Importance: mean, StdDev: std}
		return nil
	})
	if err != nil {
		return nil, scigoErrors.Wrap(err, "feature importance")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	p.getLogger().Info("Computed feature importance",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, f.NumRows(),
		log.FeaturesKey, len(columns),
	)
	return out, nil
}

// ImportanceMap converts importances to a feature → importance map.
func ImportanceMap(imp []FeatureImportance) map[string]float64 {
	out := make(map[string]float64, len(imp))
	for _, fi := range imp {
		out[fi.Feature] = fi.Importance
	}
	return out
}

func (p *Predictor) rmseOn(f *Frame, y *mat.VecDense) (float64, error) {
	pred, err := p.Predict(f)
	if err != nil {
		return 0, err
	}
	return metrics.RMSE(y, mat.NewVecDense(len(pred), pred))
}

func meanStd(v []float64) (mean, std float64) {
	if len(v) < 2 {
		return stat.Mean(v, nil), 0
	}
	return stat.MeanStdDev(v, nil)
}
