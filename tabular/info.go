package tabular

// ModelInfo describes one trained model.
type ModelInfo struct {
	Name            string                 `json:"name"`
	Type            string                 `json:"model_type"`
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`
	ValScore        float64                `json:"val_score"`
	FitTimeSec      float64                `json:"fit_time"`
	PredictTimeSec  float64                `json:"predict_time"`
	Members         []string               `json:"stack_members,omitempty"`
	Weights         []float64              `json:"weights,omitempty"`
}

// Info summarizes a fitted predictor.
type Info struct {
	Path           string               `json:"path"`
	Label          string               `json:"label"`
	ProblemType    string               `json:"problem_type"`
	EvalMetric     string               `json:"eval_metric"`
	Presets        []string             `json:"presets"`
	BestModel      string               `json:"best_model"`
	FeatureColumns []string             `json:"features"`
	FeatureKinds   map[string]string    `json:"feature_encodings"`
	ModelInfo      map[string]ModelInfo `json:"model_info"`
}

type paramsGetter interface {
	GetParams() map[string]interface{}
}

// Info describes the predictor and every usable model.
func (p *Predictor) Info() Info {
	info := Info{
		Path:         p.Path,
		Label:        p.Label,
		ProblemType:  p.ProblemType,
		EvalMetric:   p.EvalMetric,
		Presets:      p.Presets,
		BestModel:    p.BestModel,
		FeatureKinds: make(map[string]string),
		ModelInfo:    make(map[string]ModelInfo),
	}
	if p.Encoder != nil {
		info.FeatureColumns = p.Encoder.FeatureColumns()
		for _, plan := range p.Encoder.Plan {
			info.FeatureKinds[plan.Name] = string(plan.Encoding)
		}
	}

	for _, tm := range p.Models {
		if tm.Failed {
			continue
		}
		mi := ModelInfo{
			Name:           tm.Name,
			Type:           tm.Type,
			ValScore:       tm.ValScore,
			FitTimeSec:     tm.FitTime.Seconds(),
			PredictTimeSec: tm.PredictTime.Seconds(),
			Members:        tm.Members,
			Weights:        tm.Weights,
		}
		if pg, ok := tm.Model.(paramsGetter); ok {
			mi.Hyperparameters = pg.GetParams()
		}
		info.ModelInfo[tm.Name] = mi
	}
	return info
}

// BestModelInfo returns the entry of ModelInfo for the best model.
func (i Info) BestModelInfo() (ModelInfo, bool) {
	mi, ok := i.ModelInfo[i.BestModel]
	return mi, ok
}

// ModelNamesSorted returns the ModelInfo keys in ascending order.
func (i Info) ModelNamesSorted() []string {
	return sortedKeys(i.ModelInfo)
}
