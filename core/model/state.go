// Package model provides the building blocks shared by every estimator:
// fitted-state tracking and gob persistence.
//
// Estimators hold a *StateManager instead of embedding a base type so that the
// state travels with gob encoding as an ordinary exported field:
//
//	type Ridge struct {
//		State   *model.StateManager
//		Weights []float64
//	}
//
//	func (r *Ridge) Fit(X, y mat.Matrix) error {
//		// training logic
//		r.State.SetFitted()
//		return nil
//	}
package model

import "gonum.org/v1/gonum/mat"

// Regressor is implemented by every regression estimator.
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// StateManager tracks whether an estimator has been fitted and the training
// shape it saw. Fields are exported for gob encoding.
type StateManager struct {
	Fitted    bool
	NFeatures int
	NSamples  int
}

// NewStateManager returns an unfitted state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether SetFitted has been called since the last Reset.
// A nil StateManager is never fitted.
func (s *StateManager) IsFitted() bool {
	return s != nil && s.Fitted
}

// SetFitted marks the estimator as trained.
func (s *StateManager) SetFitted() {
	s.Fitted = true
}

// Reset returns the estimator to the unfitted state.
func (s *StateManager) Reset() {
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// SetDimensions records the training shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the recorded training shape.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	if s == nil {
		return 0, 0
	}
	return s.NFeatures, s.NSamples
}
