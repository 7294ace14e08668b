package classifier

import "errors"

// ErrModelNotTrained is returned by Predict before a model was trained or loaded.
var ErrModelNotTrained = errors.New("model not trained")

// ErrInsufficientData is returned when the training set cannot be split.
var ErrInsufficientData = errors.New("insufficient training data")
