package pipeline

import (
	"context"

	"github.com/kilianp07/railflow/core/classifier"
	"github.com/kilianp07/railflow/core/model"
)

// Feed is the payload returned by a Source for one cycle.
type Feed struct {
	Trains []model.RawTrain
	// CountOnly is set when the backend reported a bare train count instead
	// of a list. Count then holds that number.
	CountOnly bool
	Count     int
}

// Source fetches live trains. Implementations must honour ctx deadlines.
type Source interface {
	Fetch(ctx context.Context) (Feed, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Feed, error)

func (f SourceFunc) Fetch(ctx context.Context) (Feed, error) { return f(ctx) }

// ModelStore persists trained models.
type ModelStore interface {
	Save(ctx context.Context, m *classifier.TrainedModel) error
	Load(ctx context.Context) (*classifier.TrainedModel, error)
}
