package review

import (
	"context"

	"commentreview/internal/domain"
	"commentreview/internal/prompts"
)

// RowProcessor runs both model passes over one comment, redaction first.
type RowProcessor struct {
	Redaction *RedactionClassifier
	Themes    *ThemeExtractor
}

// NewRowProcessor wires both passes to the same model and the stored prompts.
func NewRowProcessor(model JSONCompleter, store *prompts.Store) (*RowProcessor, error) {
	redaction, err := store.Get(prompts.RedactionReview)
	if err != nil {
		return nil, err
	}
	themes, err := store.Get(prompts.ThemeExtraction)
	if err != nil {
		return nil, err
	}
	return &RowProcessor{
		Redaction: &RedactionClassifier{Model: model, Prompt: redaction},
		Themes:    &ThemeExtractor{Model: model, Prompt: themes},
	}, nil
}

// Process returns the merged annotation or the first error from either pass.
func (p *RowProcessor) Process(ctx context.Context, comment string) (domain.Annotation, error) {
	red, err := p.Redaction.Classify(ctx, comment)
	if err != nil {
		return domain.Annotation{}, err
	}
	th, err := p.Themes.Extract(ctx, comment)
	if err != nil {
		return domain.Annotation{}, err
	}
	return domain.Annotation{Redaction: red, Themes: th}, nil
}
