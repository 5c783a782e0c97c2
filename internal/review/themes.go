package review

import (
	"context"
	"fmt"

	"commentreview/internal/domain"
	"commentreview/internal/prompts"
)

// ThemeExtractor pulls short theme labels and an overall opinion from a comment.
type ThemeExtractor struct {
	Model  JSONCompleter
	Prompt string
}

func (e *ThemeExtractor) Extract(ctx context.Context, comment string) (domain.ThemeResult, error) {
	obj, err := e.Model.CompleteJSON(ctx, e.Prompt, prompts.UserMessage(comment))
	if err != nil {
		return domain.ThemeResult{}, fmt.Errorf("theme extraction: %w", err)
	}
	return NormalizeThemes(obj), nil
}

func NormalizeThemes(obj map[string]any) domain.ThemeResult {
	return domain.ThemeResult{
		Themes:  themeList(obj[domain.ColThemes]),
		Opinion: opinionLabel(obj[domain.ColOverallOpinion]),
	}
}
