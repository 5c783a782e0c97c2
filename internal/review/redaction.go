package review

import (
	"context"
	"fmt"

	"commentreview/internal/domain"
	"commentreview/internal/prompts"
)

// JSONCompleter is the slice of the model gateway the classifiers need.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, system, user string) (map[string]any, error)
}

// RedactionClassifier flags PII, third-party information, agency employee
// disclosures and offensive language in a comment.
type RedactionClassifier struct {
	Model  JSONCompleter
	Prompt string
}

// Classify never fails on malformed model output; only gateway errors
// (retries exhausted, permanent provider errors) are returned.
func (c *RedactionClassifier) Classify(ctx context.Context, comment string) (domain.RedactionResult, error) {
	obj, err := c.Model.CompleteJSON(ctx, c.Prompt, prompts.UserMessage(comment))
	if err != nil {
		return domain.RedactionResult{}, fmt.Errorf("redaction review: %w", err)
	}
	return NormalizeRedaction(obj), nil
}

// NormalizeRedaction coerces a model reply into a fully shaped result.
func NormalizeRedaction(obj map[string]any) domain.RedactionResult {
	finding := func(flagKey, evidenceKey string) domain.Finding {
		return domain.Finding{Present: flagToken(obj[flagKey]), Evidence: evidenceList(obj[evidenceKey])}
	}
	return domain.RedactionResult{
		PII:                      finding(domain.ColPIIVer, domain.ColPIITxt),
		ThirdPartyInfo:           finding(domain.ColThirdPartyVer, domain.ColThirdPartyTxt),
		AgencyEmployeeDisclosure: finding(domain.ColAgencyEmployeeVer, domain.ColAgencyEmployeeTxt),
		OffensiveLanguage:        finding(domain.ColOffensiveVer, domain.ColOffensiveTxt),
	}
}
