package domain

// Canonical flag tokens written to the *_ver columns.
const (
	FlagTrue  = "True"
	FlagFalse = "False"
)

// Opinion labels. Anything else collapses to OpinionUnknown.
const (
	OpinionSupport = "support"
	OpinionOppose  = "oppose"
	OpinionUnknown = "unknown"
)

// Output column names added to the processed table.
const (
	ColPIIVer            = "pii_ver"
	ColPIITxt            = "pii_txt"
	ColThirdPartyVer     = "third_pty_info_ver"
	ColThirdPartyTxt     = "third_pty_info_txt"
	ColAgencyEmployeeVer = "ssa_employee_ver"
	ColAgencyEmployeeTxt = "ssa_employee_txt"
	ColOffensiveVer      = "offensive_lang_ver"
	ColOffensiveTxt      = "offensive_lang_txt"
	ColOverallOpinion    = "overall_opinion"
	ColThemes            = "themes"
)

// AnnotationColumns is the order in which annotation columns are appended.
var AnnotationColumns = []string{
	ColPIIVer,
	ColPIITxt,
	ColThirdPartyVer,
	ColThirdPartyTxt,
	ColAgencyEmployeeVer,
	ColAgencyEmployeeTxt,
	ColOffensiveVer,
	ColOffensiveTxt,
	ColOverallOpinion,
	ColThemes,
}

// ListColumns hold JSON-array encoded cells.
var ListColumns = map[string]bool{
	ColPIITxt:            true,
	ColThirdPartyTxt:     true,
	ColAgencyEmployeeTxt: true,
	ColOffensiveTxt:      true,
	ColThemes:            true,
}

// Finding is one redaction category: a flag token plus the quoted evidence.
type Finding struct {
	Present  string
	Evidence []string
}

// RedactionResult holds the four redaction categories for one comment.
type RedactionResult struct {
	PII                      Finding
	ThirdPartyInfo           Finding
	AgencyEmployeeDisclosure Finding
	OffensiveLanguage        Finding
}

// ThemeResult holds the extracted theme labels and the overall opinion.
type ThemeResult struct {
	Themes  []string
	Opinion string
}

// Annotation is the merged per-row record.
type Annotation struct {
	Redaction RedactionResult
	Themes    ThemeResult
}

func emptyFinding() Finding {
	return Finding{Present: FlagFalse, Evidence: []string{}}
}

// EmptyRedaction returns the fail-closed redaction result.
func EmptyRedaction() RedactionResult {
	return RedactionResult{
		PII:                      emptyFinding(),
		ThirdPartyInfo:           emptyFinding(),
		AgencyEmployeeDisclosure: emptyFinding(),
		OffensiveLanguage:        emptyFinding(),
	}
}

// FallbackAnnotation is substituted for any row whose processing failed.
func FallbackAnnotation() Annotation {
	return Annotation{
		Redaction: EmptyRedaction(),
		Themes:    ThemeResult{Themes: []string{}, Opinion: OpinionUnknown},
	}
}

// Fields flattens the annotation into column name -> value. Flag and opinion
// columns map to strings, list columns to []string.
func (a Annotation) Fields() map[string]any {
	r := a.Redaction
	return map[string]any{
		ColPIIVer:            r.PII.Present,
		ColPIITxt:            r.PII.Evidence,
		ColThirdPartyVer:     r.ThirdPartyInfo.Present,
		ColThirdPartyTxt:     r.ThirdPartyInfo.Evidence,
		ColAgencyEmployeeVer: r.AgencyEmployeeDisclosure.Present,
		ColAgencyEmployeeTxt: r.AgencyEmployeeDisclosure.Evidence,
		ColOffensiveVer:      r.OffensiveLanguage.Present,
		ColOffensiveTxt:      r.OffensiveLanguage.Evidence,
		ColOverallOpinion:    a.Themes.Opinion,
		ColThemes:            a.Themes.Themes,
	}
}
