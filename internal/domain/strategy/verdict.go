package strategy

// Verdict aggregates the outcome of validating one strategy.
type Verdict struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// NewVerdict returns an empty, valid verdict with non-nil lists.
func NewVerdict() *Verdict {
	return &Verdict{
		IsValid:     true,
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}
}

func (v *Verdict) AddError(msg string)      { v.Errors = append(v.Errors, msg) }
func (v *Verdict) AddWarning(msg string)    { v.Warnings = append(v.Warnings, msg) }
func (v *Verdict) AddSuggestion(msg string) { v.Suggestions = append(v.Suggestions, msg) }

// Finalize recomputes IsValid. Warnings and suggestions never affect it.
func (v *Verdict) Finalize() *Verdict {
	v.IsValid = len(v.Errors) == 0
	return v
}
