package templates

import (
	"encoding/json"
	"strconv"
	"strings"
	"text/template"
)

// FuncMap returns the helpers available inside prompt templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"bullets": Bullets,
		"join":    strings.Join,
		"json":    IndentJSON,
		"num":     FormatFloat,
		"upper":   strings.ToUpper,
		"title":   Title,
	}
}

// Bullets renders items as "- item" lines. Empty input renders "- none".
func Bullets(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(SafeText(item))
	}
	return b.String()
}

// IndentJSON renders v as two-space indented JSON, or "{}" when it cannot be encoded.
func IndentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// FormatFloat renders a float without trailing zeros.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Title upper-cases the first letter of each underscore or space separated word.
func Title(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SafeText drops invalid UTF-8 and collapses newlines so one value stays on one line.
func SafeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	return strings.Join(strings.Fields(text), " ")
}
