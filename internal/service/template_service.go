package service

import "strings"

// placeholderAliases maps recipient fields to the placeholder spellings they
// expand, including the Spanish variants.
var placeholderAliases = map[string][]string{
	"name":    {"{{name}}", "{{nombre}}"},
	"email":   {"{{email}}"},
	"company": {"{{company}}", "{{empresa}}"},
}

// Personalize substitutes recipient data into template content. A
// placeholder with no matching value is left untouched, never removed or
// blanked, so malformed data stays visible downstream.
func Personalize(content string, data map[string]string) string {
	result := content
	for key, value := range data {
		if value == "" {
			continue
		}
		aliases, ok := placeholderAliases[key]
		if !ok {
			aliases = []string{"{{" + key + "}}"}
		}
		for _, placeholder := range aliases {
			result = strings.ReplaceAll(result, placeholder, value)
		}
	}
	return result
}
