package codegen

import "strings"

const fallbackPrefix = "Error generating code: "

// CleanResponse strips markdown code fences and surrounding whitespace.
func CleanResponse(text, language string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```" + language, "```python", "```sql", "```"} {
		text = strings.ReplaceAll(text, fence, "")
	}
	return strings.TrimSpace(text)
}

// FallbackCode is a one-line program that reports a generation failure when run.
func FallbackCode(language, message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if language == LanguageSQL {
		return "SELECT '" + strings.ReplaceAll(fallbackPrefix+message, "'", "''") + "' AS error"
	}
	escaped := strings.ReplaceAll(message, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "print('" + fallbackPrefix + escaped + "')"
}
