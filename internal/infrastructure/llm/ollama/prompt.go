package ollama

import "strings"

const maxErrorSnippet = 6000

func buildSolutionPrompt(rawError, language string) string {
	snippet := rawError
	if len(snippet) > maxErrorSnippet {
		snippet = snippet[:maxErrorSnippet]
	}
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "unknown"
	}

	return `You are a senior engineer writing a knowledge-base entry for a programming error.
Return strict JSON object with keys:
title (string, short headline), explanation (string), rootCause (string), steps (array of strings),
fixedCode (string, corrected code or empty), prevention (string).
No markdown, no extra keys.

Language: ` + lang + `

Error:
` + snippet
}
