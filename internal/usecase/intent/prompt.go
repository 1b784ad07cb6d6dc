package intent

import (
	"strings"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// maxTurnRunes bounds how much of each history turn enters the prompt.
const maxTurnRunes = 200

// buildPrompt renders the classifier prompt from the query and the
// bounded history window.
func buildPrompt(q domain.Query, history []domain.Turn) string {
	var b strings.Builder

	b.WriteString("Analyze this shopping query and return a JSON object.\n\n")

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, t := range history {
			b.WriteString(string(t.Role))
			b.WriteString(": ")
			b.WriteString(truncateRunes(t.Content, maxTurnRunes))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("Current query: ")
	if q.HasImage() {
		b.WriteString("[image provided] ")
	}
	b.WriteString(q.Text)
	b.WriteString("\n\n")

	b.WriteString(`Determine what products the user wants (use context for follow-ups), any price constraints, vendor preferences, and which tool to use.

Available tools:
- search_by_text: general product searches
- search_by_image: image-based searches (only when an image is provided)
- filter_structured: when specific price/vendor/type filters are needed
- product_detail: lookup of one specific product id
- similar_to: finding items similar to a known product id

For follow-up queries without a new image (like "anything below 500?"), use filter_structured, not search_by_image.

Answer with ONLY this JSON shape:
{
  "tool": "tool_name",
  "params": {
    "query": "search text (search_by_text only)",
    "min_price": null,
    "max_price": null,
    "vendors": [],
    "product_types": [],
    "product_id": null,
    "limit": 20
  },
  "reasoning": "brief explanation"
}`)

	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
