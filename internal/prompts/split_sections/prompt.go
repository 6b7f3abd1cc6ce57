package split_sections

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/bitbybit/internal/prompts"
)

const (
	SystemPromptKey = "split_sections.system"
	UserPromptKey   = "split_sections.user"
)

// SystemPrompt is the system prompt for splitting a batch of pages into
// study sections.
const SystemPrompt = `You divide book pages into small, self-contained study sections.

You will be given page images, and where available the text extracted from each page.

**RULES**:
1. A single page may contain multiple sections. A section may span multiple pages.
2. Break the content into the smallest meaningful units a reader could study independently.
3. Sections must appear in reading order and must not overlap.
4. Use only page numbers from the range you are given.
5. Titles are short and descriptive. Do not invent chapter numbers that are not on the page.

Respond with JSON only. No commentary before or after it.`

// UserPromptTemplate is rendered with UserPromptData.
const UserPromptTemplate = `You are analyzing pages {{.StartPage}} to {{.EndPage}} of the book "{{.BookTitle}}".

{{.ContextNote}}

Identify all logical sections/topics on these pages.

Respond with ONLY valid JSON in this exact format:
{
  "sections": [
    {
      "title": "Clear descriptive title for this section",
      "startPage": <page number where section starts>,
      "endPage": <page number where section ends>,
      "summary": "1-2 sentence summary of what this section covers"
    }
  ]
}`

// UserPromptData fills UserPromptTemplate.
type UserPromptData struct {
	StartPage   int
	EndPage     int
	BookTitle   string
	ContextNote string
}

// ContextNote tells the model whether this batch continues an earlier one.
func ContextNote(previousSectionTitle *string) string {
	if previousSectionTitle == nil || strings.TrimSpace(*previousSectionTitle) == "" {
		return "This is the first batch of pages in the book."
	}
	return fmt.Sprintf("The previous batch ended with a section titled %q. Continue from where that left off.", *previousSectionTitle)
}

// PageTextBlock labels one page of extracted text. Blank pages yield "".
func PageTextBlock(page int, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return fmt.Sprintf("[Page %d extracted text]: %s", page, text)
}

// BuildUserPrompt renders tmpl, usually UserPromptTemplate or a config
// override of it.
func BuildUserPrompt(tmpl string, data UserPromptData) (string, error) {
	return prompts.Render(UserPromptKey, tmpl, data)
}

// Register adds the embedded prompts to r.
func Register(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        SystemPrompt,
		Description: "System prompt for splitting pages into study sections",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        UserPromptTemplate,
		Description: "Per-batch instructions for splitting pages into study sections",
	})
}
