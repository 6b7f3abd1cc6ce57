// Package prompts manages the prompt text sent to LLM providers.
//
// Each prompt has an embedded default compiled into the binary. The config
// file may override any prompt by key:
//
//	prompts:
//	  split_sections.system: "You are ..."
//
// Resolution order: config override, then embedded default.
package prompts

// EmbeddedPrompt is a prompt compiled into the binary.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: split_sections.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 of Text for change detection
}

// ResolvedPrompt is the text that will actually be sent.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Hash       string   `json:"hash"`
}
