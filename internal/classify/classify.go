// Package classify asks a vision model to split a run of pages into study
// sections.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/prompts"
	"github.com/jackzampolin/bitbybit/internal/prompts/split_sections"
	"github.com/jackzampolin/bitbybit/internal/providers"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// Request is one batch of consecutive pages.
type Request struct {
	PageImages           [][]byte // JPEG, one per page
	PageTexts            []string // extracted text, one per page, may be empty
	StartPage            int
	BookTitle            string
	PreviousSectionTitle *string // nil for the first batch of the book

	// BookID and ChapterID label recorded calls.
	BookID    string
	ChapterID string
}

// EndPage is the last page in the batch.
func (r Request) EndPage() int {
	n := max(len(r.PageImages), len(r.PageTexts))
	if n == 0 {
		return r.StartPage
	}
	return r.StartPage + n - 1
}

// CandidateSection is a section proposed by the classifier. Pages are
// absolute book page numbers.
type CandidateSection struct {
	Title     string `json:"title"`
	StartPage int    `json:"startPage"`
	EndPage   int    `json:"endPage"`
	Summary   string `json:"summary,omitempty"`
}

// Result is the classifier reply.
type Result struct {
	Sections []CandidateSection `json:"sections"`
}

// Classifier splits pages into sections.
type Classifier interface {
	SplitPagesIntoSections(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, req Request) (*Result, error)

func (f Func) SplitPagesIntoSections(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// LLM classifies pages with a chat model.
type LLM struct {
	client   providers.LLMClient
	prompts  *prompts.Resolver
	model    string
	recorder *llmcall.Recorder
	logger   *slog.Logger
}

// LLMConfig configures an LLM classifier.
type LLMConfig struct {
	Client  providers.LLMClient
	Prompts *prompts.Resolver // optional; embedded prompts when nil
	Model   string            // optional; client default when empty
	Logger  *slog.Logger

	// Recorder receives every chat outcome. Optional.
	Recorder *llmcall.Recorder
}

const (
	temperature = 0.1
	maxTokens   = 4096
)

// NewLLM creates an LLM classifier. A nil client is allowed; every call
// then fails with types.ErrConfiguration.
func NewLLM(cfg LLMConfig) *LLM {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewResolver(cfg.Logger)
		split_sections.Register(cfg.Prompts)
	}
	return &LLM{
		client:   cfg.Client,
		prompts:  cfg.Prompts,
		model:    cfg.Model,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// SplitPagesIntoSections sends the page images and text in one request.
func (c *LLM) SplitPagesIntoSections(ctx context.Context, req Request) (*Result, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: no LLM provider configured", types.ErrConfiguration)
	}
	if len(req.PageImages) == 0 && len(req.PageTexts) == 0 {
		return nil, errors.New("classify: empty page batch")
	}

	system, err := c.prompts.Resolve(split_sections.SystemPromptKey)
	if err != nil {
		return nil, err
	}
	user, err := c.prompts.Resolve(split_sections.UserPromptKey)
	if err != nil {
		return nil, err
	}
	instructions, err := split_sections.BuildUserPrompt(user.Text, split_sections.UserPromptData{
		StartPage:   req.StartPage,
		EndPage:     req.EndPage(),
		BookTitle:   req.BookTitle,
		ContextNote: split_sections.ContextNote(req.PreviousSectionTitle),
	})
	if err != nil {
		return nil, err
	}

	var blocks []string
	for i, text := range req.PageTexts {
		if block := split_sections.PageTextBlock(req.StartPage+i, text); block != "" {
			blocks = append(blocks, block)
		}
	}
	blocks = append(blocks, instructions)

	started := time.Now()
	resp, err := c.client.Chat(ctx, &providers.ChatRequest{
		Model: c.model,
		Messages: []providers.Message{
			{Role: "system", Content: system.Text},
			{Role: "user", Content: strings.Join(blocks, "\n\n"), Images: req.PageImages},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: split_sections.JSONSchema(),
		},
	})
	c.recorder.Record(resp, err, llmcall.RecordOptions{
		BookID:    req.BookID,
		ChapterID: req.ChapterID,
		PromptKey: split_sections.SystemPromptKey,
		Provider:  c.client.Name(),
		Model:     c.model,
		Started:   started,
	})
	if err != nil {
		if errors.Is(err, providers.ErrStructuredOutput) {
			return nil, fmt.Errorf("%w: %w", types.ErrMalformedResponse, err)
		}
		return nil, fmt.Errorf("classify pages %d-%d: %w", req.StartPage, req.EndPage(), err)
	}

	var result Result
	if err := json.Unmarshal(resp.ParsedJSON, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrMalformedResponse, err)
	}

	c.logger.Debug("classified pages",
		"start_page", req.StartPage,
		"end_page", req.EndPage(),
		"sections", len(result.Sections),
		"provider", resp.Provider,
		"tokens", resp.TotalTokens,
		"attempts", resp.Attempts,
	)
	return &result, nil
}

var _ Classifier = (*LLM)(nil)
