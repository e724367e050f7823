package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataprof/internal/profile"
	"github.com/KaramelBytes/dataprof/internal/utils"
)

// DefaultPromptTokens bounds the profile summary embedded in the prompt.
const DefaultPromptTokens = 3000

const metadataSystemPrompt = `You write catalog metadata for tabular datasets.
Answer with a single JSON object and nothing else, shaped as:
{"title": string, "description": string, "tags": [string], "columns": {"<column>": string}}
Describe only columns that appear in the summary.`

// Metadata is the catalog entry generated for a dataset.
type Metadata struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Columns     map[string]string `json:"columns"`
	Model       string            `json:"model,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
}

// MetadataOptions tunes GenerateMetadata. Zero values select defaults.
type MetadataOptions struct {
	Name         string // file name shown in the summary
	PromptTokens int
	MaxTokens    int
	Temperature  float64
}

// BuildMetadataPrompt renders the chat messages for a profile.
func BuildMetadataPrompt(p *profile.DatasetProfile, opt MetadataOptions) []Message {
	limit := opt.PromptTokens
	if limit <= 0 {
		limit = DefaultPromptTokens
	}
	summary := utils.TruncateToTokenLimit(p.Markdown(opt.Name), limit)
	return []Message{
		{Role: "system", Content: metadataSystemPrompt},
		{Role: "user", Content: summary},
	}
}

// GenerateMetadata asks rt to describe the profiled dataset. An answer that
// is not a JSON object is kept verbatim as the description.
func GenerateMetadata(ctx context.Context, rt Runtime, model string, p *profile.DatasetProfile, opt MetadataOptions) (*Metadata, error) {
	if rt == nil {
		return nil, errors.New("ai runtime not configured")
	}
	if p == nil {
		return nil, errors.New("profile is nil")
	}
	maxTokens := opt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	resp, err := rt.Generate(ctx, GenerateRequest{
		Model:       model,
		Messages:    BuildMetadataPrompt(p, opt),
		MaxTokens:   maxTokens,
		Temperature: opt.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate metadata: %w", err)
	}
	md := parseMetadata(resp.Content(), p.Overview.Columns)
	md.Model = model
	md.RequestID = resp.RequestID
	return md, nil
}

// parseMetadata extracts the first JSON object from the answer. Models often
// wrap JSON in code fences or prose. Column descriptions for unknown columns
// are dropped.
func parseMetadata(answer string, columns []string) *Metadata {
	text := strings.TrimSpace(answer)
	var md Metadata
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &md); err == nil {
			known := make(map[string]bool, len(columns))
			for _, c := range columns {
				known[c] = true
			}
			for c := range md.Columns {
				if !known[c] {
					delete(md.Columns, c)
				}
			}
			if md.Tags == nil {
				md.Tags = []string{}
			}
			if md.Columns == nil {
				md.Columns = map[string]string{}
			}
			return &md
		}
	}
	return &Metadata{Description: text, Tags: []string{}, Columns: map[string]string{}}
}
