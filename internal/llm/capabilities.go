package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/gatewarden/internal/session"
)

// noValue is the sentinel small models are instructed to answer when a
// value cannot be determined.
const noValue = "-1"

// Transcript renders messages the way the prompts expect them.
func Transcript(msgs []session.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ValidateInput classifies whether the input belongs in a checkpoint
// conversation. Unclear answers count as relevant; only an explicit
// "unrelated" rejects.
func (c *Client) ValidateInput(ctx context.Context, input string) (bool, error) {
	out, err := c.complete(ctx, c.cfg.Validation, []message{
		{Role: "system", Content: validateSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Input to validate: %q", input)},
	})
	if err != nil {
		return false, err
	}
	out = strings.ToLower(out)
	if strings.Contains(out, "unrelated") {
		return false, nil
	}
	return true, nil
}

// DetectNewVisitor reports whether the latest message signals a different
// person at the gate. Biased toward "same": only an unambiguous "new"
// answer triggers a reset.
func (c *Client) DetectNewVisitor(ctx context.Context, msgs []session.Message, latest string) (bool, error) {
	recent := msgs
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	prompt := fmt.Sprintf("CONVERSATION CONTEXT:\n%s\n\nLATEST MESSAGE: %s", Transcript(recent), latest)

	out, err := c.complete(ctx, c.cfg.Session, []message{
		{Role: "system", Content: sessionSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return false, err
	}
	out = strings.ToLower(out)
	return strings.Contains(out, "new") && !strings.Contains(out, "same"), nil
}

// ExtractField pulls one profile field out of the transcript. Returns ""
// when the model cannot determine a value. The answer is cleaned of the
// label prefixes small models like to add and trimmed to three words.
func (c *Client) ExtractField(ctx context.Context, field string, msgs []session.Message) (string, error) {
	desc, ok := fieldDescriptions[field]
	if !ok {
		return "", fmt.Errorf("no extraction description for field %q", field)
	}

	prompt := fmt.Sprintf(extractionPromptFormat, field, desc, Transcript(msgs))
	out, err := c.complete(ctx, c.cfg.Main, []message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}

	value := cleanExtraction(out, field)
	if value == noValue || value == "" {
		return "", nil
	}
	return value, nil
}

// MatchContact asks the model to map the conversation to one of the known
// contact names. Returns "" when no known contact is referenced. The
// answer is kept verbatim apart from whitespace and quote trimming;
// contact names must round-trip against the directory untouched.
func (c *Client) MatchContact(ctx context.Context, msgs []session.Message, known []string) (string, error) {
	list := make([]string, len(known))
	for i, name := range known {
		list[i] = "- " + name
	}

	prompt := fmt.Sprintf(contactPromptFormat, strings.Join(list, "\n"), Transcript(msgs))
	out, err := c.complete(ctx, c.cfg.Main, []message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}

	candidate := strings.Trim(strings.TrimSpace(out), "\"'")
	if candidate == noValue {
		return "", nil
	}
	return candidate, nil
}

// Summarize condenses older conversation history into a short summary.
func (c *Client) Summarize(ctx context.Context, conversation string) (string, error) {
	out, err := c.complete(ctx, c.cfg.Summary, []message{
		{Role: "user", Content: fmt.Sprintf(summaryPromptFormat, conversation)},
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("empty summary")
	}
	return out, nil
}

// Outcome is the structured result of decision classification.
type Outcome struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Decide classifies the completed profile into an access outcome.
// Parse failures are returned as errors; the decision engine owns the
// fail-closed fallback.
func (c *Client) Decide(ctx context.Context, profileSummary, conversation string) (Outcome, error) {
	out, err := c.complete(ctx, c.cfg.Decision, []message{
		{Role: "user", Content: fmt.Sprintf(decisionPromptFormat, profileSummary, conversation)},
	})
	if err != nil {
		return Outcome{}, err
	}

	raw, err := extractObject(out)
	if err != nil {
		return Outcome{}, fmt.Errorf("decision response: %w (%s)", err, truncate(out, 200))
	}

	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return Outcome{}, fmt.Errorf("decision response: %w", err)
	}
	outcome.Decision = strings.ToLower(strings.TrimSpace(outcome.Decision))
	if outcome.Confidence < 0 {
		outcome.Confidence = 0
	}
	if outcome.Confidence > 1 {
		outcome.Confidence = 1
	}
	return outcome, nil
}

// AnalyzeFrame sends a base64 JPEG to the vision model and returns the raw
// JSON object it produced. Normalization into the vision schema happens in
// the pipeline, which owns the safe defaults.
func (c *Client) AnalyzeFrame(ctx context.Context, imageB64 string) (json.RawMessage, error) {
	msg := message{
		Role: "user",
		Content: []part{
			{Type: "image_url", ImageURL: "data:image/jpeg;base64," + imageB64},
			{Type: "text", Text: visionPrompt},
		},
	}

	out, err := c.complete(ctx, c.cfg.Vision, []message{msg})
	if err != nil {
		return nil, err
	}

	raw, err := extractObject(out)
	if err != nil {
		return nil, fmt.Errorf("vision response: %w (%s)", err, truncate(out, 200))
	}
	return raw, nil
}

// cleanExtraction strips label prefixes and quoting from an extraction
// answer and bounds it to the last three words, matching the contract the
// extraction prompt sets.
func cleanExtraction(value, field string) string {
	value = strings.TrimSpace(value)

	capitalized := field
	if field != "" {
		capitalized = strings.ToUpper(field[:1]) + field[1:]
	}
	prefixes := []string{
		field + ":",
		capitalized + ":",
		"Answer:",
		"Response:",
		"Value:",
		"Result:",
		"The " + field + " is",
		"Their " + field + " is",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			value = strings.TrimSpace(value[len(prefix):])
		}
	}
	value = strings.Trim(value, "\"'")

	words := strings.Fields(value)
	if len(words) > 3 {
		words = words[len(words)-3:]
	}
	return strings.Join(words, " ")
}
