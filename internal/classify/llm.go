package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// fallbackSystemPrompt constrains the model to the event taxonomy and a
// machine-readable answer shape.
const fallbackSystemPrompt = `You classify single lines of MUD combat output.
Respond with one JSON object and nothing else:
{"type":"<damage_dealt|damage_received|miss|mob_death|player_death|fled|experience_gain|level_up|unknown>","source":"","target":"","intensity":"<none|light|medium|heavy|critical>","confidence":0.0}
"confidence" is your probability in [0,1] that "type" is correct. Use "unknown" with low confidence when the line is not a combat event.`

// fallbackAnswer is the JSON shape the model is instructed to produce.
type fallbackAnswer struct {
	Type       string  `json:"type"`
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Intensity  string  `json:"intensity"`
	Confidence float64 `json:"confidence"`
}

// AnthropicFallback implements FallbackClassifier on the Anthropic Messages
// API. It is the slow tier: call volume is bounded by the cache write-back in
// Classifier, which absorbs every accepted answer.
type AnthropicFallback struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicFallback creates a fallback classifier for the given model.
// The API key is read from the environment by the SDK when opts carry none.
//
// Precondition: model must be non-empty, logger must not be nil.
func NewAnthropicFallback(model string, logger *zap.Logger, opts ...option.RequestOption) *AnthropicFallback {
	if model == "" {
		panic("classify.NewAnthropicFallback: model must not be empty")
	}
	if logger == nil {
		panic("classify.NewAnthropicFallback: logger must not be nil")
	}
	return &AnthropicFallback{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// Classify asks the model to classify one message.
//
// Postcondition: Returns (nil, nil) when the model answers "unknown"; the
// caller's confidence threshold handles everything else.
func (f *AnthropicFallback) Classify(ctx context.Context, message string) (*CombatEvent, error) {
	resp, err := f.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(f.model),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: fallbackSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(message)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classify.AnthropicFallback: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}
	answer, err := parseFallbackAnswer(text.String())
	if err != nil {
		return nil, err
	}
	if answer.Type == EventUnknown.String() {
		return nil, nil
	}

	t, err := ParseEventType(answer.Type)
	if err != nil {
		return nil, fmt.Errorf("classify.AnthropicFallback: %w", err)
	}
	intensity, err := ParseIntensity(answer.Intensity)
	if err != nil {
		f.logger.Debug("fallback returned unknown intensity", zap.String("intensity", answer.Intensity))
		intensity = IntensityNone
	}
	return &CombatEvent{
		Type:       t,
		Source:     answer.Source,
		Target:     answer.Target,
		Intensity:  intensity,
		Confidence: answer.Confidence,
		Message:    message,
	}, nil
}

// parseFallbackAnswer extracts the JSON object from the model's reply,
// tolerating surrounding prose or code fences.
func parseFallbackAnswer(text string) (fallbackAnswer, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fallbackAnswer{}, fmt.Errorf("classify.AnthropicFallback: no JSON object in reply %q", text)
	}
	var a fallbackAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return fallbackAnswer{}, fmt.Errorf("classify.AnthropicFallback: parsing reply: %w", err)
	}
	return a, nil
}
