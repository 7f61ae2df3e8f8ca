package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/voicetutor/internal/llm/prompts"
	"github.com/pavelanni/voicetutor/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Evaluation is the LLM's verdict on a single transcribed answer.
type Evaluation struct {
	IsCorrect        bool   `json:"is_correct"`
	Feedback         string `json:"feedback"`
	NeedFollowup     bool   `json:"need_followup"`
	FollowupQuestion string `json:"followup_question"`
	FollowupAnswer   string `json:"followup_answer"`
}

// Followup returns the follow-up question as a draft, if the evaluation asks
// for one.
func (e Evaluation) Followup() (model.QuestionDraft, bool) {
	if !e.NeedFollowup || strings.TrimSpace(e.FollowupQuestion) == "" {
		return model.QuestionDraft{}, false
	}
	return model.QuestionDraft{
		Prompt:      e.FollowupQuestion,
		ModelAnswer: e.FollowupAnswer,
		Difficulty:  model.DifficultyEasy,
	}, true
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api                *openai.Client
	model              string
	transcriptionModel string
	variant            prompts.PromptVariant
}

// New creates a new LLM client. Prompt templates must have been loaded with
// prompts.Load.
func New(baseURL, apiKey, modelName string, variant prompts.PromptVariant) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:                openai.NewClientWithConfig(config),
		model:              modelName,
		transcriptionModel: openai.Whisper1,
		variant:            variant,
	}
}

// Ping checks that the API is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM API ping: %w", err)
	}
	return nil
}

// Transcribe converts an answer recording to text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription API call: %w", err)
	}
	slog.Debug("transcribed answer", "file", audioPath, "chars", len(resp.Text))
	return resp.Text, nil
}

// EvaluateAnswer judges a transcribed answer. When canFollowup is false the
// model is told not to propose a follow-up, and any it proposes is dropped.
func (c *Client) EvaluateAnswer(ctx context.Context, question model.Question, transcript string, canFollowup bool) (Evaluation, error) {
	prompt, err := prompts.BuildEvalPrompt(c.variant, question, transcript, canFollowup)
	if err != nil {
		return Evaluation{}, fmt.Errorf("build eval prompt: %w", err)
	}

	var result Evaluation
	if err := c.completeJSON(ctx, prompt, 0.3, &result); err != nil {
		return Evaluation{}, fmt.Errorf("evaluate answer: %w", err)
	}
	if !canFollowup {
		result.NeedFollowup = false
		result.FollowupQuestion = ""
		result.FollowupAnswer = ""
	}
	return result, nil
}

// GenerateQuestions writes count questions from material text.
func (c *Client) GenerateQuestions(ctx context.Context, material string, count int) ([]model.QuestionDraft, error) {
	prompt, err := prompts.BuildGeneratePrompt(material, count)
	if err != nil {
		return nil, fmt.Errorf("build generate prompt: %w", err)
	}

	var result struct {
		Questions []model.QuestionDraft `json:"questions"`
	}
	if err := c.completeJSON(ctx, prompt, 0.7, &result); err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	return normalizeDrafts(result.Questions, count)
}

func (c *Client) completeJSON(ctx context.Context, systemPrompt string, temperature float32, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return nil
}

// normalizeDrafts drops empty questions, fixes unknown difficulties and
// keeps at most count questions.
func normalizeDrafts(drafts []model.QuestionDraft, count int) ([]model.QuestionDraft, error) {
	out := make([]model.QuestionDraft, 0, len(drafts))
	for _, d := range drafts {
		d.Prompt = strings.TrimSpace(d.Prompt)
		if d.Prompt == "" {
			continue
		}
		switch d.Difficulty {
		case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		default:
			d.Difficulty = model.DifficultyMedium
		}
		out = append(out, d)
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("LLM returned no usable questions")
	}
	return out, nil
}
