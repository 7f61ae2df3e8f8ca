package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pavelanni/voicetutor/internal/llm/prompts"
	"github.com/pavelanni/voicetutor/internal/model"
)

func TestNormalizeDrafts(t *testing.T) {
	tests := []struct {
		name      string
		drafts    []model.QuestionDraft
		count     int
		wantCount int
		wantErr   bool
	}{
		{"empty", nil, 3, 0, true},
		{"blank prompts only", []model.QuestionDraft{{Prompt: "  "}}, 3, 0, true},
		{"fewer than asked", []model.QuestionDraft{{Prompt: "a"}, {Prompt: "b"}}, 3, 2, false},
		{"more than asked", []model.QuestionDraft{{Prompt: "a"}, {Prompt: "b"}, {Prompt: "c"}}, 2, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeDrafts(tt.drafts, tt.count)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeDrafts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantCount {
				t.Errorf("normalizeDrafts() returned %d, want %d", len(got), tt.wantCount)
			}
		})
	}

	got, _ := normalizeDrafts([]model.QuestionDraft{{Prompt: "a", Difficulty: "extreme"}}, 1)
	if got[0].Difficulty != model.DifficultyMedium {
		t.Errorf("expected unknown difficulty to become medium, got %q", got[0].Difficulty)
	}
}

func TestEvaluationFollowup(t *testing.T) {
	e := Evaluation{NeedFollowup: true, FollowupQuestion: "Why?", FollowupAnswer: "Because."}
	d, ok := e.Followup()
	if !ok || d.Prompt != "Why?" || d.ModelAnswer != "Because." {
		t.Errorf("unexpected followup %+v %v", d, ok)
	}

	if _, ok := (Evaluation{NeedFollowup: true}).Followup(); ok {
		t.Error("expected no followup without a question")
	}
	if _, ok := (Evaluation{FollowupQuestion: "Why?"}).Followup(); ok {
		t.Error("expected no followup when not needed")
	}
}

// chatServer answers every chat completion with content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvaluateAnswer(t *testing.T) {
	if err := prompts.Load(prompts.Templates); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := chatServer(t, `{"is_correct": false, "feedback": "Close.", "need_followup": true, "followup_question": "What gas do plants take in?", "followup_answer": "Carbon dioxide."}`)
	c := New(srv.URL, "test-key", "test-model", prompts.PromptStandard)
	q := model.Question{Prompt: "How do plants make food?", ModelAnswer: "Photosynthesis."}

	t.Run("followup allowed", func(t *testing.T) {
		got, err := c.EvaluateAnswer(context.Background(), q, "sunlight", true)
		if err != nil {
			t.Fatalf("EvaluateAnswer: %v", err)
		}
		if got.IsCorrect || got.Feedback != "Close." {
			t.Errorf("unexpected evaluation %+v", got)
		}
		if _, ok := got.Followup(); !ok {
			t.Error("expected a followup")
		}
	})

	t.Run("followup budget exhausted", func(t *testing.T) {
		got, err := c.EvaluateAnswer(context.Background(), q, "sunlight", false)
		if err != nil {
			t.Fatalf("EvaluateAnswer: %v", err)
		}
		if _, ok := got.Followup(); ok {
			t.Error("expected followup to be dropped")
		}
	})
}

func TestGenerateQuestions(t *testing.T) {
	if err := prompts.Load(prompts.Templates); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := chatServer(t, `{"questions": [{"prompt": "What is chlorophyll?", "model_answer": "A green pigment.", "difficulty": "easy"}, {"prompt": "Where does photosynthesis happen?", "model_answer": "In chloroplasts."}]}`)
	c := New(srv.URL, "test-key", "test-model", prompts.PromptStandard)

	got, err := c.GenerateQuestions(context.Background(), "Plants use chlorophyll.", 2)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got))
	}
	if got[1].Difficulty != model.DifficultyMedium {
		t.Errorf("expected default difficulty, got %q", got[1].Difficulty)
	}
}

func TestEvaluateAnswerBadJSON(t *testing.T) {
	if err := prompts.Load(prompts.Templates); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := chatServer(t, `not json`)
	c := New(srv.URL, "test-key", "test-model", prompts.PromptStandard)

	if _, err := c.EvaluateAnswer(context.Background(), model.Question{Prompt: "q"}, "a", true); err == nil {
		t.Error("expected parse error")
	}
}
