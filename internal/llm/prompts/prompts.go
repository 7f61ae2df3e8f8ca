package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/voicetutor/internal/model"
)

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Templates embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
	materialRegex           = regexp.MustCompile(`(?i)</?\s*material\b[^>]*>`)
)

const (
	maxAnswerRunes   = 10000
	maxMaterialRunes = 60000
)

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict requires every essential point of the model answer.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient accepts broadly right answers, for younger students.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce         sync.Once
	loadErr          error
	evalTemplates    map[PromptVariant]*template.Template
	generateTemplate *template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// EvalData holds template data for answer evaluation prompts.
type EvalData struct {
	QuestionText string
	ModelAnswer  string
	Explanation  string
	Answer       string
	CanFollowup  bool
}

// GenerateData holds template data for question generation prompts.
type GenerateData struct {
	Material string
	Count    int
}

// Load parses the prompt templates from fsys, normally Templates.
// Templates are loaded only once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		evalTemplates = make(map[PromptVariant]*template.Template)

		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			tmpl, err := parseFile(fsys, "templates/eval_"+string(v)+".txt")
			if err != nil {
				loadErr = err
				return
			}
			evalTemplates[v] = tmpl
		}

		generateTemplate, loadErr = parseFile(fsys, "templates/generate.txt")
	})
	return loadErr
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// BuildEvalPrompt builds the prompt that judges a transcribed answer.
func BuildEvalPrompt(variant PromptVariant, question model.Question, transcript string, canFollowup bool) (string, error) {
	if evalTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := evalTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := EvalData{
		QuestionText: question.Prompt,
		ModelAnswer:  question.ModelAnswer,
		Explanation:  question.Explanation,
		Answer:       sanitizeAnswer(transcript),
		CanFollowup:  canFollowup,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildGeneratePrompt builds the prompt that writes count questions from
// material text.
func BuildGeneratePrompt(material string, count int) (string, error) {
	if generateTemplate == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	material = materialRegex.ReplaceAllString(material, "")
	material = truncate(strings.TrimSpace(material), maxMaterialRunes, "\n\n[Material truncated]")

	var buf bytes.Buffer
	if err := generateTemplate.Execute(&buf, GenerateData{Material: material, Count: count}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}
	return truncate(answer, maxAnswerRunes, "\n\n[Answer truncated due to length]")
}

func truncate(s string, limit int, marker string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + marker
}
