// Package client talks to the tutoring backend over HTTP. A Client serves as
// the repository of both the study engine and the upload pipeline.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/voicetutor/internal/engine"
	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/upload"
)

var (
	_ engine.Repository = (*Client)(nil)
	_ upload.Repository = (*Client)(nil)
)

// Error is a non-2xx response. It matches model.ErrNotFound and
// model.ErrNoMoreQuestions through errors.Is when the server reported the
// corresponding code.
type Error struct {
	Status int
	API    model.APIError
}

func (e *Error) Error() string {
	if e.API.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s: %s", e.Status, e.API.Code, e.API.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.API.Code == model.CodeNotFound
	case model.ErrNoMoreQuestions:
		return e.API.Code == model.CodeNoMoreQuestions
	}
	return false
}

// Client is an HTTP client for the backend API.
type Client struct {
	baseURL string
	lang    string
	http    *http.Client
}

// DefaultTimeout bounds every request, including answer evaluation which
// waits for transcription and the LLM.
const DefaultTimeout = 2 * time.Minute

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the backend at baseURL. lang is sent as
// Accept-Language so server messages come back localized.
func New(baseURL, lang string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		lang:    lang,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	return req, nil
}

// do sends req and decodes a JSON response into out, which may be nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(data, &apiErr.API); err != nil {
			apiErr.API.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func personalPath(id int64, suffix string) string {
	return "/api/personal-assignments/" + strconv.FormatInt(id, 10) + suffix
}

func assignmentPath(id int64, suffix string) string {
	return "/api/assignments/" + strconv.FormatInt(id, 10) + suffix
}

// PersonalAssignmentQuestions returns the base questions of an attempt.
func (c *Client) PersonalAssignmentQuestions(ctx context.Context, personalAssignmentID int64) ([]model.Question, error) {
	var qs []model.Question
	if err := c.getJSON(ctx, personalPath(personalAssignmentID, "/questions"), &qs); err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return qs, nil
}

func (c *Client) NextQuestion(ctx context.Context, personalAssignmentID int64) (model.Question, error) {
	var q model.Question
	if err := c.getJSON(ctx, personalPath(personalAssignmentID, "/next-question"), &q); err != nil {
		return model.Question{}, fmt.Errorf("get next question: %w", err)
	}
	return q, nil
}

func (c *Client) PersonalAssignmentStatistics(ctx context.Context, personalAssignmentID int64) (model.ProgressStatistics, error) {
	var st model.ProgressStatistics
	if err := c.getJSON(ctx, personalPath(personalAssignmentID, "/statistics"), &st); err != nil {
		return model.ProgressStatistics{}, fmt.Errorf("get statistics: %w", err)
	}
	return st, nil
}

// PersonalAssignments lists attempts of a student. assignmentID 0 means all.
func (c *Client) PersonalAssignments(ctx context.Context, studentID, assignmentID int64) ([]model.PersonalAssignment, error) {
	q := url.Values{}
	q.Set("student_id", strconv.FormatInt(studentID, 10))
	if assignmentID != 0 {
		q.Set("assignment_id", strconv.FormatInt(assignmentID, 10))
	}
	var list []model.PersonalAssignment
	if err := c.getJSON(ctx, "/api/personal-assignments?"+q.Encode(), &list); err != nil {
		return nil, fmt.Errorf("list personal assignments: %w", err)
	}
	return list, nil
}

// SubmitAnswer uploads the recording at audioPath as the answer to a question.
func (c *Client) SubmitAnswer(ctx context.Context, personalAssignmentID, studentID, questionID int64, audioPath string) (model.AnswerOutcome, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return model.AnswerOutcome{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("student_id", strconv.FormatInt(studentID, 10)); err != nil {
		return model.AnswerOutcome{}, err
	}
	if err := mw.WriteField("question_id", strconv.FormatInt(questionID, 10)); err != nil {
		return model.AnswerOutcome{}, err
	}
	fw, err := mw.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return model.AnswerOutcome{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return model.AnswerOutcome{}, fmt.Errorf("read recording: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.AnswerOutcome{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, personalPath(personalAssignmentID, "/answers"), &body)
	if err != nil {
		return model.AnswerOutcome{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp model.SubmitAnswerResponse
	if err := c.do(req, &resp); err != nil {
		return model.AnswerOutcome{}, fmt.Errorf("submit answer: %w", err)
	}
	return resp.Outcome, nil
}

func (c *Client) CompletePersonalAssignment(ctx context.Context, personalAssignmentID int64) error {
	var resp model.CompleteResponse
	if err := c.postJSON(ctx, personalPath(personalAssignmentID, "/complete"), nil, &resp); err != nil {
		return fmt.Errorf("complete personal assignment: %w", err)
	}
	return nil
}

func (c *Client) CreateAssignment(ctx context.Context, req model.CreateAssignmentRequest) (model.CreatedAssignment, error) {
	var created model.CreatedAssignment
	if err := c.postJSON(ctx, "/api/assignments", req, &created); err != nil {
		return model.CreatedAssignment{}, err
	}
	return created, nil
}

// UploadBinary PUTs the file at filePath to uploadURL, which must be an
// absolute URL issued by CreateAssignment.
func (c *Client) UploadBinary(ctx context.Context, uploadURL, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/pdf"
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, nil)
}

func (c *Client) CreateQuestionsAfterUpload(ctx context.Context, assignmentID int64, materialID string, totalNumber int) error {
	var qs []model.Question
	return c.postJSON(ctx, assignmentPath(assignmentID, "/questions"), model.GenerateQuestionsRequest{
		MaterialID:  materialID,
		TotalNumber: totalNumber,
	}, &qs)
}

func (c *Client) CheckUploadStatus(ctx context.Context, assignmentID int64) (model.UploadStatus, error) {
	var st model.UploadStatus
	if err := c.getJSON(ctx, assignmentPath(assignmentID, "/upload-status"), &st); err != nil {
		return model.UploadStatus{}, fmt.Errorf("check upload status: %w", err)
	}
	return st, nil
}

func (c *Client) Assignments(ctx context.Context) ([]model.Assignment, error) {
	var list []model.Assignment
	if err := c.getJSON(ctx, "/api/assignments", &list); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return list, nil
}

func (c *Client) Students(ctx context.Context) ([]model.Student, error) {
	var list []model.Student
	if err := c.getJSON(ctx, "/api/students", &list); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return list, nil
}

func (c *Client) CreateStudent(ctx context.Context, name string) (model.Student, error) {
	var st model.Student
	if err := c.postJSON(ctx, "/api/students", model.Student{Name: name}, &st); err != nil {
		return model.Student{}, fmt.Errorf("create student: %w", err)
	}
	return st, nil
}

// Enroll creates the attempt of a student for an assignment, or returns the
// existing one.
func (c *Client) Enroll(ctx context.Context, assignmentID, studentID int64) (model.PersonalAssignment, error) {
	var pa model.PersonalAssignment
	if err := c.postJSON(ctx, assignmentPath(assignmentID, "/enrollments"), model.EnrollRequest{StudentID: studentID}, &pa); err != nil {
		return model.PersonalAssignment{}, fmt.Errorf("enroll: %w", err)
	}
	return pa, nil
}
