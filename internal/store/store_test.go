package store

import (
	"errors"
	"testing"

	"github.com/pavelanni/voicetutor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func drafts(prompts ...string) []model.QuestionDraft {
	out := make([]model.QuestionDraft, len(prompts))
	for i, p := range prompts {
		out[i] = model.QuestionDraft{Prompt: p, ModelAnswer: "answer to " + p}
	}
	return out
}

// enrolled creates an assignment with the given base questions and enrolls
// a fresh student in it.
func enrolled(t *testing.T, s *Store, prompts ...string) model.PersonalAssignment {
	t.Helper()
	created, err := s.CreateAssignment(model.CreateAssignmentRequest{
		Title:     "Cells",
		Subject:   "Biology",
		Questions: drafts(prompts...),
	}, "http://localhost:8080")
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	st, err := s.CreateStudent("student-" + created.MaterialID[:8])
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	pa, err := s.Enroll(st.ID, created.AssignmentID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	return pa
}

func answer(t *testing.T, s *Store, paID, questionID int64, correct bool) {
	t.Helper()
	if _, err := s.RecordAnswer(model.Answer{
		PersonalAssignmentID: paID,
		QuestionID:           questionID,
		Transcript:           "transcript",
		IsCorrect:            correct,
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
}

func TestCreateAssignment(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateAssignment(model.CreateAssignmentRequest{
		Title:     "Cells",
		Subject:   "Biology",
		Questions: drafts("What is a cell?", "Name an organelle."),
	}, "http://localhost:8080")
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if created.MaterialID == "" || created.StorageKey == "" {
		t.Fatalf("expected material ID and storage key, got %+v", created)
	}
	want := "http://localhost:8080/storage/" + created.StorageKey
	if created.UploadURL != want {
		t.Errorf("expected upload URL %q, got %q", want, created.UploadURL)
	}

	a, err := s.GetAssignment(created.AssignmentID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a.Title != "Cells" || a.MaterialID != created.MaterialID {
		t.Errorf("unexpected assignment %+v", a)
	}
	if a.TotalQuestions != 2 {
		t.Errorf("expected 2 questions, got %d", a.TotalQuestions)
	}

	qs, err := s.BaseQuestions(created.AssignmentID)
	if err != nil {
		t.Fatalf("BaseQuestions: %v", err)
	}
	if len(qs) != 2 || qs[0].Number != "1" || qs[1].Number != "2" {
		t.Fatalf("unexpected base questions %+v", qs)
	}
	if qs[0].Difficulty != model.DifficultyMedium {
		t.Errorf("expected default difficulty medium, got %q", qs[0].Difficulty)
	}

	// Not found.
	_, err = s.GetAssignment(9999)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertQuestionsContinuesNumbering(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateAssignment(model.CreateAssignmentRequest{
		Title: "Cells", Subject: "Biology", Questions: drafts("Q1"),
	}, "")
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	qs, err := s.InsertQuestions(created.AssignmentID, drafts("Q2", "Q3"))
	if err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}
	if qs[0].Number != "2" || qs[1].Number != "3" {
		t.Errorf("expected numbers 2 and 3, got %q and %q", qs[0].Number, qs[1].Number)
	}

	list, err := s.ListAssignments()
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 1 || list[0].TotalQuestions != 3 {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestMaterialUpload(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateAssignment(model.CreateAssignmentRequest{Title: "Cells", Subject: "Biology"}, "")
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	st, err := s.UploadStatus(created.AssignmentID, "materials")
	if err != nil {
		t.Fatalf("UploadStatus: %v", err)
	}
	if st.Exists {
		t.Errorf("expected no upload yet, got %+v", st)
	}
	if _, err := s.MaterialData(created.MaterialID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound before upload, got %v", err)
	}

	data := []byte("%PDF-1.4 test")
	if err := s.PutMaterialData(created.StorageKey, "application/pdf", data); err != nil {
		t.Fatalf("PutMaterialData: %v", err)
	}

	st, err = s.UploadStatus(created.AssignmentID, "materials")
	if err != nil {
		t.Fatalf("UploadStatus: %v", err)
	}
	if !st.Exists || st.Size != int64(len(data)) || st.ContentType != "application/pdf" || st.Bucket != "materials" {
		t.Errorf("unexpected status %+v", st)
	}
	if st.LastModified.IsZero() {
		t.Error("expected last modified to be set")
	}

	got, err := s.MaterialData(created.MaterialID)
	if err != nil {
		t.Fatalf("MaterialData: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("expected %q, got %q", data, got)
	}

	if err := s.PutMaterialData("materials/unknown.pdf", "application/pdf", data); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown key, got %v", err)
	}
	if _, err := s.UploadStatus(9999, "materials"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown assignment, got %v", err)
	}
}

func TestEnrollIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	pa := enrolled(t, s, "Q1", "Q2")

	if pa.Status != model.StatusNotStarted {
		t.Errorf("expected NOT_STARTED, got %q", pa.Status)
	}
	if pa.TotalQuestions != 2 {
		t.Errorf("expected 2 total questions, got %d", pa.TotalQuestions)
	}

	again, err := s.Enroll(pa.StudentID, pa.AssignmentID)
	if err != nil {
		t.Fatalf("Enroll again: %v", err)
	}
	if again.ID != pa.ID {
		t.Errorf("expected same personal assignment %d, got %d", pa.ID, again.ID)
	}

	if _, err := s.Enroll(9999, pa.AssignmentID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown student, got %v", err)
	}
}

func TestPersonalAssignmentsFilter(t *testing.T) {
	s := newTestStore(t)
	first := enrolled(t, s, "Q1")
	second := enrolled(t, s, "Q1", "Q2")

	tests := []struct {
		name         string
		studentID    int64
		assignmentID int64
		wantCount    int
	}{
		{"all", 0, 0, 2},
		{"by student", first.StudentID, 0, 1},
		{"by assignment", 0, second.AssignmentID, 1},
		{"by both", first.StudentID, first.AssignmentID, 1},
		{"no match", first.StudentID, second.AssignmentID, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.PersonalAssignments(tt.studentID, tt.assignmentID)
			if err != nil {
				t.Fatalf("PersonalAssignments: %v", err)
			}
			if len(list) != tt.wantCount {
				t.Errorf("expected %d, got %d", tt.wantCount, len(list))
			}
		})
	}
}

func TestNextQuestionWalksSequenceWithTails(t *testing.T) {
	s := newTestStore(t)
	pa := enrolled(t, s, "Q1", "Q2")

	q, err := s.NextQuestion(pa.ID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if q.Number != "1" {
		t.Fatalf("expected question 1, got %q", q.Number)
	}

	got, err := s.GetPersonalAssignment(pa.ID)
	if err != nil {
		t.Fatalf("GetPersonalAssignment: %v", err)
	}
	if got.Status != model.StatusInProgress || got.StartedAt == nil {
		t.Errorf("expected IN_PROGRESS with start time, got %q %v", got.Status, got.StartedAt)
	}

	// A wrong answer earns a follow-up, which comes before question 2.
	answer(t, s, pa.ID, q.ID, false)
	tail, err := s.AddTailQuestion(pa.ID, q.ID, model.QuestionDraft{Prompt: "Try again"})
	if err != nil {
		t.Fatalf("AddTailQuestion: %v", err)
	}
	if tail.Number != "1-1" {
		t.Errorf("expected tail number 1-1, got %q", tail.Number)
	}

	next, err := s.NextQuestion(pa.ID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if next.ID != tail.ID {
		t.Fatalf("expected tail %d next, got %+v", tail.ID, next)
	}

	answer(t, s, pa.ID, tail.ID, false)
	tail2, err := s.AddTailQuestion(pa.ID, q.ID, model.QuestionDraft{Prompt: "Once more"})
	if err != nil {
		t.Fatalf("AddTailQuestion: %v", err)
	}
	if tail2.Number != "1-2" {
		t.Errorf("expected tail number 1-2, got %q", tail2.Number)
	}
	answer(t, s, pa.ID, tail2.ID, true)

	next, err = s.NextQuestion(pa.ID)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if next.Number != "2" {
		t.Fatalf("expected question 2, got %q", next.Number)
	}
	answer(t, s, pa.ID, next.ID, true)

	_, err = s.NextQuestion(pa.ID)
	if !errors.Is(err, model.ErrNoMoreQuestions) {
		t.Errorf("expected ErrNoMoreQuestions, got %v", err)
	}

	seq, err := s.Sequence(pa.ID)
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	var numbers []string
	for _, q := range seq {
		numbers = append(numbers, q.Number)
	}
	want := []string{"1", "1-1", "1-2", "2"}
	if len(numbers) != len(want) {
		t.Fatalf("expected %v, got %v", want, numbers)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Errorf("sequence[%d]: expected %q, got %q", i, want[i], numbers[i])
		}
	}
}

func TestTailQuestionsArePerAttempt(t *testing.T) {
	s := newTestStore(t)
	pa := enrolled(t, s, "Q1")
	other, err := s.CreateStudent("other")
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	otherPA, err := s.Enroll(other.ID, pa.AssignmentID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	base, err := s.PersonalAssignmentQuestions(pa.ID)
	if err != nil {
		t.Fatalf("PersonalAssignmentQuestions: %v", err)
	}
	if _, err := s.AddTailQuestion(pa.ID, base[0].ID, model.QuestionDraft{Prompt: "follow up"}); err != nil {
		t.Fatalf("AddTailQuestion: %v", err)
	}

	seq, err := s.Sequence(otherPA.ID)
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if len(seq) != 1 {
		t.Errorf("expected other attempt to see only the base question, got %d", len(seq))
	}

	// Base questions never include tails.
	base, err = s.PersonalAssignmentQuestions(pa.ID)
	if err != nil {
		t.Fatalf("PersonalAssignmentQuestions: %v", err)
	}
	if len(base) != 1 {
		t.Errorf("expected 1 base question, got %d", len(base))
	}
}

func TestBaseOf(t *testing.T) {
	s := newTestStore(t)
	pa := enrolled(t, s, "Q1")
	base, _ := s.PersonalAssignmentQuestions(pa.ID)
	tail, err := s.AddTailQuestion(pa.ID, base[0].ID, model.QuestionDraft{Prompt: "follow up"})
	if err != nil {
		t.Fatalf("AddTailQuestion: %v", err)
	}

	got, tails, err := s.BaseOf(pa.ID, tail.ID)
	if err != nil {
		t.Fatalf("BaseOf: %v", err)
	}
	if got.ID != base[0].ID || tails != 1 {
		t.Errorf("expected base %d with 1 tail, got %d with %d", base[0].ID, got.ID, tails)
	}

	if _, err := s.AddTailQuestion(pa.ID, tail.ID, model.QuestionDraft{Prompt: "x"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound when hanging a tail off a tail, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	pa := enrolled(t, s, "Q1", "Q2", "Q3", "Q4")
	base, _ := s.PersonalAssignmentQuestions(pa.ID)

	st, err := s.Statistics(pa.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st != (model.ProgressStatistics{TotalBaseQuestions: 4, TotalQuestionsIncludingTail: 4}) {
		t.Errorf("unexpected initial statistics %+v", st)
	}

	// Q1 correct; Q2 wrong with an unanswered follow-up.
	answer(t, s, pa.ID, base[0].ID, true)
	answer(t, s, pa.ID, base[1].ID, false)
	if _, err := s.AddTailQuestion(pa.ID, base[1].ID, model.QuestionDraft{Prompt: "follow up"}); err != nil {
		t.Fatalf("AddTailQuestion: %v", err)
	}

	st, err = s.Statistics(pa.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	want := model.ProgressStatistics{
		TotalBaseQuestions:          4,
		SolvedQuestions:             1,
		TotalQuestionsIncludingTail: 5,
		AnsweredQuestions:           2,
		CorrectAnswers:              1,
		Accuracy:                    0.5,
		Progress:                    0.25,
	}
	if st != want {
		t.Errorf("expected %+v, got %+v", want, st)
	}

	list, err := s.PersonalAssignments(pa.StudentID, pa.AssignmentID)
	if err != nil {
		t.Fatalf("PersonalAssignments: %v", err)
	}
	if list[0].SolvedNum != 1 {
		t.Errorf("expected solved num 1, got %d", list[0].SolvedNum)
	}

	if _, err := s.Statistics(9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompletePersonalAssignment(t *testing.T) {
	tests := []struct {
		name   string
		answer bool
		want   model.AssignmentStatus
	}{
		{"unsolved stays submitted", false, model.StatusSubmitted},
		{"all solved is graded", true, model.StatusGraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			pa := enrolled(t, s, "Q1")
			if tt.answer {
				base, _ := s.PersonalAssignmentQuestions(pa.ID)
				answer(t, s, pa.ID, base[0].ID, true)
			}

			status, err := s.CompletePersonalAssignment(pa.ID)
			if err != nil {
				t.Fatalf("CompletePersonalAssignment: %v", err)
			}
			if status != tt.want {
				t.Errorf("expected %q, got %q", tt.want, status)
			}
			got, _ := s.GetPersonalAssignment(pa.ID)
			if got.Status != tt.want || got.SubmittedAt == nil {
				t.Errorf("expected stored %q with submit time, got %q %v", tt.want, got.Status, got.SubmittedAt)
			}
		})
	}

	s := newTestStore(t)
	if _, err := s.CompletePersonalAssignment(9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStudents(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListStudents()
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty roster, got %d", len(list))
	}

	st, err := s.CreateStudent("minji")
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	byName, err := s.GetStudentByName("minji")
	if err != nil {
		t.Fatalf("GetStudentByName: %v", err)
	}
	if byName.ID != st.ID {
		t.Errorf("expected ID %d, got %d", st.ID, byName.ID)
	}

	// Names are unique.
	if _, err := s.CreateStudent("minji"); err == nil {
		t.Error("expected error for duplicate name")
	}
	if _, err := s.GetStudent(9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/seed.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/seed.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/some/seed.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/seed.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/seed.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)
	pa := enrolled(t, s, "Q1", "Q2")
	base, _ := s.PersonalAssignmentQuestions(pa.ID)
	answer(t, s, pa.ID, base[0].ID, false)
	answer(t, s, pa.ID, base[0].ID, true)

	results, err := s.ExportResults()
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Title != "Cells" || r.Statistics.TotalBaseQuestions != 2 {
		t.Errorf("unexpected result %+v", r)
	}
	if len(r.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(r.Questions))
	}
	if len(r.Questions[0].Answers) != 2 || len(r.Questions[1].Answers) != 0 {
		t.Errorf("unexpected answers %d/%d", len(r.Questions[0].Answers), len(r.Questions[1].Answers))
	}
}
