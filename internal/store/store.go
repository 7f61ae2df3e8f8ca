package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/voicetutor/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		subject TEXT NOT NULL,
		class_id INTEGER NOT NULL DEFAULT 0,
		grade TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		due_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		assignment_id INTEGER NOT NULL UNIQUE,
		storage_key TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		data BLOB,
		uploaded_at DATETIME,
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	CREATE TABLE IF NOT EXISTS personal_assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		assignment_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'NOT_STARTED',
		started_at DATETIME,
		submitted_at DATETIME,
		UNIQUE (student_id, assignment_id),
		FOREIGN KEY (student_id) REFERENCES students(id),
		FOREIGN KEY (assignment_id) REFERENCES assignments(id)
	);

	-- Base questions belong to an assignment. Tail questions additionally
	-- belong to one personal assignment and hang off a base question.
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL,
		personal_assignment_id INTEGER,
		parent_id INTEGER,
		number TEXT NOT NULL,
		position INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		model_answer TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'medium',
		FOREIGN KEY (assignment_id) REFERENCES assignments(id),
		FOREIGN KEY (personal_assignment_id) REFERENCES personal_assignments(id),
		FOREIGN KEY (parent_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		personal_assignment_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		transcript TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		audio_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (personal_assignment_id) REFERENCES personal_assignments(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// notFound maps sql.ErrNoRows to model.ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, model.ErrNotFound)
	}
	return err
}

// CreateAssignment stores the assignment metadata, any draft questions, and an
// empty material slot. The returned upload URL points at publicURL.
func (s *Store) CreateAssignment(req model.CreateAssignmentRequest, publicURL string) (model.CreatedAssignment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.CreatedAssignment{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	due := req.DueAt
	if due.IsZero() {
		due = now
	}
	res, err := tx.Exec(
		`INSERT INTO assignments (title, subject, class_id, grade, description, due_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.Title, req.Subject, req.ClassID, req.Grade, req.Description, due, now,
	)
	if err != nil {
		return model.CreatedAssignment{}, err
	}
	assignmentID, err := res.LastInsertId()
	if err != nil {
		return model.CreatedAssignment{}, err
	}

	materialID := uuid.NewString()
	key := "materials/" + materialID + ".pdf"
	if _, err := tx.Exec(
		`INSERT INTO materials (id, assignment_id, storage_key) VALUES (?, ?, ?)`,
		materialID, assignmentID, key,
	); err != nil {
		return model.CreatedAssignment{}, err
	}

	if _, err := insertBase(tx, assignmentID, req.Questions); err != nil {
		return model.CreatedAssignment{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.CreatedAssignment{}, err
	}
	return model.CreatedAssignment{
		AssignmentID: assignmentID,
		MaterialID:   materialID,
		StorageKey:   key,
		UploadURL:    publicURL + "/storage/" + key,
	}, nil
}

// GetAssignment returns an assignment by ID.
func (s *Store) GetAssignment(id int64) (model.Assignment, error) {
	var a model.Assignment
	err := s.db.QueryRow(
		`SELECT a.id, a.title, a.subject, a.class_id, a.grade, a.description, a.due_at, a.created_at,
		        COALESCE(m.id, ''),
		        (SELECT COUNT(*) FROM questions q WHERE q.assignment_id = a.id AND q.parent_id IS NULL)
		 FROM assignments a LEFT JOIN materials m ON m.assignment_id = a.id
		 WHERE a.id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.Subject, &a.ClassID, &a.Grade, &a.Description, &a.DueAt, &a.CreatedAt,
		&a.MaterialID, &a.TotalQuestions)
	return a, notFound(err, "assignment", id)
}

// ListAssignments returns all assignments, newest first.
func (s *Store) ListAssignments() ([]model.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.title, a.subject, a.class_id, a.grade, a.description, a.due_at, a.created_at,
		        COALESCE(m.id, ''),
		        (SELECT COUNT(*) FROM questions q WHERE q.assignment_id = a.id AND q.parent_id IS NULL)
		 FROM assignments a LEFT JOIN materials m ON m.assignment_id = a.id
		 ORDER BY a.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.Title, &a.Subject, &a.ClassID, &a.Grade, &a.Description, &a.DueAt, &a.CreatedAt,
			&a.MaterialID, &a.TotalQuestions); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// InsertQuestions appends base questions to an assignment, numbering them
// after the existing ones.
func (s *Store) InsertQuestions(assignmentID int64, drafts []model.QuestionDraft) ([]model.Question, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	qs, err := insertBase(tx, assignmentID, drafts)
	if err != nil {
		return nil, err
	}
	return qs, tx.Commit()
}

func insertBase(tx *sql.Tx, assignmentID int64, drafts []model.QuestionDraft) ([]model.Question, error) {
	var last int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(position), 0) FROM questions WHERE assignment_id = ? AND parent_id IS NULL`,
		assignmentID,
	).Scan(&last); err != nil {
		return nil, err
	}

	out := make([]model.Question, 0, len(drafts))
	for i, d := range drafts {
		pos := last + i + 1
		q := model.Question{
			Number:      fmt.Sprint(pos),
			Prompt:      d.Prompt,
			ModelAnswer: d.ModelAnswer,
			Explanation: d.Explanation,
			Difficulty:  difficultyOrDefault(d.Difficulty),
		}
		res, err := tx.Exec(
			`INSERT INTO questions (assignment_id, number, position, prompt, model_answer, explanation, difficulty)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			assignmentID, q.Number, pos, q.Prompt, q.ModelAnswer, q.Explanation, q.Difficulty,
		)
		if err != nil {
			return nil, err
		}
		if q.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func difficultyOrDefault(d model.Difficulty) model.Difficulty {
	if d == "" {
		return model.DifficultyMedium
	}
	return d
}

const questionColumns = `id, number, prompt, model_answer, explanation, difficulty`

func scanQuestions(rows *sql.Rows) ([]model.Question, error) {
	defer rows.Close()
	var qs []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Number, &q.Prompt, &q.ModelAnswer, &q.Explanation, &q.Difficulty); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// BaseQuestions returns the base questions of an assignment in order.
func (s *Store) BaseQuestions(assignmentID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT `+questionColumns+` FROM questions
		 WHERE assignment_id = ? AND parent_id IS NULL ORDER BY position`, assignmentID,
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRow(
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Number, &q.Prompt, &q.ModelAnswer, &q.Explanation, &q.Difficulty)
	return q, notFound(err, "question", id)
}

// PersonalAssignmentQuestions returns the base questions of the assignment
// behind a personal assignment.
func (s *Store) PersonalAssignmentQuestions(personalAssignmentID int64) ([]model.Question, error) {
	pa, err := s.GetPersonalAssignment(personalAssignmentID)
	if err != nil {
		return nil, err
	}
	return s.BaseQuestions(pa.AssignmentID)
}

// Sequence returns the questions of a personal assignment in answering order:
// each base question followed by its tail questions.
func (s *Store) Sequence(personalAssignmentID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT q.id, q.number, q.prompt, q.model_answer, q.explanation, q.difficulty
		 FROM questions q
		 JOIN personal_assignments pa ON pa.assignment_id = q.assignment_id
		 LEFT JOIN questions p ON p.id = q.parent_id
		 WHERE pa.id = ?
		   AND (q.parent_id IS NULL OR q.personal_assignment_id = pa.id)
		 ORDER BY COALESCE(p.position, q.position), q.parent_id IS NOT NULL, q.position`,
		personalAssignmentID,
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// answeredSet returns the IDs of questions with at least one answer.
func (s *Store) answeredSet(personalAssignmentID int64) (map[int64]bool, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT question_id FROM answers WHERE personal_assignment_id = ?`, personalAssignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

// NextQuestion returns the first unanswered question of the sequence, marking
// the attempt as started. It returns model.ErrNoMoreQuestions when every
// question has been answered.
func (s *Store) NextQuestion(personalAssignmentID int64) (model.Question, error) {
	pa, err := s.GetPersonalAssignment(personalAssignmentID)
	if err != nil {
		return model.Question{}, err
	}
	seq, err := s.Sequence(personalAssignmentID)
	if err != nil {
		return model.Question{}, err
	}
	answered, err := s.answeredSet(personalAssignmentID)
	if err != nil {
		return model.Question{}, err
	}
	for _, q := range seq {
		if answered[q.ID] {
			continue
		}
		if pa.Status == model.StatusNotStarted {
			if err := s.UpdatePersonalStatus(personalAssignmentID, model.StatusInProgress); err != nil {
				return model.Question{}, err
			}
		}
		return q, nil
	}
	return model.Question{}, fmt.Errorf("personal assignment %d: %w", personalAssignmentID, model.ErrNoMoreQuestions)
}

// AddTailQuestion stores a follow-up to base question baseID for one attempt.
// It is numbered "N-k", where k counts the follow-ups of that base question.
func (s *Store) AddTailQuestion(personalAssignmentID, baseID int64, d model.QuestionDraft) (model.Question, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Question{}, err
	}
	defer tx.Rollback()

	var assignmentID int64
	var baseNumber string
	err = tx.QueryRow(
		`SELECT assignment_id, number FROM questions WHERE id = ? AND parent_id IS NULL`, baseID,
	).Scan(&assignmentID, &baseNumber)
	if err != nil {
		return model.Question{}, notFound(err, "base question", baseID)
	}

	var k int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM questions WHERE parent_id = ? AND personal_assignment_id = ?`,
		baseID, personalAssignmentID,
	).Scan(&k); err != nil {
		return model.Question{}, err
	}
	k++

	q := model.Question{
		Number:      fmt.Sprintf("%s-%d", baseNumber, k),
		Prompt:      d.Prompt,
		ModelAnswer: d.ModelAnswer,
		Explanation: d.Explanation,
		Difficulty:  difficultyOrDefault(d.Difficulty),
	}
	res, err := tx.Exec(
		`INSERT INTO questions (assignment_id, personal_assignment_id, parent_id, number, position, prompt, model_answer, explanation, difficulty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		assignmentID, personalAssignmentID, baseID, q.Number, k, q.Prompt, q.ModelAnswer, q.Explanation, q.Difficulty,
	)
	if err != nil {
		return model.Question{}, err
	}
	if q.ID, err = res.LastInsertId(); err != nil {
		return model.Question{}, err
	}
	return q, tx.Commit()
}

// BaseOf returns the base question a question belongs to and the number of
// follow-ups that base question already has in the attempt.
func (s *Store) BaseOf(personalAssignmentID, questionID int64) (model.Question, int, error) {
	var baseID int64
	err := s.db.QueryRow(
		`SELECT COALESCE(parent_id, id) FROM questions WHERE id = ?`, questionID,
	).Scan(&baseID)
	if err != nil {
		return model.Question{}, 0, notFound(err, "question", questionID)
	}
	base, err := s.GetQuestion(baseID)
	if err != nil {
		return model.Question{}, 0, err
	}
	var tails int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM questions WHERE parent_id = ? AND personal_assignment_id = ?`,
		baseID, personalAssignmentID,
	).Scan(&tails)
	return base, tails, err
}

// RecordAnswer stores an evaluated answer.
func (s *Store) RecordAnswer(a model.Answer) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO answers (personal_assignment_id, question_id, transcript, is_correct, feedback, audio_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.PersonalAssignmentID, a.QuestionID, a.Transcript, a.IsCorrect, a.Feedback, a.AudioPath, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Answers returns all answers of an attempt in submission order.
func (s *Store) Answers(personalAssignmentID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, personal_assignment_id, question_id, transcript, is_correct, feedback, audio_path, created_at
		 FROM answers WHERE personal_assignment_id = ? ORDER BY id`, personalAssignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.PersonalAssignmentID, &a.QuestionID, &a.Transcript, &a.IsCorrect,
			&a.Feedback, &a.AudioPath, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Statistics computes the progress of an attempt. A base question is solved
// once it and every follow-up generated for it have been answered.
func (s *Store) Statistics(personalAssignmentID int64) (model.ProgressStatistics, error) {
	if _, err := s.GetPersonalAssignment(personalAssignmentID); err != nil {
		return model.ProgressStatistics{}, err
	}
	seq, err := s.Sequence(personalAssignmentID)
	if err != nil {
		return model.ProgressStatistics{}, err
	}
	answers, err := s.Answers(personalAssignmentID)
	if err != nil {
		return model.ProgressStatistics{}, err
	}

	latest := make(map[int64]bool) // question ID -> latest answer correct
	for _, a := range answers {
		latest[a.QuestionID] = a.IsCorrect
	}

	var st model.ProgressStatistics
	st.TotalQuestionsIncludingTail = len(seq)
	pending := make(map[string]bool) // base number -> has an unanswered question
	for _, q := range seq {
		if !q.IsTail() {
			st.TotalBaseQuestions++
		}
		correct, ok := latest[q.ID]
		if !ok {
			pending[q.BaseNumber()] = true
			continue
		}
		st.AnsweredQuestions++
		if correct {
			st.CorrectAnswers++
		}
	}
	for _, q := range seq {
		if !q.IsTail() && !pending[q.Number] {
			st.SolvedQuestions++
		}
	}
	if st.AnsweredQuestions > 0 {
		st.Accuracy = float64(st.CorrectAnswers) / float64(st.AnsweredQuestions)
	}
	if st.TotalBaseQuestions > 0 {
		st.Progress = float64(st.SolvedQuestions) / float64(st.TotalBaseQuestions)
	}
	return st, nil
}
