package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pavelanni/voicetutor/internal/client"
	"github.com/pavelanni/voicetutor/internal/engine"
	appI18n "github.com/pavelanni/voicetutor/internal/i18n"
	"github.com/pavelanni/voicetutor/internal/model"
)

var (
	questionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	numberStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	correctStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	wrongStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
)

func studyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Work through a personal assignment in the terminal",
		RunE:  runStudy,
	}
	f := cmd.Flags()
	f.String("student", "", "Student name or ID (required)")
	f.Int64("assignment", 0, "Assignment ID (0 = first pending assignment)")
	f.StringP("lang", "l", "ko", "Message language (ko, en)")
	addServerFlags(cmd)
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func runStudy(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	ctx, err := localized(ctx, v.GetString("lang"))
	if err != nil {
		return err
	}

	c := newClient(v, v.GetString("lang"))
	student, err := resolveStudent(ctx, c, v.GetString("student"))
	if err != nil {
		return err
	}

	assignmentID := v.GetInt64("assignment")
	if assignmentID == 0 {
		list, err := c.PersonalAssignments(ctx, student.ID, 0)
		if err != nil {
			return err
		}
		pending := model.Pending(list)
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending assignments")
			return nil
		}
		assignmentID = pending[0].AssignmentID
	}

	e := engine.New(c)
	defer e.Close()

	pa, err := e.FindPersonalAssignment(ctx, student.ID, assignmentID)
	if err != nil {
		return errors.New(userMessage(ctx, err))
	}
	s := &studySession{
		e:         e,
		pa:        pa,
		studentID: student.ID,
		in:        bufio.NewScanner(cmd.InOrStdin()),
		out:       cmd.OutOrStdout(),
	}
	return s.run(ctx)
}

// localized initializes the message bundle and returns a context carrying a
// localizer for lang.
func localized(ctx context.Context, lang string) (context.Context, error) {
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	return appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang)), nil
}

// resolveStudent accepts a numeric ID or a roster name.
func resolveStudent(ctx context.Context, c *client.Client, ref string) (model.Student, error) {
	students, err := c.Students(ctx)
	if err != nil {
		return model.Student{}, err
	}
	id, idErr := strconv.ParseInt(ref, 10, 64)
	for _, st := range students {
		if (idErr == nil && st.ID == id) || st.Name == ref {
			return st, nil
		}
	}
	return model.Student{}, fmt.Errorf("student %q: %w", ref, model.ErrNotFound)
}

func userMessage(ctx context.Context, err error) string {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return engErr.Message(ctx)
	}
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.API.Message != "" {
		return apiErr.API.Message
	}
	return err.Error()
}

type studySession struct {
	e         *engine.Engine
	pa        model.PersonalAssignment
	studentID int64
	in        *bufio.Scanner
	out       io.Writer
}

func (s *studySession) run(ctx context.Context) error {
	unsubscribe := s.e.Subscribe(func(snap engine.Snapshot) {
		slog.Debug("engine state", "state", snap.State, "cursor", snap.Cursor, "questions", len(snap.Questions),
			"recording", snap.Audio.IsRecording)
	})
	defer unsubscribe()

	fmt.Fprintln(s.out, numberStyle.Render(s.pa.Title), hintStyle.Render("("+s.pa.Subject+")"))
	if err := s.e.LoadAllQuestions(ctx, s.pa.ID); err != nil {
		fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
		return nil
	}
	s.show(ctx)

	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(s.in.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "a", "answer":
			s.answer(ctx, arg)
		case "n", "next":
			s.e.Advance()
			s.show(ctx)
		case "p", "prev":
			s.e.Retreat()
			s.show(ctx)
		case "j", "jump":
			if err := s.e.JumpToNumber(ctx, arg, s.pa.ID); err != nil {
				fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
			}
			s.show(ctx)
		case "s", "stats":
			if err := s.e.RefreshStatistics(ctx, s.pa.ID); err != nil {
				fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
			}
			s.printStats(ctx)
		case "done":
			if err := s.e.CompleteAssignment(ctx, s.pa.ID); err != nil {
				fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
				continue
			}
			fmt.Fprintln(s.out, correctStyle.Render(appI18n.T(ctx, "AssignmentCompleted")))
			return nil
		case "q", "quit":
			return nil
		default:
			fmt.Fprintln(s.out, hintStyle.Render(appI18n.T(ctx, "StudyHelp")))
		}
	}
}

// answer submits the recording at path for the current question.
func (s *studySession) answer(ctx context.Context, path string) {
	audio := s.e.Audio()
	audio.Start()
	if _, err := os.Stat(path); err != nil {
		audio.Fail(err.Error())
		fmt.Fprintln(s.out, wrongStyle.Render(appI18n.T(ctx, engine.MsgNoRecordedAnswer)))
		audio.Reset()
		return
	}
	audio.Stop(path)

	outcome, err := s.e.SubmitRecordedAnswer(ctx, s.pa.ID, s.studentID)
	if err != nil {
		fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
		return
	}
	if outcome.IsCorrect {
		fmt.Fprintln(s.out, correctStyle.Render(appI18n.T(ctx, "AnswerCorrect")))
	} else {
		fmt.Fprintln(s.out, wrongStyle.Render(appI18n.T(ctx, "AnswerIncorrect")))
	}
	if outcome.Feedback != "" {
		fmt.Fprintln(s.out, outcome.Feedback)
	}
	if err := s.e.LastError(); err != nil {
		fmt.Fprintln(s.out, hintStyle.Render(userMessage(ctx, err)))
		s.e.ClearError()
	}

	if tail := outcome.TailQuestion; tail != nil {
		fmt.Fprintln(s.out, appI18n.Td(ctx, "TailQuestionAdded", map[string]any{"Number": tail.Number}))
		if err := s.e.JumpToNumber(ctx, tail.Number, s.pa.ID); err != nil {
			fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
		}
		s.show(ctx)
		return
	}

	if err := s.e.FetchNextQuestion(ctx, s.pa.ID); err != nil {
		fmt.Fprintln(s.out, wrongStyle.Render(userMessage(ctx, err)))
		return
	}
	if st, ok := s.e.Statistics(); ok && st.TotalBaseQuestions > 0 && st.SolvedQuestions >= st.TotalBaseQuestions {
		s.printStats(ctx)
		fmt.Fprintln(s.out, hintStyle.Render(appI18n.T(ctx, "ReadyToSubmit")))
		return
	}
	s.show(ctx)
}

func (s *studySession) show(ctx context.Context) {
	q, ok := s.e.CurrentQuestion()
	if !ok {
		return
	}
	label := "Q" + q.Number
	if q.IsTail() {
		label += " ↳"
	}
	fmt.Fprintln(s.out, questionStyle.Render(numberStyle.Render(label)+"\n"+q.Prompt))
	if st, ok := s.e.Statistics(); ok {
		remaining := st.TotalBaseQuestions - st.SolvedQuestions
		fmt.Fprintln(s.out, hintStyle.Render(appI18n.Tp(ctx, "QuestionsRemaining", remaining)))
	}
}

func (s *studySession) printStats(ctx context.Context) {
	st, ok := s.e.Statistics()
	if !ok {
		return
	}
	fmt.Fprintf(s.out, "solved %d/%d  answered %d (incl. follow-ups %d)  accuracy %.0f%%  progress %.0f%%\n",
		st.SolvedQuestions, st.TotalBaseQuestions,
		st.AnsweredQuestions, st.TotalQuestionsIncludingTail,
		st.Accuracy*100, st.Progress*100)
	if remaining := st.TotalBaseQuestions - st.SolvedQuestions; remaining > 0 {
		fmt.Fprintln(s.out, hintStyle.Render(appI18n.Tp(ctx, "QuestionsRemaining", remaining)))
	}
}
