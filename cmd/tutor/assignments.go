package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/upload"
)

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an assignment from a PDF and generate its questions",
		RunE:  runCreate,
	}
	f := cmd.Flags()
	f.String("title", "", "Assignment title (required)")
	f.String("subject", "", "Subject (required)")
	f.String("grade", "", "Grade")
	f.Int64("class-id", 0, "Class ID")
	f.String("description", "", "Description")
	f.String("due", "", "Due date in YYYY-MM-DD format (default: now)")
	f.StringP("file", "f", "", "PDF material to upload (required)")
	f.IntP("total-number", "n", 5, "Number of questions to generate")
	f.StringP("lang", "l", "ko", "Message language (ko, en)")
	addServerFlags(cmd)
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runCreate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	ctx, err := localized(ctx, v.GetString("lang"))
	if err != nil {
		return err
	}

	req := model.CreateAssignmentRequest{
		Title:       v.GetString("title"),
		Subject:     v.GetString("subject"),
		Grade:       v.GetString("grade"),
		ClassID:     v.GetInt64("class-id"),
		Description: v.GetString("description"),
	}
	if due := v.GetString("due"); due != "" {
		if req.DueAt, err = time.ParseInLocation(time.DateOnly, due, time.Local); err != nil {
			return fmt.Errorf("parse --due: %w", err)
		}
	}

	c := newClient(v, v.GetString("lang"))
	p := upload.New(c, nil)
	out := cmd.OutOrStdout()
	unsubscribe := p.Subscribe(func(st model.UploadState) {
		if st.IsUploading || st.Succeeded {
			fmt.Fprintf(out, "progress %3.0f%%\n", st.Progress*100)
		}
	})
	defer unsubscribe()

	created, err := p.Run(ctx, req, v.GetString("file"), v.GetInt("total-number"))
	if err != nil {
		return errors.New(upload.Message(ctx, err))
	}

	fmt.Fprintf(out, "created assignment %d (material %s)\n", created.AssignmentID, created.MaterialID)
	for _, a := range p.Assignments() {
		if a.ID == created.AssignmentID {
			fmt.Fprintf(out, "%d questions generated\n", a.TotalQuestions)
		}
	}
	return nil
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored material of an assignment",
		RunE:  runStatus,
	}
	f := cmd.Flags()
	f.Int64("assignment", 0, "Assignment ID (required)")
	addServerFlags(cmd)
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	p := upload.New(newClient(v, ""), nil)
	st, err := p.CheckUploadStatus(cmd.Context(), v.GetInt64("assignment"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !st.Exists {
		fmt.Fprintln(out, "material not uploaded yet")
		return nil
	}
	fmt.Fprintf(out, "bucket:        %s\n", st.Bucket)
	fmt.Fprintf(out, "size:          %s\n", humanize.Bytes(uint64(st.Size)))
	fmt.Fprintf(out, "content type:  %s\n", st.ContentType)
	fmt.Fprintf(out, "last modified: %s\n", humanize.Time(st.LastModified))
	return nil
}

func assignmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List assignments, or a student's personal assignments",
		RunE:  runAssignments,
	}
	f := cmd.Flags()
	f.String("student", "", "Student name or ID; lists their personal assignments")
	f.String("status", "all", "Filter: all, pending, completed, not-started, in-progress, submitted, graded")
	addServerFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func runAssignments(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	c := newClient(v, "")
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if v.GetString("student") == "" {
		list, err := c.Assignments(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tTITLE\tSUBJECT\tQUESTIONS\tDUE\tCREATED")
		for _, a := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
				a.ID, a.Title, a.Subject, a.TotalQuestions, a.DueAt.Format(time.DateOnly), humanize.Time(a.CreatedAt))
		}
		return nil
	}

	student, err := resolveStudent(ctx, c, v.GetString("student"))
	if err != nil {
		return err
	}
	list, err := c.PersonalAssignments(ctx, student.ID, 0)
	if err != nil {
		return err
	}
	list, err = filterPersonal(list, v.GetString("status"))
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "ID\tASSIGNMENT\tTITLE\tSTATUS\tSOLVED")
	for _, pa := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d/%d\n",
			pa.ID, pa.AssignmentID, pa.Title, pa.Status, pa.SolvedNum, pa.TotalQuestions)
	}
	return nil
}

// filterPersonal applies the --status flag. "pending" and "completed" group
// statuses; anything else is a single status filter.
func filterPersonal(list []model.PersonalAssignment, status string) ([]model.PersonalAssignment, error) {
	switch status {
	case "pending":
		return model.Pending(list), nil
	case "completed":
		return model.Completed(list), nil
	}
	f, err := model.ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return model.FilterByStatus(list, f), nil
}
