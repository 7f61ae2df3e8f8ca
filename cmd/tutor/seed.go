package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/store"
)

// seedFile is the JSON layout accepted by `serve --seed`.
type seedFile struct {
	Students    []string         `json:"students"`
	Assignments []seedAssignment `json:"assignments" validate:"dive"`
}

type seedAssignment struct {
	model.CreateAssignmentRequest
	// Enroll lists student names to enroll. Empty means every student of the file.
	Enroll []string `json:"enroll"`
}

// importSeeds loads each seed file once. A file whose content changed since
// it was imported is skipped to keep existing attempts intact.
func importSeeds(db *store.Store, paths []string) error {
	validate := validator.New()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("seed file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("seed file changed since last import, skipping to avoid breaking existing attempts",
				"path", path)
			continue
		}

		var seed seedFile
		if err := json.Unmarshal(data, &seed); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := validate.Struct(seed); err != nil {
			return fmt.Errorf("validate %s: %w", path, err)
		}
		if err := applySeed(db, seed); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported seed", "path", path, "students", len(seed.Students), "assignments", len(seed.Assignments))
	}
	return nil
}

func applySeed(db *store.Store, seed seedFile) error {
	students := make(map[string]int64, len(seed.Students))
	for _, name := range seed.Students {
		st, err := db.GetStudentByName(name)
		if errors.Is(err, model.ErrNotFound) {
			st, err = db.CreateStudent(name)
		}
		if err != nil {
			return fmt.Errorf("student %q: %w", name, err)
		}
		students[name] = st.ID
	}

	for _, a := range seed.Assignments {
		created, err := db.CreateAssignment(a.CreateAssignmentRequest, "")
		if err != nil {
			return fmt.Errorf("assignment %q: %w", a.Title, err)
		}
		names := a.Enroll
		if len(names) == 0 {
			names = seed.Students
		}
		for _, name := range names {
			id, ok := students[name]
			if !ok {
				return fmt.Errorf("assignment %q enrolls unknown student %q", a.Title, name)
			}
			if _, err := db.Enroll(id, created.AssignmentID); err != nil {
				return fmt.Errorf("enroll %q in %q: %w", name, a.Title, err)
			}
		}
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
