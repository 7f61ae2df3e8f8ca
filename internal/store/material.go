package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/voicetutor/internal/model"
)

// PutMaterialData stores the uploaded bytes under a storage key issued by
// CreateAssignment. Uploading again replaces the previous content.
func (s *Store) PutMaterialData(storageKey, contentType string, data []byte) error {
	res, err := s.db.Exec(
		`UPDATE materials SET data = ?, content_type = ?, size = ?, uploaded_at = ? WHERE storage_key = ?`,
		data, contentType, len(data), time.Now(), storageKey,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, "storage key", storageKey)
	}
	return nil
}

// GetMaterial returns the material metadata by material ID.
func (s *Store) GetMaterial(materialID string) (model.Material, error) {
	var m model.Material
	err := s.db.QueryRow(
		`SELECT id, assignment_id, storage_key, content_type, size, uploaded_at FROM materials WHERE id = ?`,
		materialID,
	).Scan(&m.ID, &m.AssignmentID, &m.StorageKey, &m.ContentType, &m.Size, &m.UploadedAt)
	return m, notFound(err, "material", materialID)
}

// MaterialData returns the uploaded bytes of a material. It returns
// model.ErrNotFound if nothing has been uploaded yet.
func (s *Store) MaterialData(materialID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM materials WHERE id = ? AND uploaded_at IS NOT NULL`, materialID,
	).Scan(&data)
	return data, notFound(err, "material data", materialID)
}

// UploadStatus describes the material of an assignment as stored in bucket.
func (s *Store) UploadStatus(assignmentID int64, bucket string) (model.UploadStatus, error) {
	var m model.Material
	err := s.db.QueryRow(
		`SELECT id, content_type, size, uploaded_at FROM materials WHERE assignment_id = ?`, assignmentID,
	).Scan(&m.ID, &m.ContentType, &m.Size, &m.UploadedAt)
	if err != nil {
		return model.UploadStatus{}, notFound(err, "material of assignment", assignmentID)
	}
	st := model.UploadStatus{Bucket: bucket}
	if m.UploadedAt != nil {
		st.Exists = true
		st.Size = m.Size
		st.ContentType = m.ContentType
		st.LastModified = *m.UploadedAt
	}
	return st, nil
}
