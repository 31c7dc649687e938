package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

type noteRepository interface {
	Create(ctx context.Context, n *models.Note) error
	ListByOffering(ctx context.Context, offeringID int64) ([]models.NoteRow, error)
	ListForStudentContext(ctx context.Context, deptID int64, semester int) ([]models.NoteRow, error)
	GetByID(ctx context.Context, id int64) (*models.NoteRow, error)
}

type noteAudience interface {
	StudentsForOffering(ctx context.Context, offeringID int64) ([]int64, error)
}

// UploadNoteRequest describes a study-material upload. The file itself
// travels separately as a stream.
type UploadNoteRequest struct {
	DeptCode    string `json:"dept_code" validate:"required"`
	SubjectCode string `json:"subject_code" validate:"required"`
	Semester    int    `json:"semester" validate:"required,min=1,max=8"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// NoteService owns study materials. An upload requires an existing offering
// and notifies the students enrolled in it.
type NoteService struct {
	repo      noteRepository
	resolver  marksResolver
	audience  noteAudience
	notifier  markNotifier
	storage   fileStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNoteService constructs the service.
func NewNoteService(repo noteRepository, resolver marksResolver, audience noteAudience, notifier markNotifier, storage fileStore, logger *zap.Logger) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteService{
		repo:      repo,
		resolver:  resolver,
		audience:  audience,
		notifier:  notifier,
		storage:   storage,
		validator: validator.New(),
		logger:    logger,
	}
}

// Upload stores the file, records the note against the offering and fans a
// new_note notification out to the offering's students.
func (s *NoteService) Upload(ctx context.Context, uploaderUserID int64, req UploadNoteRequest, filename string, file io.Reader) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if file == nil || filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a file is required")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{
		DeptCode:      req.DeptCode,
		SubjectCode:   req.SubjectCode,
		FacultyUserID: uploaderUserID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class identifiers")
	}
	if ids.DeptID == nil || ids.SubjectID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown department or subject")
	}
	if ids.FacultyID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no faculty record for user")
	}

	offeringID, err := s.resolver.FindOffering(ctx, *ids.SubjectID, *ids.DeptID, req.Semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject is not offered to this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offering")
	}

	path, err := s.storage.SaveStream("notes", filename, file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	note := &models.Note{
		OfferingID:  offeringID,
		FacultyID:   *ids.FacultyID,
		Title:       req.Title,
		Description: req.Description,
		FileURL:     path,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		if rerr := s.storage.Remove(path); rerr != nil {
			s.logger.Sugar().Warnw("failed to remove orphaned note file", "path", path, "error", rerr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create note")
	}

	s.notifyUpload(ctx, note, req.SubjectCode)
	return note, nil
}

func (s *NoteService) notifyUpload(ctx context.Context, note *models.Note, subjectCode string) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.audience.StudentsForOffering(ctx, note.OfferingID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to resolve note audience", "note_id", note.ID, "error", err)
		return
	}
	message := fmt.Sprintf("New notes for %s: %s", subjectCode, note.Title)
	s.notifier.DispatchToMany(userIDs, models.NotificationNewNote, message, &note.ID)
}

// ListForClass returns a class's notes for faculty review. An unknown
// offering yields an empty list.
func (s *NoteService) ListForClass(ctx context.Context, deptCode, subjectCode string, semester int) ([]models.NoteRow, error) {
	if deptCode == "" || subjectCode == "" || semester == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dept, subject and semester are required")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{
		DeptCode:    deptCode,
		SubjectCode: subjectCode,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class identifiers")
	}
	if ids.DeptID == nil || ids.SubjectID == nil {
		return []models.NoteRow{}, nil
	}

	offeringID, err := s.resolver.FindOffering(ctx, *ids.SubjectID, *ids.DeptID, semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.NoteRow{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offering")
	}

	rows, err := s.repo.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	if rows == nil {
		rows = []models.NoteRow{}
	}
	return rows, nil
}

// ListForStudent returns every note visible to the student's department and
// semester, newest first.
func (s *NoteService) ListForStudent(ctx context.Context, studentUserID int64) ([]models.NoteRow, error) {
	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{StudentUserID: studentUserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if ids.StudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record for user")
	}

	rows, err := s.repo.ListForStudentContext(ctx, *ids.StudentDeptID, *ids.StudentSemester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	if rows == nil {
		rows = []models.NoteRow{}
	}
	return rows, nil
}

// Get returns one note with its metadata.
func (s *NoteService) Get(ctx context.Context, id int64) (*models.NoteRow, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	return row, nil
}
