package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

const maxScore = 100

type marksResolver interface {
	ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error)
	FindOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error)
	SubjectNameByOffering(ctx context.Context, offeringID int64) (string, error)
}

type marksRepository interface {
	GetOrCreateAssessmentType(ctx context.Context, name string) (int64, error)
	UpsertScore(ctx context.Context, mark models.Mark) error
	StudentsForClassWithMarks(ctx context.Context, deptID int64, semester int, section string, offeringID int64) ([]models.StudentMarksRow, error)
	StudentAllScores(ctx context.Context, studentID, deptID int64, semester int) ([]models.SubjectScores, error)
}

type studentUserMapper interface {
	UsersForStudents(ctx context.Context, studentIDs []int64) ([]int64, error)
}

type markNotifier interface {
	DispatchToMany(userIDs []int64, nType models.NotificationType, message string, relatedID *int64)
}

// MarkEntry is one student's score in a batch submission.
type MarkEntry struct {
	StudentID int64   `json:"student_id" validate:"required"`
	Score     float64 `json:"score"`
}

// UpdateMarksRequest is one grading-sheet submission for a class and
// assessment.
type UpdateMarksRequest struct {
	DeptCode       string      `json:"dept_code" validate:"required"`
	SubjectCode    string      `json:"subject_code" validate:"required"`
	Semester       int         `json:"semester" validate:"required,min=1,max=8"`
	Section        string      `json:"section" validate:"required"`
	AssessmentName string      `json:"assessment_name" validate:"required"`
	Entries        []MarkEntry `json:"entries" validate:"required,min=1"`
}

// UpdateMarksResult reports how much of the batch landed.
type UpdateMarksResult struct {
	Processed int `json:"processed_count"`
	Skipped   int `json:"skipped_count"`
}

// MarksService owns the internal-assessment read and write flows. A score
// submission upserts, so regrading just resubmits the sheet.
type MarksService struct {
	resolver  marksResolver
	repo      marksRepository
	students  studentUserMapper
	notifier  markNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarksService constructs the service.
func NewMarksService(resolver marksResolver, repo marksRepository, students studentUserMapper, notifier markNotifier, logger *zap.Logger) *MarksService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarksService{
		resolver:  resolver,
		repo:      repo,
		students:  students,
		notifier:  notifier,
		validator: validator.New(),
		logger:    logger,
	}
}

// UpdateClassMarks writes a batch of scores for one assessment of one class.
// Entries with an out-of-range score or a missing student id are skipped and
// counted, not fatal. Touched students get a marks_update notification.
func (s *MarksService) UpdateClassMarks(ctx context.Context, req UpdateMarksRequest) (*UpdateMarksResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{
		DeptCode:    req.DeptCode,
		SubjectCode: req.SubjectCode,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class identifiers")
	}
	if ids.DeptID == nil || ids.SubjectID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown department or subject")
	}

	offeringID, err := s.resolver.FindOffering(ctx, *ids.SubjectID, *ids.DeptID, req.Semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject is not offered to this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offering")
	}

	typeID, err := s.repo.GetOrCreateAssessmentType(ctx, req.AssessmentName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assessment type")
	}

	var (
		processed int
		touched   []int64
	)
	for _, entry := range req.Entries {
		if entry.StudentID == 0 || entry.Score < 0 || entry.Score > maxScore {
			continue
		}
		err := s.repo.UpsertScore(ctx, models.Mark{
			StudentID:        entry.StudentID,
			OfferingID:       offeringID,
			AssessmentTypeID: typeID,
			Score:            entry.Score,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record score")
		}
		processed++
		touched = append(touched, entry.StudentID)
	}

	s.notifyMarksUpdate(ctx, touched, offeringID, req.AssessmentName)

	return &UpdateMarksResult{
		Processed: processed,
		Skipped:   len(req.Entries) - processed,
	}, nil
}

func (s *MarksService) notifyMarksUpdate(ctx context.Context, studentIDs []int64, offeringID int64, assessmentName string) {
	if len(studentIDs) == 0 || s.notifier == nil {
		return
	}
	userIDs, err := s.students.UsersForStudents(ctx, studentIDs)
	if err != nil {
		s.logger.Sugar().Warnw("failed to resolve users for marks notification", "offering_id", offeringID, "error", err)
		return
	}
	subjectName, err := s.resolver.SubjectNameByOffering(ctx, offeringID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to resolve subject name for marks notification", "offering_id", offeringID, "error", err)
		subjectName = "a subject"
	}
	message := fmt.Sprintf("Marks updated for %s (%s)", subjectName, assessmentName)
	s.notifier.DispatchToMany(userIDs, models.NotificationMarksUpdate, message, &offeringID)
}

// ClassSheet returns the grading sheet for a class: every enrolled student
// with whatever scores exist, in USN order.
func (s *MarksService) ClassSheet(ctx context.Context, deptCode, subjectCode string, semester int, section string) ([]models.StudentMarksRow, error) {
	if deptCode == "" || subjectCode == "" || semester == 0 || section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dept, subject, semester and section are required")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{
		DeptCode:    deptCode,
		SubjectCode: subjectCode,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class identifiers")
	}
	if ids.DeptID == nil || ids.SubjectID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown department or subject")
	}

	offeringID, err := s.resolver.FindOffering(ctx, *ids.SubjectID, *ids.DeptID, semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject is not offered to this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offering")
	}

	rows, err := s.repo.StudentsForClassWithMarks(ctx, *ids.DeptID, semester, section, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class sheet")
	}
	if rows == nil {
		rows = []models.StudentMarksRow{}
	}
	return rows, nil
}

// StudentScores returns all of a student's scores grouped by subject,
// including subjects with no marks yet.
func (s *MarksService) StudentScores(ctx context.Context, studentUserID int64) ([]models.SubjectScores, error) {
	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{StudentUserID: studentUserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if ids.StudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record for user")
	}

	rows, err := s.repo.StudentAllScores(ctx, *ids.StudentID, *ids.StudentDeptID, *ids.StudentSemester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student scores")
	}
	if rows == nil {
		rows = []models.SubjectScores{}
	}
	return rows, nil
}
