package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type attendanceResolver interface {
	ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error)
	FindOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error)
	FindAssignment(ctx context.Context, offeringID, facultyID int64, section string) (int64, error)
	ResolveOrCreateClassSession(ctx context.Context, assignmentID int64, date time.Time, periodNumber int) (int64, error)
}

type attendanceRepository interface {
	SubmitForSession(ctx context.Context, sessionID int64, entries []models.AttendanceEntry) (int, error)
	HistoryForClass(ctx context.Context, deptID int64, semester int, section string, subjectID *int64, filter models.ClassHistoryFilter) ([]models.SessionHistoryRow, error)
	DetailsForSession(ctx context.Context, sessionID int64) ([]models.SessionDetailRow, error)
	UpdateStatus(ctx context.Context, attendanceID int64, status models.AttendanceStatus) (bool, int64, error)
	StudentOverall(ctx context.Context, studentID int64) ([]models.SubjectAttendanceSummary, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// MarkAttendanceRequest is one batch submission for a single class meeting.
type MarkAttendanceRequest struct {
	DeptCode     string                   `json:"dept_code" validate:"required"`
	SubjectCode  string                   `json:"subject_code" validate:"required"`
	Semester     int                      `json:"semester" validate:"required,min=1,max=8"`
	Section      string                   `json:"section" validate:"required"`
	Date         string                   `json:"date" validate:"required"`
	PeriodNumber int                      `json:"period_number" validate:"required,min=1"`
	Entries      []models.AttendanceEntry `json:"entries" validate:"required,min=1"`
}

// MarkAttendanceResult reports how much of the batch landed.
type MarkAttendanceResult struct {
	SessionID int64 `json:"session_id"`
	Processed int   `json:"processed_count"`
	Skipped   int   `json:"skipped_count"`
}

// UpdateAttendanceRequest corrects a single recorded status.
type UpdateAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" validate:"required"`
}

// AttendanceService owns the attendance write and read flows. Marking
// attendance requires the faculty to already be assigned to the class; only
// the class session itself is created on demand.
type AttendanceService struct {
	resolver   attendanceResolver
	repo       attendanceRepository
	cache      summaryCache
	summaryTTL time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(resolver attendanceResolver, repo attendanceRepository, cache summaryCache, summaryTTL time.Duration, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		resolver:   resolver,
		repo:       repo,
		cache:      cache,
		summaryTTL: summaryTTL,
		validator:  validator.New(),
		logger:     logger,
	}
}

func summaryCacheKey(studentID int64) string {
	return fmt.Sprintf("attendance:summary:%d", studentID)
}

// Mark records a full batch of statuses for one class meeting, creating the
// session row if this is the first submission for that slot. Resubmitting
// the same slot overwrites earlier statuses.
func (s *AttendanceService) Mark(ctx context.Context, facultyUserID int64, req MarkAttendanceRequest) (*MarkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be in YYYY-MM-DD format")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{
		DeptCode:      req.DeptCode,
		SubjectCode:   req.SubjectCode,
		FacultyUserID: facultyUserID,
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
	assignmentID, err := s.resolver.FindAssignment(ctx, offeringID, *ids.FacultyID, req.Section)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "faculty is not assigned to this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assignment")
	}

	sessionID, err := s.resolver.ResolveOrCreateClassSession(ctx, assignmentID, date, req.PeriodNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class session")
	}

	processed, err := s.repo.SubmitForSession(ctx, sessionID, req.Entries)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.invalidateSummaries(req.Entries)

	return &MarkAttendanceResult{
		SessionID: sessionID,
		Processed: processed,
		Skipped:   len(req.Entries) - processed,
	}, nil
}

func (s *AttendanceService) invalidateSummaries(entries []models.AttendanceEntry) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.StudentID != 0 {
			keys = append(keys, summaryCacheKey(e.StudentID))
		}
	}
	if len(keys) > 0 {
		s.cache.Delete(context.Background(), keys...)
	}
}

// History lists the recorded sessions of a class, newest date first. An
// unknown department or subject filter yields an empty list rather than an
// error.
func (s *AttendanceService) History(ctx context.Context, filter models.ClassHistoryFilter) ([]models.SessionHistoryRow, error) {
	if filter.DeptCode == "" || filter.Semester == 0 || filter.Section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dept, semester and section are required")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{
		DeptCode:    filter.DeptCode,
		SubjectCode: filter.SubjectCode,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class identifiers")
	}
	if ids.DeptID == nil {
		return []models.SessionHistoryRow{}, nil
	}
	if filter.SubjectCode != "" && ids.SubjectID == nil {
		return []models.SessionHistoryRow{}, nil
	}

	rows, err := s.repo.HistoryForClass(ctx, *ids.DeptID, filter.Semester, filter.Section, ids.SubjectID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list session history")
	}
	if rows == nil {
		rows = []models.SessionHistoryRow{}
	}
	return rows, nil
}

// SessionDetails returns every student's status in a session, ordered by USN.
func (s *AttendanceService) SessionDetails(ctx context.Context, sessionID int64) ([]models.SessionDetailRow, error) {
	rows, err := s.repo.DetailsForSession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session details")
	}
	if rows == nil {
		rows = []models.SessionDetailRow{}
	}
	return rows, nil
}

// UpdateStatus corrects one recorded status and drops the affected student's
// cached summary.
func (s *AttendanceService) UpdateStatus(ctx context.Context, attendanceID int64, req UpdateAttendanceRequest) error {
	if !req.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "status must be present or absent")
	}
	ok, studentID, err := s.repo.UpdateStatus(ctx, attendanceID, req.Status)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	if s.cache != nil {
		s.cache.Delete(context.Background(), summaryCacheKey(studentID))
	}
	return nil
}

// StudentOverall aggregates a student's attendance per subject. The summary
// is cached per student and invalidated on every write touching them.
func (s *AttendanceService) StudentOverall(ctx context.Context, studentUserID int64) ([]models.SubjectAttendanceSummary, error) {
	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{StudentUserID: studentUserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if ids.StudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record for user")
	}

	key := summaryCacheKey(*ids.StudentID)
	if s.cache != nil {
		var cached []models.SubjectAttendanceSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("attendance summary cache read failed", "student_id", *ids.StudentID, "error", err)
		}
	}

	rows, err := s.repo.StudentOverall(ctx, *ids.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	if rows == nil {
		rows = []models.SubjectAttendanceSummary{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rows, s.summaryTTL); err != nil {
			s.logger.Sugar().Warnw("attendance summary cache write failed", "student_id", *ids.StudentID, "error", err)
		}
	}
	return rows, nil
}
