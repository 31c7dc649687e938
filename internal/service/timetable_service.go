package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

type timetableResolver interface {
	ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error)
	GetOrCreateDepartment(ctx context.Context, code, name string) (int64, error)
	GetOrCreateSubject(ctx context.Context, code, name string) (int64, error)
	GetOrCreateOffering(ctx context.Context, subjectID, deptID int64, semester int) (int64, error)
	GetOrCreateAssignment(ctx context.Context, offeringID, facultyID int64, section string) (int64, error)
}

type timetableRepository interface {
	UpsertSlot(ctx context.Context, slot models.TimetableSlot) error
	WeekForClass(ctx context.Context, deptID int64, semester int, section string) ([]models.TimetableRow, error)
}

// TimetableEntry is one period in a weekly template submission.
type TimetableEntry struct {
	DayOfWeek     string `json:"day_of_week" validate:"required"`
	PeriodNumber  int    `json:"period_number" validate:"required,min=1"`
	SubjectCode   string `json:"subject_code" validate:"required"`
	SubjectName   string `json:"subject_name"`
	FacultyUserID int64  `json:"faculty_user_id" validate:"required"`
}

// SaveTimetableRequest replaces or extends a class's weekly template. The
// department and subjects named here are created on first use.
type SaveTimetableRequest struct {
	DeptCode string           `json:"dept_code" validate:"required"`
	DeptName string           `json:"dept_name"`
	Semester int              `json:"semester" validate:"required,min=1,max=8"`
	Section  string           `json:"section" validate:"required"`
	Entries  []TimetableEntry `json:"entries" validate:"required,min=1"`
}

// SaveTimetableResult reports how much of the template landed.
type SaveTimetableResult struct {
	Processed int `json:"processed_count"`
	Skipped   int `json:"skipped_count"`
}

var validWeekdays = map[string]struct{}{
	time.Monday.String():    {},
	time.Tuesday.String():   {},
	time.Wednesday.String(): {},
	time.Thursday.String():  {},
	time.Friday.String():    {},
	time.Saturday.String():  {},
	time.Sunday.String():    {},
}

// TimetableService owns the weekly schedule template. Saving a template is
// the one flow allowed to create the full dimension chain, since the
// timetable is where a class's subjects and teaching assignments are first
// declared.
type TimetableService struct {
	resolver  timetableResolver
	repo      timetableRepository
	audience  audienceExpander
	notifier  markNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs the service.
func NewTimetableService(resolver timetableResolver, repo timetableRepository, audience audienceExpander, notifier markNotifier, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		resolver:  resolver,
		repo:      repo,
		audience:  audience,
		notifier:  notifier,
		validator: validator.New(),
		logger:    logger,
	}
}

// Save records a batch of weekly slots, creating departments, subjects,
// offerings and assignments as needed. Entries naming a user with no faculty
// record or an invalid weekday are skipped and counted. Students of the
// class get a timetable_update notification when anything landed.
func (s *TimetableService) Save(ctx context.Context, req SaveTimetableRequest) (*SaveTimetableResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	deptName := req.DeptName
	if deptName == "" {
		deptName = req.DeptCode
	}
	deptID, err := s.resolver.GetOrCreateDepartment(ctx, req.DeptCode, deptName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
	}

	var processed int
	for _, entry := range req.Entries {
		if _, ok := validWeekdays[entry.DayOfWeek]; !ok {
			continue
		}

		ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{FacultyUserID: entry.FacultyUserID})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty")
		}
		if ids.FacultyID == nil {
			s.logger.Sugar().Warnw("skipping timetable entry with unknown faculty", "faculty_user_id", entry.FacultyUserID, "day", entry.DayOfWeek, "period", entry.PeriodNumber)
			continue
		}

		subjectName := entry.SubjectName
		if subjectName == "" {
			subjectName = entry.SubjectCode
		}
		subjectID, err := s.resolver.GetOrCreateSubject(ctx, entry.SubjectCode, subjectName)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject")
		}
		offeringID, err := s.resolver.GetOrCreateOffering(ctx, subjectID, deptID, req.Semester)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offering")
		}
		assignmentID, err := s.resolver.GetOrCreateAssignment(ctx, offeringID, *ids.FacultyID, req.Section)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assignment")
		}

		err = s.repo.UpsertSlot(ctx, models.TimetableSlot{
			AssignmentID: assignmentID,
			DayOfWeek:    entry.DayOfWeek,
			PeriodNumber: entry.PeriodNumber,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record timetable slot")
		}
		processed++
	}

	if processed > 0 {
		s.notifyUpdate(ctx, deptID, req)
	}

	return &SaveTimetableResult{
		Processed: processed,
		Skipped:   len(req.Entries) - processed,
	}, nil
}

func (s *TimetableService) notifyUpdate(ctx context.Context, deptID int64, req SaveTimetableRequest) {
	if s.notifier == nil {
		return
	}
	semester := req.Semester
	userIDs, err := s.audience.Resolve(ctx, models.AudienceDescriptor{
		Audience: models.AudienceStudents,
		DeptID:   &deptID,
		Semester: &semester,
	})
	if err != nil {
		s.logger.Sugar().Warnw("failed to resolve timetable audience", "dept_id", deptID, "semester", semester, "error", err)
		return
	}
	message := fmt.Sprintf("Timetable updated for %s semester %d", req.DeptCode, req.Semester)
	s.notifier.DispatchToMany(userIDs, models.NotificationTimetableUpdate, message, nil)
}

// WeekForClass returns the weekly grid of a class, ordered Monday through
// Sunday then by period. An unknown department yields an empty grid.
func (s *TimetableService) WeekForClass(ctx context.Context, deptCode string, semester int, section string) ([]models.TimetableRow, error) {
	if deptCode == "" || semester == 0 || section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dept, semester and section are required")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{DeptCode: deptCode})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
	}
	if ids.DeptID == nil {
		return []models.TimetableRow{}, nil
	}

	rows, err := s.repo.WeekForClass(ctx, *ids.DeptID, semester, section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if rows == nil {
		rows = []models.TimetableRow{}
	}
	return rows, nil
}

// WeekForStudent returns the weekly grid of the student's own class.
func (s *TimetableService) WeekForStudent(ctx context.Context, studentUserID int64) ([]models.TimetableRow, error) {
	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{StudentUserID: studentUserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if ids.StudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record for user")
	}

	rows, err := s.repo.WeekForClass(ctx, *ids.StudentDeptID, *ids.StudentSemester, *ids.StudentSection)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if rows == nil {
		rows = []models.TimetableRow{}
	}
	return rows, nil
}
