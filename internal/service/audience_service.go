package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

type audienceRepository interface {
	AllStudentUserIDs(ctx context.Context) ([]int64, error)
	AllFacultyUserIDs(ctx context.Context) ([]int64, error)
	StudentUserIDsByDept(ctx context.Context, deptID int64, semester *int) ([]int64, error)
	FacultyUserIDsByDept(ctx context.Context, deptID int64) ([]int64, error)
	StudentUserIDsByOffering(ctx context.Context, offeringID int64) ([]int64, error)
	UserIDsForStudentIDs(ctx context.Context, studentIDs []int64) ([]int64, error)
	VisibleCirculars(ctx context.Context, role models.UserRole, deptID *int64) ([]models.CircularRow, error)
}

type audienceResolverRepository interface {
	ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error)
}

// AudienceService computes the exact, de-duplicated set of user ids an event
// targets. The same membership rules back the circular polling view, so push
// fan-out and "list circulars for me" cannot drift apart.
type AudienceService struct {
	repo     audienceRepository
	resolver audienceResolverRepository
	logger   *zap.Logger
}

// NewAudienceService constructs the service.
func NewAudienceService(repo audienceRepository, resolver audienceResolverRepository, logger *zap.Logger) *AudienceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AudienceService{repo: repo, resolver: resolver, logger: logger}
}

// Resolve expands an audience descriptor into user ids. A user matching
// several underlying rules appears exactly once.
func (s *AudienceService) Resolve(ctx context.Context, d models.AudienceDescriptor) ([]int64, error) {
	if !d.Audience.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown audience")
	}

	var groups [][]int64
	switch d.Audience {
	case models.AudienceAll:
		students, err := s.repo.AllStudentUserIDs(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student audience")
		}
		faculty, err := s.repo.AllFacultyUserIDs(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty audience")
		}
		groups = append(groups, students, faculty)

	case models.AudienceStudents:
		var (
			students []int64
			err      error
		)
		if d.DeptID != nil {
			students, err = s.repo.StudentUserIDsByDept(ctx, *d.DeptID, d.Semester)
		} else {
			students, err = s.repo.AllStudentUserIDs(ctx)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student audience")
		}
		groups = append(groups, students)

	case models.AudienceFaculty:
		faculty, err := s.repo.AllFacultyUserIDs(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty audience")
		}
		groups = append(groups, faculty)

	case models.AudienceSpecificDept:
		if d.DeptID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "specific_dept audience requires a department")
		}
		students, err := s.repo.StudentUserIDsByDept(ctx, *d.DeptID, nil)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student audience")
		}
		faculty, err := s.repo.FacultyUserIDsByDept(ctx, *d.DeptID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty audience")
		}
		groups = append(groups, students, faculty)
	}

	return dedupe(groups...), nil
}

// StudentsForOffering targets the cohort a note lands on.
func (s *AudienceService) StudentsForOffering(ctx context.Context, offeringID int64) ([]int64, error) {
	ids, err := s.repo.StudentUserIDsByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offering audience")
	}
	return dedupe(ids), nil
}

// UsersForStudents maps touched student rows back to user accounts.
func (s *AudienceService) UsersForStudents(ctx context.Context, studentIDs []int64) ([]int64, error) {
	ids, err := s.repo.UserIDsForStudentIDs(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to map students to users")
	}
	return dedupe(ids), nil
}

// CircularsForUser lists circulars visible to a user under the same rules
// the fan-out uses. The viewer's department is resolved from their role's
// detail row; users without one (admins) see everything their role allows.
func (s *AudienceService) CircularsForUser(ctx context.Context, userID int64, role models.UserRole) ([]models.CircularRow, error) {
	var deptID *int64
	switch role {
	case models.RoleStudent:
		ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{StudentUserID: userID})
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student department")
		}
		deptID = ids.StudentDeptID
	case models.RoleFaculty:
		ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{FacultyUserID: userID})
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve faculty department")
		}
		deptID = ids.FacultyDeptID
	}

	rows, err := s.repo.VisibleCirculars(ctx, role, deptID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list circulars")
	}
	return rows, nil
}

func dedupe(groups ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	out := make([]int64, 0)
	for _, group := range groups {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
