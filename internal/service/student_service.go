package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/collegeportal/portal-api/internal/models"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

type studentRepository interface {
	ListForSection(ctx context.Context, deptID int64, semester int, section string) ([]models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID int64) (*models.StudentDetail, error)
	FacultyByUserID(ctx context.Context, userID int64) (*models.FacultyDetail, error)
}

// StudentService serves rosters and profile lookups.
type StudentService struct {
	repo     studentRepository
	resolver circularResolver
	logger   *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(repo studentRepository, resolver circularResolver, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, resolver: resolver, logger: logger}
}

// Roster lists a class's students in USN order, the ordering attendance
// forms and marks sheets expect. An unknown department yields an empty list.
func (s *StudentService) Roster(ctx context.Context, deptCode string, semester int, section string) ([]models.StudentDetail, error) {
	if deptCode == "" || semester == 0 || section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dept, semester and section are required")
	}

	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{DeptCode: deptCode})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
	}
	if ids.DeptID == nil {
		return []models.StudentDetail{}, nil
	}

	rows, err := s.repo.ListForSection(ctx, *ids.DeptID, semester, section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	if rows == nil {
		rows = []models.StudentDetail{}
	}
	return rows, nil
}

// StudentProfile returns the student detail row behind a user account.
func (s *StudentService) StudentProfile(ctx context.Context, userID int64) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return detail, nil
}

// FacultyProfile returns the faculty detail row behind a user account.
func (s *StudentService) FacultyProfile(ctx context.Context, userID int64) (*models.FacultyDetail, error) {
	detail, err := s.repo.FacultyByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no faculty record for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return detail, nil
}
