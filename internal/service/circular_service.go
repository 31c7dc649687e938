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

type circularRepository interface {
	Create(ctx context.Context, c *models.Circular) error
	GetByID(ctx context.Context, id int64) (*models.CircularRow, error)
	Update(ctx context.Context, c *models.Circular) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Recent(ctx context.Context, limit int) ([]models.CircularRow, error)
}

type audienceExpander interface {
	Resolve(ctx context.Context, d models.AudienceDescriptor) ([]int64, error)
	CircularsForUser(ctx context.Context, userID int64, role models.UserRole) ([]models.CircularRow, error)
}

type circularResolver interface {
	ResolveEntityIDs(ctx context.Context, filters models.EntityFilters) (models.EntityIDs, error)
}

type fileStore interface {
	SaveStream(subdir, filename string, r io.Reader) (string, error)
	Remove(relPath string) error
}

// CreateCircularRequest is the posting payload. DeptCode is required only
// for the specific_dept audience.
type CreateCircularRequest struct {
	Title    string          `json:"title" validate:"required"`
	Content  string          `json:"content" validate:"required"`
	Audience models.Audience `json:"audience" validate:"required"`
	DeptCode string          `json:"dept_code"`
}

// UpdateCircularRequest carries the editable fields of a circular.
type UpdateCircularRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CircularService owns announcements. Posting fans out a new_circular
// notification to the resolved audience; the audience rule itself stays on
// the row so the polling view applies the same visibility.
type CircularService struct {
	repo      circularRepository
	resolver  circularResolver
	audience  audienceExpander
	notifier  markNotifier
	storage   fileStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCircularService constructs the service.
func NewCircularService(repo circularRepository, resolver circularResolver, audience audienceExpander, notifier markNotifier, storage fileStore, logger *zap.Logger) *CircularService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircularService{
		repo:      repo,
		resolver:  resolver,
		audience:  audience,
		notifier:  notifier,
		storage:   storage,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create posts a circular. The attachment is optional; posterUserID maps to
// a faculty record when one exists, otherwise the circular is attributed to
// the office (nil faculty).
func (s *CircularService) Create(ctx context.Context, posterUserID int64, req CreateCircularRequest, attachmentName string, attachment io.Reader) (*models.Circular, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !req.Audience.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown audience")
	}

	var deptID *int64
	if req.Audience == models.AudienceSpecificDept {
		if req.DeptCode == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "specific_dept audience requires dept_code")
		}
		ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{DeptCode: req.DeptCode})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
		}
		if ids.DeptID == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown department")
		}
		deptID = ids.DeptID
	}

	posterIDs, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{FacultyUserID: posterUserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve poster")
	}

	circular := &models.Circular{
		FacultyID: posterIDs.FacultyID,
		Title:     req.Title,
		Content:   req.Content,
		Audience:  req.Audience,
		DeptID:    deptID,
	}

	if attachment != nil && attachmentName != "" {
		path, err := s.storage.SaveStream("circulars", attachmentName, attachment)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
		circular.AttachmentPath = &path
	}

	if err := s.repo.Create(ctx, circular); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create circular")
	}

	s.fanOut(ctx, circular)
	return circular, nil
}

func (s *CircularService) fanOut(ctx context.Context, circular *models.Circular) {
	if s.notifier == nil {
		return
	}
	userIDs, err := s.audience.Resolve(ctx, models.AudienceDescriptor{
		Audience: circular.Audience,
		DeptID:   circular.DeptID,
	})
	if err != nil {
		s.logger.Sugar().Warnw("failed to resolve circular audience", "circular_id", circular.ID, "error", err)
		return
	}
	message := fmt.Sprintf("New circular: %s", circular.Title)
	s.notifier.DispatchToMany(userIDs, models.NotificationNewCircular, message, &circular.ID)
}

// Get returns one circular with its joined metadata.
func (s *CircularService) Get(ctx context.Context, id int64) (*models.CircularRow, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}
	return row, nil
}

// Update edits a circular's title and content. Faculty may edit only their
// own postings; admins may edit any.
func (s *CircularService) Update(ctx context.Context, id, editorUserID int64, role models.UserRole, req UpdateCircularRequest) (*models.CircularRow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, existing, editorUserID, role); err != nil {
		return nil, err
	}

	updated := existing.Circular
	updated.Title = req.Title
	updated.Content = req.Content
	ok, err := s.repo.Update(ctx, &updated)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update circular")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
	}
	return s.Get(ctx, id)
}

// Delete removes a circular and its attachment. Same ownership rule as
// Update.
func (s *CircularService) Delete(ctx context.Context, id, editorUserID int64, role models.UserRole) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, existing, editorUserID, role); err != nil {
		return err
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete circular")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "circular not found")
	}

	if existing.AttachmentPath != nil && s.storage != nil {
		if err := s.storage.Remove(*existing.AttachmentPath); err != nil {
			s.logger.Sugar().Warnw("failed to remove circular attachment", "circular_id", id, "error", err)
		}
	}
	return nil
}

func (s *CircularService) authorize(ctx context.Context, c *models.CircularRow, userID int64, role models.UserRole) error {
	if role == models.RoleAdmin {
		return nil
	}
	ids, err := s.resolver.ResolveEntityIDs(ctx, models.EntityFilters{FacultyUserID: userID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve editor")
	}
	if c.FacultyID == nil || ids.FacultyID == nil || *c.FacultyID != *ids.FacultyID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the posting faculty or an admin may modify a circular")
	}
	return nil
}

// ListForUser returns the circulars the user's role and department allow,
// newest first.
func (s *CircularService) ListForUser(ctx context.Context, userID int64, role models.UserRole) ([]models.CircularRow, error) {
	rows, err := s.audience.CircularsForUser(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.CircularRow{}
	}
	return rows, nil
}

// Recent returns the latest circulars regardless of audience, for the admin
// dashboard.
func (s *CircularService) Recent(ctx context.Context, limit int) ([]models.CircularRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list circulars")
	}
	if rows == nil {
		rows = []models.CircularRow{}
	}
	return rows, nil
}
