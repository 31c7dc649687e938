package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/pkg/config"
	appErrors "github.com/collegeportal/portal-api/pkg/errors"
)

type userRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type detailRepository interface {
	Create(ctx context.Context, detail *models.StudentDetail) error
	CreateFaculty(ctx context.Context, detail *models.FacultyDetail) error
}

type departmentResolver interface {
	GetOrCreateDepartment(ctx context.Context, code, name string) (int64, error)
}

// RegisterStudentEntry is one roster line in a bulk student registration.
type RegisterStudentEntry struct {
	Name     string `json:"name" validate:"required"`
	USN      string `json:"usn" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Semester int    `json:"semester" validate:"required,min=1,max=8"`
	Section  string `json:"section" validate:"required"`
}

// RegisterStudentsRequest enrolls a batch of students into one department.
type RegisterStudentsRequest struct {
	DeptCode string                 `json:"dept_code" validate:"required"`
	DeptName string                 `json:"dept_name"`
	Entries  []RegisterStudentEntry `json:"entries" validate:"required,min=1"`
}

// RegisterStudentsResult reports how much of the roster landed.
type RegisterStudentsResult struct {
	Created int      `json:"created_count"`
	Skipped []string `json:"skipped_usns"`
}

// RegisterFacultyRequest creates one faculty account.
type RegisterFacultyRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	DeptCode string `json:"dept_code" validate:"required"`
	DeptName string `json:"dept_name"`
}

// AuthService authenticates users and issues HS256 access tokens.
type AuthService struct {
	users     userRepository
	details   detailRepository
	resolver  departmentResolver
	jwtCfg    config.JWTConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(users userRepository, details detailRepository, resolver departmentResolver, jwtCfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		details:   details,
		resolver:  resolver,
		jwtCfg:    jwtCfg,
		validator: validator.New(),
		logger:    logger,
	}
}

// Login verifies credentials and returns a signed token. A missing user and
// a wrong password both map to the same invalid-credentials error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	user, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.jwtCfg.Expiration)
	claims := models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtCfg.Expiration.Seconds()),
		IssuedAt:    now,
		User: models.UserInfo{
			ID:         user.ID,
			Identifier: user.Identifier,
			Role:       user.Role,
		},
	}, nil
}

// ValidateToken parses and verifies an access token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Role.Valid() {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

// RegisterStudents enrolls a roster of students. Rows whose USN already has
// an account are skipped and reported, not fatal.
func (s *AuthService) RegisterStudents(ctx context.Context, req RegisterStudentsRequest) (*RegisterStudentsResult, error) {
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

	result := &RegisterStudentsResult{Skipped: []string{}}
	for _, entry := range req.Entries {
		if _, err := s.users.FindByIdentifier(ctx, entry.USN); err == nil {
			result.Skipped = append(result.Skipped, entry.USN)
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(entry.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user := &models.User{
			Identifier:   entry.USN,
			PasswordHash: string(hash),
			Role:         models.RoleStudent,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}
		detail := &models.StudentDetail{
			UserID:   user.ID,
			Name:     entry.Name,
			USN:      entry.USN,
			DeptID:   deptID,
			Semester: entry.Semester,
			Section:  entry.Section,
		}
		if err := s.details.Create(ctx, detail); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student record")
		}
		result.Created++
	}
	return result, nil
}

// RegisterFaculty creates one faculty account with its detail row.
func (s *AuthService) RegisterFaculty(ctx context.Context, req RegisterFacultyRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if _, err := s.users.FindByIdentifier(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
	}

	deptName := req.DeptName
	if deptName == "" {
		deptName = req.DeptCode
	}
	deptID, err := s.resolver.GetOrCreateDepartment(ctx, req.DeptCode, deptName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve department")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Identifier:   req.Email,
		PasswordHash: string(hash),
		Role:         models.RoleFaculty,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	detail := &models.FacultyDetail{UserID: user.ID, Name: req.Name, DeptID: deptID}
	if err := s.details.CreateFaculty(ctx, detail); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty record")
	}

	return &models.UserInfo{ID: user.ID, Identifier: user.Identifier, Role: user.Role}, nil
}
