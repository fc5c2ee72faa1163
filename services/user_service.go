package services

import (
	"context"
	"errors"

	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// PasswordCost is the bcrypt cost for stored passwords
const PasswordCost = 10

// UserService manages staff accounts and credential login
type UserService struct {
	db     *gorm.DB
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewUserService creates a user service. tokens may be nil when credential
// login is disabled.
func NewUserService(db *gorm.DB, tokens *TokenIssuer, logger *zap.Logger) *UserService {
	return &UserService{db: db, tokens: tokens, logger: logger}
}

// Signup registers a new USER account
func (s *UserService) Signup(ctx context.Context, in forms.SignupInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	return s.createWithPassword(ctx, in.Name, in.Email, in.Password, models.RoleUser)
}

// Login checks credentials and returns a signed session token
func (s *UserService) Login(ctx context.Context, in forms.LoginInput) (string, *models.User, error) {
	if err := in.Validate(); err != nil {
		return "", nil, fromValidation(err)
	}
	if s.tokens == nil {
		return "", nil, forbidden("Credential login is disabled.")
	}

	badCredentials := &ServiceError{Kind: KindNotAuthenticated, Code: "INVALID_CREDENTIALS", Message: "Invalid email or password."}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, badCredentials
	}
	if err != nil {
		s.logger.Error("failed to look up user", zap.Error(err))
		return "", nil, storeFailure("Failed to log in.", err)
	}
	if user.Password == nil {
		return "", nil, badCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(in.Password)) != nil {
		return "", nil, badCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue token", zap.Uint("user_id", user.ID), zap.Error(err))
		return "", nil, storeFailure("Failed to log in.", err)
	}
	return token, &user, nil
}

// Profile returns the acting user
func (s *UserService) Profile(ctx context.Context, session Session) (*models.User, error) {
	actorID, err := requireActor(session)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, actorID)
}

// UpdateProfile changes the acting user's name and avatar
func (s *UserService) UpdateProfile(ctx context.Context, session Session, in forms.ProfileInput) (*models.User, error) {
	actorID, err := requireActor(session)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	user, err := s.find(ctx, actorID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Image != nil {
		updates["image"] = optional(*in.Image)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		s.logger.Error("failed to update profile", zap.Uint("user_id", actorID), zap.Error(err))
		return nil, storeFailure("Failed to update profile.", err)
	}
	return s.find(ctx, actorID)
}

// AddStaff creates a staff account. Admin only.
func (s *UserService) AddStaff(ctx context.Context, session Session, in forms.StaffInput) (*models.User, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	return s.createWithPassword(ctx, in.Name, in.Email, in.Password, in.Role)
}

// UpdateUserRole changes another user's role. Admin only.
func (s *UserService) UpdateUserRole(ctx context.Context, session Session, userID uint, in forms.RoleInput) (*models.User, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", in.Role)
	if result.Error != nil {
		s.logger.Error("failed to update user role", zap.Uint("user_id", userID), zap.Error(result.Error))
		return nil, storeFailure("Failed to update user role.", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound("User not found.")
	}

	s.logger.Info("user role changed", zap.Uint("user_id", userID), zap.String("role", string(in.Role)))
	return s.find(ctx, userID)
}

// ListStaff returns every account. Admin only.
func (s *UserService) ListStaff(ctx context.Context, session Session) ([]models.User, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	return s.list(s.db.WithContext(ctx).Order("name asc"))
}

// ListTechnicians returns the non-admin staff who can be assigned jobs
func (s *UserService) ListTechnicians(ctx context.Context, session Session) ([]models.User, error) {
	if _, err := requireActor(session); err != nil {
		return nil, err
	}
	return s.list(s.db.WithContext(ctx).Where("role = ?", models.RoleUser).Order("name asc"))
}

// ProvisionExternalUser creates the local profile for an account that signs
// in through the external identity provider
func (s *UserService) ProvisionExternalUser(ctx context.Context, subject string, info *UserInfo) (*models.User, error) {
	if subject == "" {
		return nil, notAuthenticated()
	}
	verr := invalid("Incomplete profile from identity provider.")
	if info == nil || info.Email == "" {
		verr.Details = map[string][]string{"email": {"Email not provided by identity provider."}}
		return nil, verr
	}
	if info.Name == "" {
		verr.Details = map[string][]string{"name": {"Name not provided by identity provider."}}
		return nil, verr
	}

	user := models.User{
		Name:       info.Name,
		Email:      info.Email,
		ExternalID: &subject,
		Role:       models.RoleUser,
		Image:      optional(info.Picture),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("A user with this identity or email already exists.")
		}
		s.logger.Error("failed to provision user", zap.String("subject", subject), zap.Error(err))
		return nil, storeFailure("Failed to create user.", err)
	}

	s.logger.Info("external user provisioned", zap.Uint("user_id", user.ID))
	return &user, nil
}

// ResolveExternalSession maps an identity provider subject to a local session.
// Unknown subjects yield an anonymous session.
func (s *UserService) ResolveExternalSession(ctx context.Context, subject string) (Session, error) {
	if subject == "" {
		return Session{}, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("external_id = ?", subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, nil
	}
	if err != nil {
		s.logger.Error("failed to resolve external user", zap.String("subject", subject), zap.Error(err))
		return Session{}, storeFailure("Failed to resolve user.", err)
	}
	return SessionFor(user), nil
}

// VerifySession checks a locally issued token and reloads its user, so a role
// change or a deleted account takes effect on the next request rather than
// when the token expires.
func (s *UserService) VerifySession(ctx context.Context, token string) (Session, error) {
	if s.tokens == nil {
		return Session{}, notAuthenticated()
	}
	claimed, err := s.tokens.Verify(token)
	if err != nil {
		return Session{}, &ServiceError{Kind: KindNotAuthenticated, Code: "INVALID_TOKEN", Message: "Failed to validate JWT.", Err: err}
	}
	id, ok := claimed.ActorID()
	if !ok {
		return Session{}, notAuthenticated()
	}

	user, err := s.find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Session{}, notAuthenticated()
	}
	if err != nil {
		return Session{}, err
	}
	return SessionFor(*user), nil
}

// BootstrapAdmin creates an ADMIN account without a session, for first-time setup
func (s *UserService) BootstrapAdmin(ctx context.Context, in forms.StaffInput) (*models.User, error) {
	in.Role = models.RoleAdmin
	if err := in.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	return s.createWithPassword(ctx, in.Name, in.Email, in.Password, models.RoleAdmin)
}

func (s *UserService) createWithPassword(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.logger.Error("failed to check existing user", zap.Error(err))
		return nil, storeFailure("Failed to create user.", err)
	}
	if count > 0 {
		return nil, conflict("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, storeFailure("Failed to create user.", err)
	}
	hashed := string(hash)

	user := models.User{Name: name, Email: email, Password: &hashed, Role: role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, conflict("User already exists")
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, storeFailure("Failed to create user.", err)
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("role", string(role)))
	return &user, nil
}

func (s *UserService) find(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("User not found.")
	}
	if err != nil {
		s.logger.Error("failed to get user", zap.Uint("user_id", id), zap.Error(err))
		return nil, storeFailure("Failed to retrieve user.", err)
	}
	return &user, nil
}

func (s *UserService) list(query *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		s.logger.Error("failed to list users", zap.Error(err))
		return nil, storeFailure("Failed to retrieve users.", err)
	}
	return users, nil
}
