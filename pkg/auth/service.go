package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/dustlibrary/dust/pkg/errcodes"
	"github.com/dustlibrary/dust/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing. Hashes stored with a
	// lower cost are transparently rehashed on the next successful login.
	BcryptCost = 12
	// TokenExpiry is how long JWT tokens are valid.
	TokenExpiry = 24 * time.Hour

	tokenIssuer   = "dust"
	tokenAudience = "dust-client"
)

// JWTClaims represents the claims in a JWT token.
type JWTClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// Service handles authentication operations.
type Service struct {
	db        *bun.DB
	jwtSecret []byte
}

// NewService creates a new auth service.
func NewService(db *bun.DB, jwtSecret string) *Service {
	return &Service{
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
}

// CountUsers returns the total number of users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// AuthSettings returns the singleton auth settings row.
func (s *Service) AuthSettings(ctx context.Context) (*models.AuthSettings, error) {
	settings := &models.AuthSettings{}
	err := s.db.NewSelect().Model(settings).Limit(1).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return settings, nil
}

// UpdateAuthFlow switches the registration flow between open signup and
// invitation-only.
func (s *Service) UpdateAuthFlow(ctx context.Context, flow string) (*models.AuthSettings, error) {
	settings, err := s.AuthSettings(ctx)
	if err != nil {
		return nil, err
	}

	settings.AuthFlow = flow
	settings.UpdatedAt = time.Now()
	_, err = s.db.NewUpdate().
		Model(settings).
		Column("auth_flow", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return settings, nil
}

// RegisterOptions are the inputs to Register.
type RegisterOptions struct {
	Username        string
	Email           string
	Password        string
	DisplayName     string
	InvitationToken string
}

// Register creates a new user. The first user ever created is granted the
// administrator role; everyone after that starts as a member. When the auth
// flow is invitation-only, a valid unconsumed invitation token issued for the
// registrant's email is required and is consumed in the same transaction as
// the user insert.
func (s *Service) Register(ctx context.Context, opts RegisterOptions) (*models.User, error) {
	settings, err := s.AuthSettings(ctx)
	if err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     opts.Username,
		Email:        opts.Email,
		PasswordHash: passwordHash,
		DisplayName:  opts.DisplayName,
		IsActive:     true,
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var invitation *models.Invitation
		if settings.AuthFlow == models.AuthFlowInvitation {
			invitation = &models.Invitation{}
			tokenHash := HashInvitationToken(s.jwtSecret, opts.InvitationToken)
			err := tx.NewSelect().
				Model(invitation).
				Where("token_hash = ?", tokenHash).
				Where("email = ? COLLATE NOCASE", opts.Email).
				Where("consumed_at IS NULL").
				Where("expires_at > ?", time.Now()).
				Scan(ctx)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return errcodes.Unauthorized("A valid invitation is required to register")
				}
				return errors.WithStack(err)
			}
		}

		exists, err := tx.NewSelect().
			Model((*models.User)(nil)).
			Where("username = ? COLLATE NOCASE", opts.Username).
			WhereOr("email = ? COLLATE NOCASE", opts.Email).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return errcodes.Conflict("A user with that username or email already exists")
		}

		count, err := tx.NewSelect().Model((*models.User)(nil)).Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}

		roleName := models.RoleMember
		if count == 0 {
			roleName = models.RoleAdministrator
		}
		role := &models.Role{}
		err = tx.NewSelect().Model(role).Where("name = ?", roleName).Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		userRole := &models.UserRole{UserID: user.ID, RoleID: role.ID}
		if _, err := tx.NewInsert().Model(userRole).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}

		if invitation != nil {
			now := time.Now()
			invitation.ConsumedAt = &now
			_, err := tx.NewUpdate().
				Model(invitation).
				Column("consumed_at").
				WherePK().
				Where("consumed_at IS NULL").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.UserByID(ctx, user.ID)
}

// Authenticate validates credentials and returns the user if valid. The login
// identifier matches either the username or the email, case-insensitively.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Relation("Roles").
		Relation("Roles.Permissions").
		Where("(u.username = ? COLLATE NOCASE OR u.email = ? COLLATE NOCASE)", login, login).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid username or password")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid username or password")
	}

	// Upgrade hashes issued under a weaker cost while we still have the
	// plaintext in hand. Failures here don't block the login.
	if cost, err := bcrypt.Cost([]byte(user.PasswordHash)); err == nil && cost < BcryptCost {
		if rehashed, err := HashPassword(password); err == nil {
			user.PasswordHash = rehashed
			_, _ = s.db.NewUpdate().
				Model(user).
				Column("password_hash").
				WherePK().
				Exec(ctx)
		}
	}

	return user, nil
}

// GenerateToken creates a new JWT token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&JWTClaims{},
		func(_ *jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// UserByID retrieves an active user by ID with role and permission relations.
func (s *Service) UserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Relation("Roles").
		Relation("Roles.Permissions").
		Where("u.id = ?", id).
		Where("u.is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}

// GenerateInvitationToken returns a high-entropy opaque token. Only its HMAC
// is ever stored; the plaintext is shown to the admin once.
func GenerateInvitationToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.WithStack(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashInvitationToken computes the stored form of an invitation token.
func HashInvitationToken(secret []byte, token string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// JWTSecret exposes the signing secret for collaborating services that need
// to derive invitation token hashes.
func (s *Service) JWTSecret() []byte {
	return s.jwtSecret
}
