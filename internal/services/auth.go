package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hinan-bknd/internal/auth"
	"hinan-bknd/internal/config"
	"hinan-bknd/internal/models"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// maxSessions is the number of live refresh tokens an operator may hold.
const maxSessions = 2

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("refresh token not found or revoked")
)

type AuthService struct {
	db    *bun.DB
	jwt   *auth.JWTManager
	cfg   *config.Config
	logr  *zap.Logger
	clock clockwork.Clock
}

func NewAuthService(db *bun.DB, jwt *auth.JWTManager, cfg *config.Config, logr *zap.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, cfg: cfg, logr: logr, clock: clockwork.NewRealClock()}
}

// HashPassword uses bcrypt
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type OperatorInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Roles    []string `json:"roles"`
}

func newOperatorInfo(o *models.Operator) *OperatorInfo {
	return &OperatorInfo{
		ID:       o.ID.String(),
		Email:    o.Email,
		Name:     o.Name,
		Provider: o.Provider,
		Roles:    o.Roles,
	}
}

// EnsureOperator creates a local operator, or resets the password and roles of
// an existing one with the same email.
func (s *AuthService) EnsureOperator(ctx context.Context, email, name, password string, roles []string) (*models.Operator, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var op models.Operator
	err = s.db.NewSelect().Model(&op).Where("email = ?", email).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		op = models.Operator{
			ID:           uuid.New(),
			Email:        email,
			Name:         name,
			PasswordHash: hash,
			Roles:        roles,
			Provider:     "local",
			CreatedAt:    s.clock.Now().UTC(),
		}
		if _, err := s.db.NewInsert().Model(&op).Exec(ctx); err != nil {
			return nil, fmt.Errorf("create operator: %w", err)
		}
		s.logr.Info("operator created", zap.String("email", email), zap.Strings("roles", roles))
	case err != nil:
		return nil, err
	default:
		op.PasswordHash = hash
		op.Roles = roles
		_, err := s.db.NewUpdate().Model(&op).
			Column("password_hash", "roles").
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("update operator: %w", err)
		}
	}
	return &op, nil
}

// LoginLocal checks a bcrypt password and issues a token pair.
func (s *AuthService) LoginLocal(ctx context.Context, email, password, deviceInfo string) (*auth.TokenPair, *OperatorInfo, error) {
	var op models.Operator
	err := s.db.NewSelect().Model(&op).Where("email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if op.PasswordHash == "" {
		return nil, nil, fmt.Errorf("account not configured for local login")
	}
	if err := ComparePassword(op.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, &op, "local", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	return pair, newOperatorInfo(&op), nil
}

// LoginLDAP binds against the city directory, provisions the operator on
// first login and issues a token pair. New directory operators are viewers.
func (s *AuthService) LoginLDAP(ctx context.Context, username, password, deviceInfo string) (*auth.TokenPair, *OperatorInfo, error) {
	cleanUsername := stripUserDomain(username, s.cfg.LDAPUserDomain)
	if cleanUsername == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	ldap.DefaultTimeout = 10 * time.Second
	l, err := ldap.DialURL(s.cfg.LDAPServer)
	if err != nil {
		s.logr.Error("LDAP dial failed", zap.Error(err), zap.String("server", s.cfg.LDAPServer))
		return nil, nil, fmt.Errorf("ldap connection failed")
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil {
			s.logr.Debug("LDAP close error", zap.Error(closeErr))
		}
	}()
	l.SetTimeout(30 * time.Second)

	bindDN := cleanUsername
	if s.cfg.LDAPUserDomain != "" {
		bindDN = cleanUsername + "@" + s.cfg.LDAPUserDomain
	}
	if err := l.Bind(bindDN, password); err != nil {
		s.logr.Warn("LDAP bind failed", zap.String("username", cleanUsername))
		return nil, nil, ErrInvalidCredentials
	}

	searchReq := ldap.NewSearchRequest(
		s.cfg.LDAPBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(cleanUsername)),
		[]string{"cn", "mail", "displayName"},
		nil,
	)
	sr, err := l.Search(searchReq)
	if err != nil {
		s.logr.Error("LDAP search failed", zap.Error(err), zap.String("username", cleanUsername))
		return nil, nil, fmt.Errorf("user lookup failed")
	}
	if len(sr.Entries) == 0 {
		return nil, nil, fmt.Errorf("user not found in directory")
	}

	entry := sr.Entries[0]
	mail := entry.GetAttributeValue("mail")
	if mail == "" {
		return nil, nil, fmt.Errorf("user account missing email")
	}
	fullName := entry.GetAttributeValue("displayName")
	if fullName == "" {
		fullName = entry.GetAttributeValue("cn")
	}
	if fullName == "" {
		fullName = cleanUsername
	}

	op, err := s.provisionDirectoryOperator(ctx, mail, fullName)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issue(ctx, op, "ldap", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	s.logr.Info("LDAP login successful", zap.String("operator_id", op.ID.String()), zap.String("email", mail))
	return pair, newOperatorInfo(op), nil
}

func (s *AuthService) provisionDirectoryOperator(ctx context.Context, email, name string) (*models.Operator, error) {
	var op models.Operator
	err := s.db.NewSelect().Model(&op).Where("email = ?", email).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		op = models.Operator{
			ID:        uuid.New(),
			Email:     email,
			Name:      name,
			Provider:  "ldap",
			Roles:     []string{models.RoleViewer},
			CreatedAt: s.clock.Now().UTC(),
		}
		if _, err := s.db.NewInsert().Model(&op).Exec(ctx); err != nil {
			return nil, fmt.Errorf("create operator: %w", err)
		}
		s.logr.Info("created operator from directory", zap.String("email", email))
	case err != nil:
		return nil, err
	case op.Provider != "ldap":
		op.Provider = "ldap"
		_, _ = s.db.NewUpdate().Model(&op).Column("provider").WherePK().Exec(ctx)
	}
	return &op, nil
}

// stripUserDomain removes a trailing "@domain" (any case) from a directory login.
func stripUserDomain(username, domain string) string {
	username = strings.TrimSpace(username)
	if domain == "" {
		return username
	}
	suffix := "@" + domain
	if len(username) > len(suffix) && strings.EqualFold(username[len(username)-len(suffix):], suffix) {
		return username[:len(username)-len(suffix)]
	}
	return username
}

func (s *AuthService) issue(ctx context.Context, op *models.Operator, method, deviceInfo string) (*auth.TokenPair, error) {
	now := s.clock.Now().UTC()
	op.LastLoginAt = &now
	_, _ = s.db.NewUpdate().Model(op).Column("last_login_at").WherePK().Exec(ctx)

	pair, err := s.jwt.GenerateTokenPair(op.ID.String(), s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, op.TokenVersion, method, op.Roles)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	if err := s.storeRefreshToken(ctx, op.ID, pair.RefreshToken, pair.RefreshExp, pair.JTI, deviceInfo); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return pair, nil
}

// storeRefreshToken stores the refresh token hashed and keeps at most
// maxSessions live sessions per operator, dropping the oldest.
func (s *AuthService) storeRefreshToken(ctx context.Context, operatorID uuid.UUID, refreshToken string, expiresAt time.Time, jti string, deviceInfo string) error {
	now := s.clock.Now().UTC()

	_, _ = s.db.NewDelete().Model((*models.RefreshToken)(nil)).
		Where("operator_id = ? AND expires_at < ?", operatorID, now).
		Exec(ctx)

	var live []models.RefreshToken
	err := s.db.NewSelect().Model(&live).
		Column("id").
		Where("operator_id = ? AND revoked = ? AND expires_at > ?", operatorID, false, now).
		Order("created_at ASC").
		Scan(ctx)
	if err == nil && len(live) >= maxSessions {
		ids := make([]uuid.UUID, 0, len(live)-maxSessions+1)
		for _, rt := range live[:len(live)-maxSessions+1] {
			ids = append(ids, rt.ID)
		}
		_, _ = s.db.NewDelete().Model((*models.RefreshToken)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
	}

	rt := models.RefreshToken{
		ID:         uuid.New(),
		OperatorID: operatorID,
		JTI:        jti,
		TokenHash:  auth.HashToken(refreshToken),
		DeviceInfo: &deviceInfo,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	_, err = s.db.NewInsert().Model(&rt).Exec(ctx)
	return err
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, deviceInfo string) (*auth.TokenPair, error) {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if claims.Kind != auth.RefreshToken {
		return nil, fmt.Errorf("not a refresh token")
	}

	var rt models.RefreshToken
	err = s.db.NewSelect().Model(&rt).
		Where("jti = ? AND token_hash = ? AND revoked = ? AND expires_at > ?",
			claims.JTI, auth.HashToken(refreshToken), false, s.clock.Now().UTC()).
		Scan(ctx)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	var op models.Operator
	if err := s.db.NewSelect().Model(&op).Where("id = ?", rt.OperatorID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("operator not found")
	}

	// Only the caller that flips revoked wins the rotation.
	res, err := s.db.NewUpdate().Model((*models.RefreshToken)(nil)).
		Set("revoked = ?", true).
		Where("id = ? AND revoked = ?", rt.ID, false).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	} else if n != 1 {
		return nil, ErrInvalidRefresh
	}

	pair, err := s.jwt.GenerateTokenPair(op.ID.String(), s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, op.TokenVersion, "refresh", op.Roles)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshToken(ctx, op.ID, pair.RefreshToken, pair.RefreshExp, pair.JTI, deviceInfo); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the session behind a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil {
		return err
	}
	if claims.JTI == "" {
		return fmt.Errorf("invalid jti")
	}
	_, err = s.db.NewUpdate().Model((*models.RefreshToken)(nil)).
		Set("revoked = ?", true).
		Where("jti = ?", claims.JTI).
		Exec(ctx)
	return err
}

func (s *AuthService) CheckTokenVersion(ctx context.Context, operatorID string, tokenVersion int) (bool, error) {
	id, err := uuid.Parse(operatorID)
	if err != nil {
		return false, nil
	}
	var op models.Operator
	err = s.db.NewSelect().Model(&op).Column("token_version").Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return op.TokenVersion == tokenVersion, nil
}

// RevokeAll invalidates every token issued to the operator by bumping its token version.
func (s *AuthService) RevokeAll(ctx context.Context, operatorID uuid.UUID) error {
	_, err := s.db.NewUpdate().Model((*models.Operator)(nil)).
		Set("token_version = token_version + 1").
		Where("id = ?", operatorID).
		Exec(ctx)
	return err
}
