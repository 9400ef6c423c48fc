package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tickwise/internal/entity"
	"tickwise/internal/utils"

	"github.com/google/uuid"
)

func testJWTManager() utils.JWTManager {
	return utils.JWTManager{
		Secret:         []byte("access-test-secret"),
		Issuer:         "tickwise-test",
		AccessTokenTTL: 15 * time.Minute,
	}
}

// In-memory repository fakes mirroring the SQL semantics the real
// implementations rely on, in particular the conditional single-winner
// updates for rotation and code consumption.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*entity.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && user.DeletedAt == nil {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) SetEmailVerified(_ context.Context, userID uuid.UUID) error {
	return r.mutate(userID, func(u *entity.User) { u.EmailVerified = true })
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	return r.mutate(userID, func(u *entity.User) { u.PasswordHash = &passwordHash })
}

func (r *fakeUserRepo) SetMFASecret(_ context.Context, userID uuid.UUID, encryptedSecret *string) error {
	return r.mutate(userID, func(u *entity.User) { u.MFASecret = encryptedSecret })
}

func (r *fakeUserRepo) SetMFAEnabled(_ context.Context, userID uuid.UUID, enabled bool) error {
	return r.mutate(userID, func(u *entity.User) { u.MFAEnabled = enabled })
}

func (r *fakeUserRepo) ClearMFA(_ context.Context, userID uuid.UUID) error {
	return r.mutate(userID, func(u *entity.User) {
		u.MFAEnabled = false
		u.MFASecret = nil
	})
}

func (r *fakeUserRepo) SetLastLogin(_ context.Context, userID uuid.UUID, at time.Time) error {
	return r.mutate(userID, func(u *entity.User) { u.LastLoginAt = &at })
}

func (r *fakeUserRepo) RecordLoginFailure(_ context.Context, userID uuid.UUID, maxAttempts int, lockFor time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return false, nil
	}
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxAttempts {
		user.IsLocked = true
		until := time.Now().Add(lockFor)
		user.LockedUntil = &until
	}
	return user.IsLocked, nil
}

func (r *fakeUserRepo) ResetLoginFailures(_ context.Context, userID uuid.UUID) error {
	return r.mutate(userID, func(u *entity.User) { u.FailedLoginAttempts = 0 })
}

func (r *fakeUserRepo) ClearExpiredLock(_ context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok || !user.IsLocked || user.LockedUntil == nil || user.LockedUntil.After(now) {
		return false, nil
	}
	user.IsLocked = false
	user.LockedUntil = nil
	user.FailedLoginAttempts = 0
	return true, nil
}

func (r *fakeUserRepo) Unlock(_ context.Context, userID uuid.UUID) error {
	return r.mutate(userID, func(u *entity.User) {
		u.IsLocked = false
		u.LockedUntil = nil
		u.FailedLoginAttempts = 0
	})
}

func (r *fakeUserRepo) SoftDeleteAnonymize(_ context.Context, userID uuid.UUID, at time.Time) error {
	return r.mutate(userID, func(u *entity.User) {
		u.Email = fmt.Sprintf("deleted-%s@anonymized.invalid", userID)
		u.PasswordHash = nil
		u.FullName = nil
		u.MFASecret = nil
		u.MFAEnabled = false
		u.IsActive = false
		u.DeletedAt = &at
	})
}

func (r *fakeUserRepo) List(_ context.Context, limit, offset int) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []entity.User
	for _, user := range r.users {
		if user.DeletedAt == nil {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) mutate(userID uuid.UUID, fn func(*entity.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		fn(user)
	}
	return nil
}

// raw returns the stored row without the deleted_at filter, for assertions.
func (r *fakeUserRepo) raw(userID uuid.UUID) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		copied := *user
		return &copied
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*entity.Session{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, sessionID uuid.UUID) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) FindByTokenHash(_ context.Context, hash string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.RefreshTokenHash == hash && !session.IsRevoked {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) Rotate(_ context.Context, sessionID uuid.UUID, successor *entity.Session) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.IsUsed || session.IsRevoked {
		return false, nil
	}
	now := time.Now()
	session.IsUsed = true
	session.UsedAt = &now
	session.LastUsedAt = now
	if successor.ID == uuid.Nil {
		successor.ID = uuid.New()
	}
	successor.CreatedAt = now
	copied := *successor
	r.sessions[successor.ID] = &copied
	return true, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[sessionID]; ok && !session.IsRevoked {
		now := time.Now()
		session.IsRevoked = true
		session.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) RevokeByTokenHash(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.RefreshTokenHash == hash && !session.IsRevoked {
			now := time.Now()
			session.IsRevoked = true
			session.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeSessionRepo) RevokeAllByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.UserID == userID && !session.IsRevoked {
			now := time.Now()
			session.IsRevoked = true
			session.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeSessionRepo) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sessions []entity.Session
	now := time.Now()
	for _, session := range r.sessions {
		if session.UserID == userID && !session.IsRevoked && !session.IsUsed && session.ExpiresAt.After(now) {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

func (r *fakeSessionRepo) CleanupExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) countByUser(userID uuid.UUID, revoked bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsRevoked == revoked {
			count++
		}
	}
	return count
}

type fakeVerificationRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*entity.VerificationToken
	now    func() time.Time
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{
		tokens: map[uuid.UUID]*entity.VerificationToken{},
		now:    time.Now,
	}
}

func (r *fakeVerificationRepo) Create(_ context.Context, token *entity.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	copied := *token
	r.tokens[token.ID] = &copied
	return nil
}

func (r *fakeVerificationRepo) FindValid(_ context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == tokenHash && token.Type == tokenType && token.UsedAt == nil && token.ExpiresAt.After(r.now()) {
			copied := *token
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeVerificationRepo) Consume(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok || token.UsedAt != nil {
		return false, nil
	}
	now := time.Now()
	token.UsedAt = &now
	return true, nil
}

type fakeBackupCodeRepo struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*entity.MFABackupCode
}

func newFakeBackupCodeRepo() *fakeBackupCodeRepo {
	return &fakeBackupCodeRepo{codes: map[uuid.UUID]*entity.MFABackupCode{}}
}

func (r *fakeBackupCodeRepo) ReplaceAll(_ context.Context, userID uuid.UUID, codeHashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, code := range r.codes {
		if code.UserID == userID {
			delete(r.codes, id)
		}
	}
	for _, hash := range codeHashes {
		id := uuid.New()
		r.codes[id] = &entity.MFABackupCode{ID: id, UserID: userID, CodeHash: hash}
	}
	return nil
}

func (r *fakeBackupCodeRepo) ListUnused(_ context.Context, userID uuid.UUID) ([]entity.MFABackupCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []entity.MFABackupCode
	for _, code := range r.codes {
		if code.UserID == userID && !code.IsUsed {
			codes = append(codes, *code)
		}
	}
	return codes, nil
}

func (r *fakeBackupCodeRepo) Consume(_ context.Context, codeID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[codeID]
	if !ok || code.IsUsed {
		return false, nil
	}
	now := time.Now()
	code.IsUsed = true
	code.UsedAt = &now
	return true, nil
}

func (r *fakeBackupCodeRepo) DeleteAllByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, code := range r.codes {
		if code.UserID == userID {
			delete(r.codes, id)
		}
	}
	return nil
}

func (r *fakeBackupCodeRepo) CountUnused(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, code := range r.codes {
		if code.UserID == userID && !code.IsUsed {
			count++
		}
	}
	return count, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []entity.AuditLog
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Append(_ context.Context, log *entity.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

func (r *fakeAuditRepo) AnonymizeByUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].UserID != nil && *r.entries[i].UserID == userID {
			r.entries[i].IPAddress = nil
			r.entries[i].UserAgent = nil
			r.entries[i].Metadata = []byte("{}")
		}
	}
	return nil
}

func (r *fakeAuditRepo) actions() []entity.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]entity.AuditAction, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func (r *fakeAuditRepo) has(action entity.AuditAction) bool {
	for _, a := range r.actions() {
		if a == action {
			return true
		}
	}
	return false
}

type sentEmail struct {
	Kind  string
	To    string
	Token string
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	fail bool
}

func (s *fakeEmailSender) SendVerificationEmail(_ context.Context, email string, token string) error {
	return s.record("verify", email, token)
}

func (s *fakeEmailSender) SendPasswordResetEmail(_ context.Context, email string, token string) error {
	return s.record("reset", email, token)
}

func (s *fakeEmailSender) SendMFAEnabledEmail(_ context.Context, email string) error {
	return s.record("mfa_enabled", email, "")
}

func (s *fakeEmailSender) record(kind string, to string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("smtp down")
	}
	s.sent = append(s.sent, sentEmail{Kind: kind, To: to, Token: token})
	return nil
}

func (s *fakeEmailSender) lastToken(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Kind == kind {
			return s.sent[i].Token
		}
	}
	return ""
}

// plainHasher sidesteps bcrypt cost in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(hash string, password string) bool {
	return hash == "hashed:"+password
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}
