package services

import (
	"bimbel_go/models"
	"bimbel_go/services/session"
	"bimbel_go/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const blacklistPrefix = "blacklist:jwt:"

// AdminClaims are carried by admin session tokens.
type AdminClaims struct {
	AdminID uint   `json:"admin_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	jwt.RegisteredClaims
}

// AdminAuth is the password auth backend for staff accounts. Tokens live in
// each client's store under session.AdminTokenKey.
type AdminAuth struct {
	db     *gorm.DB
	redis  *redis.Client
	store  session.Store
	secret []byte
	ttl    time.Duration

	mu   sync.Mutex
	subs map[string]map[int]func(*session.AdminSession)
	next int
}

// NewAdminAuth builds the auth backend. rdb may be nil, in which case
// revoked tokens are only removed from the client store.
func NewAdminAuth(db *gorm.DB, rdb *redis.Client, store session.Store, secret string, ttl time.Duration) *AdminAuth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AdminAuth{
		db:     db,
		redis:  rdb,
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		subs:   make(map[string]map[int]func(*session.AdminSession)),
	}
}

// SignIn checks the credentials and stores a new session token for clientID.
func (a *AdminAuth) SignIn(ctx context.Context, clientID, email, password string) (*session.AdminSession, error) {
	var admin models.Admin
	err := a.db.WithContext(ctx).
		Where("email = ? AND active = ?", utils.NormalizeEmail(email), true).
		First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
	if err := utils.CheckPassword(password, admin.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := a.issueToken(&admin)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := a.clientStore(clientID).Set(ctx, session.AdminTokenKey, token, a.ttl); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	now := time.Now()
	if err := a.db.WithContext(ctx).Model(&admin).Update("last_login", now).Error; err != nil {
		logrus.WithError(err).WithField("admin_id", admin.ID).Warn("failed to record last login")
	}

	sess := &session.AdminSession{
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
		ExpiresAt: expires,
		Token:     token,
	}
	a.notify(clientID, sess)
	return sess, nil
}

// CurrentSession returns the live session for clientID, or nil.
func (a *AdminAuth) CurrentSession(ctx context.Context, clientID string) (*session.AdminSession, error) {
	store := a.clientStore(clientID)
	token, ok, err := store.Get(ctx, session.AdminTokenKey)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		return nil, nil
	}

	claims, err := a.parseToken(token)
	if err != nil {
		_ = store.Delete(ctx, session.AdminTokenKey)
		return nil, nil
	}
	if a.isRevoked(ctx, token) {
		_ = store.Delete(ctx, session.AdminTokenKey)
		return nil, nil
	}

	var admin models.Admin
	if err := a.db.WithContext(ctx).Where("id = ? AND active = ?", claims.AdminID, true).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = store.Delete(ctx, session.AdminTokenKey)
			return nil, nil
		}
		return nil, err
	}

	return &session.AdminSession{
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
		ExpiresAt: claims.ExpiresAt.Time,
		Token:     token,
	}, nil
}

// SignOut revokes the client's token. Subscribers are told only when a
// session actually ended.
func (a *AdminAuth) SignOut(ctx context.Context, clientID string) error {
	store := a.clientStore(clientID)
	token, ok, err := store.Get(ctx, session.AdminTokenKey)
	if err != nil {
		return err
	}
	if !ok || token == "" {
		return nil
	}

	if a.redis != nil {
		ttl := a.ttl
		if claims, err := a.parseToken(token); err == nil && claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		if ttl > 0 {
			if err := a.redis.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
				logrus.WithError(err).Warn("failed to blacklist admin token")
			}
		}
	}
	if err := store.Delete(ctx, session.AdminTokenKey); err != nil {
		return err
	}

	a.notify(clientID, nil)
	return nil
}

// Subscribe registers fn for session changes of clientID.
func (a *AdminAuth) Subscribe(clientID string, fn func(*session.AdminSession)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subs[clientID] == nil {
		a.subs[clientID] = make(map[int]func(*session.AdminSession))
	}
	id := a.next
	a.next++
	a.subs[clientID][id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs[clientID], id)
		if len(a.subs[clientID]) == 0 {
			delete(a.subs, clientID)
		}
	}
}

// ClientProvider binds the backend to one client for the session resolver.
func (a *AdminAuth) ClientProvider(clientID string) session.AuthProvider {
	return &clientAuth{auth: a, clientID: clientID}
}

func (a *AdminAuth) notify(clientID string, sess *session.AdminSession) {
	a.mu.Lock()
	fns := make([]func(*session.AdminSession), 0, len(a.subs[clientID]))
	for _, fn := range a.subs[clientID] {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}

func (a *AdminAuth) clientStore(clientID string) session.Store {
	return session.Scope(a.store, clientID)
}

func (a *AdminAuth) issueToken(admin *models.Admin) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(a.ttl)
	claims := &AdminClaims{
		AdminID: admin.ID,
		Email:   admin.Email,
		Name:    admin.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	return signed, expires, err
}

func (a *AdminAuth) parseToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (a *AdminAuth) isRevoked(ctx context.Context, token string) bool {
	if a.redis == nil {
		return false
	}
	n, err := a.redis.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		logrus.WithError(err).Warn("blacklist lookup failed")
		return false
	}
	return n > 0
}

type clientAuth struct {
	auth     *AdminAuth
	clientID string
}

func (c *clientAuth) CurrentSession(ctx context.Context) (*session.AdminSession, error) {
	return c.auth.CurrentSession(ctx, c.clientID)
}

func (c *clientAuth) SignOut(ctx context.Context) error {
	return c.auth.SignOut(ctx, c.clientID)
}

func (c *clientAuth) Subscribe(fn func(*session.AdminSession)) func() {
	return c.auth.Subscribe(c.clientID, fn)
}
