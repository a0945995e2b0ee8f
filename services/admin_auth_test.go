package services

import (
	"bimbel_go/models"
	"bimbel_go/services/session"
	"bimbel_go/utils"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) (*AdminAuth, *models.Admin, session.Store) {
	t.Helper()
	db := newTestDB(t)
	hash, err := utils.HashPassword("rahasia123")
	require.NoError(t, err)
	admin := &models.Admin{Email: "admin@bimbel.id", Password: hash, Name: "Admin", Active: true}
	require.NoError(t, db.Create(admin).Error)

	store := session.NewMemoryStore()
	return NewAdminAuth(db, nil, store, "test-secret-key-123456", time.Hour), admin, store
}

func TestAdminSignIn(t *testing.T) {
	auth, admin, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.SignIn(ctx, "c1", "admin@bimbel.id", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.SignIn(ctx, "c1", "nobody@bimbel.id", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	var notified []*session.AdminSession
	unsub := auth.Subscribe("c1", func(s *session.AdminSession) { notified = append(notified, s) })
	defer unsub()

	sess, err := auth.SignIn(ctx, "c1", " Admin@Bimbel.id ", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, sess.AdminID)
	require.Len(t, notified, 1)
	assert.Equal(t, admin.ID, notified[0].AdminID)

	cur, err := auth.CurrentSession(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "admin@bimbel.id", cur.Email)

	other, err := auth.CurrentSession(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestAdminSignOut(t *testing.T) {
	auth, _, store := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.SignIn(ctx, "c1", "admin@bimbel.id", "rahasia123")
	require.NoError(t, err)

	var notified []*session.AdminSession
	auth.Subscribe("c1", func(s *session.AdminSession) { notified = append(notified, s) })

	require.NoError(t, auth.SignOut(ctx, "c1"))
	cur, err := auth.CurrentSession(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, cur)
	require.Len(t, notified, 1)
	assert.Nil(t, notified[0])

	_, ok, _ := session.Scope(store, "c1").Get(ctx, session.AdminTokenKey)
	assert.False(t, ok)

	// signing out without a session is silent
	require.NoError(t, auth.SignOut(ctx, "c1"))
	assert.Len(t, notified, 1)
}

func TestAdminSessionEndsWhenDeactivated(t *testing.T) {
	auth, admin, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.SignIn(ctx, "c1", "admin@bimbel.id", "rahasia123")
	require.NoError(t, err)
	require.NoError(t, auth.db.Model(admin).Update("active", false).Error)

	cur, err := auth.CurrentSession(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestAdminSessionRejectsTamperedToken(t *testing.T) {
	auth, _, store := newTestAuth(t)
	ctx := context.Background()
	require.NoError(t, session.Scope(store, "c1").Set(ctx, session.AdminTokenKey, "not-a-jwt", 0))

	cur, err := auth.CurrentSession(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, cur)
	_, ok, _ := session.Scope(store, "c1").Get(ctx, session.AdminTokenKey)
	assert.False(t, ok)
}

func TestResolverWithAdminAuth(t *testing.T) {
	auth, _, store := newTestAuth(t)
	ctx := context.Background()
	students := session.GormStudents{DB: auth.db}
	stu := seedStudent(t, auth.db, "budi", "SMA 10", models.StudentStatusActive)

	m := session.NewManager(store, auth.ClientProvider, students, time.Hour)
	defer m.Close()

	r, err := m.Resolve(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, session.RoleAnonymous, r.State().Role)

	_, err = auth.SignIn(ctx, "c1", "admin@bimbel.id", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, r.State().Role)

	// student login on the same client ends the admin session
	require.NoError(t, r.LoginAsStudent(ctx, stu))
	st := r.State()
	assert.Equal(t, session.RoleStudent, st.Role)
	assert.Nil(t, st.Admin)
	cur, err := auth.CurrentSession(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	require.NoError(t, r.Refresh(ctx))
	assert.Equal(t, session.RoleStudent, r.State().Role)
}
