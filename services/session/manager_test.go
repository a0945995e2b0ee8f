package session

import (
	"bimbel_go/models"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerIsolatesClients(t *testing.T) {
	store := NewMemoryStore()
	providers := map[string]*fakeProvider{"a": newFakeProvider(), "b": newFakeProvider()}
	students := &fakeStudents{rows: map[uint]*models.Student{1: student(1, "ani", models.StudentStatusActive)}}
	m := NewManager(store, func(id string) AuthProvider { return providers[id] }, students, time.Hour)
	defer m.Close()

	ra, err := m.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, ra, m.Resolver("a"))

	require.NoError(t, ra.LoginAsStudent(context.Background(), students.rows[1]))

	rb, err := m.Resolve(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, ra.State().Role)
	assert.Equal(t, RoleAnonymous, rb.State().Role)
	assert.Equal(t, 2, m.Len())

	_, ok, err := m.Store("b").Get(context.Background(), StudentKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerOnChange(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(NewMemoryStore(), func(string) AuthProvider { return p }, &fakeStudents{}, time.Hour)
	defer m.Close()

	var mu sync.Mutex
	got := map[string][]Role{}
	m.OnChange(func(clientID string, st State) {
		mu.Lock()
		got[clientID] = append(got[clientID], st.Role)
		mu.Unlock()
	})

	_, err := m.Resolve(context.Background(), "c1")
	require.NoError(t, err)
	p.signIn(&AdminSession{AdminID: 3})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Role{RoleAnonymous, RoleAdmin}, got["c1"])
}

func TestManagerSweep(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(NewMemoryStore(), func(string) AuthProvider { return p }, &fakeStudents{}, time.Minute)
	defer m.Close()

	_, err := m.Resolve(context.Background(), "idle")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, p.subscribers())

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, p.subscribers())
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", time.Second))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "x", "1", time.Second))
	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, s.Purge())
}

func TestScopedStore(t *testing.T) {
	base := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, Scope(base, "one").Set(ctx, LanguageKey, "en", 0))

	_, ok, _ := Scope(base, "two").Get(ctx, LanguageKey)
	assert.False(t, ok)
	v, ok, _ := base.Get(ctx, "client:one:"+LanguageKey)
	assert.True(t, ok)
	assert.Equal(t, "en", v)
}

func TestRedisKeysCarryClientPrefixOnce(t *testing.T) {
	rs := NewRedisStore(nil, RedisKeyPrefix)
	scoped := Scope(rs, "one").(*scopedStore)
	assert.Equal(t, "bimbel:client:one:"+StudentKey, rs.key(scoped.prefix+StudentKey))
}
