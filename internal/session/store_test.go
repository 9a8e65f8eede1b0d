package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func backends(t *testing.T) map[string]storeFactory {
	t.Helper()
	factories := map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir(), Namespace, nil)
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "session.db"), Namespace, nil)
			require.NoError(t, err)
			return s
		},
		"sealed": func(t *testing.T) Store {
			s, err := NewSealedStore(NewMemoryStore(), make([]byte, keySize), Namespace, nil)
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			srv := miniredis.RunT(t)
			client, err := DialRedis(context.Background(), RedisOptions{Addr: srv.Addr()})
			require.NoError(t, err)
			return NewRedisStore(client, Namespace, true, nil)
		},
	}
	return factories
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })

			_, ok := store.Get(ctx, "a")
			assert.False(t, ok, "missing key should be absent")

			require.NoError(t, store.Set(ctx, "a", "1"))
			v, ok := store.Get(ctx, "a")
			require.True(t, ok)
			assert.Equal(t, "1", v)

			require.NoError(t, store.Set(ctx, "a", "2"))
			v, _ = store.Get(ctx, "a")
			assert.Equal(t, "2", v, "set overwrites")

			require.NoError(t, store.Set(ctx, "b", ""))
			v, ok = store.Get(ctx, "b")
			assert.True(t, ok, "empty value is still present in the store")
			assert.Equal(t, "", v)

			require.NoError(t, store.Clear(ctx, "a"))
			_, ok = store.Get(ctx, "a")
			assert.False(t, ok)

			require.NoError(t, store.Clear(ctx, "never-set"), "clearing an absent key is a no-op")
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			t.Cleanup(func() { _ = store.Close() })
			sess := New(store)

			_, ok := sess.Token(ctx)
			assert.False(t, ok)
			assert.False(t, sess.Authenticated(ctx))

			require.NoError(t, sess.SignIn(ctx, "tok", User{Name: "Ann", Email: "ann@x"}))
			token, ok := sess.Token(ctx)
			require.True(t, ok)
			assert.Equal(t, "tok", token)
			assert.Equal(t, User{Name: "Ann", Email: "ann@x"}, sess.User(ctx))

			require.NoError(t, sess.SetUser(ctx, User{Name: "Annie"}))
			assert.Equal(t, User{Name: "Annie", Email: "ann@x"}, sess.User(ctx), "empty fields keep old values")

			require.NoError(t, sess.Clear(ctx))
			assert.False(t, sess.Authenticated(ctx))
			assert.Equal(t, User{}, sess.User(ctx))
			for _, key := range []string{KeyToken, KeyUserName, KeyUserEmail} {
				_, ok := store.Get(ctx, key)
				assert.False(t, ok, "key %s should be cleared", key)
			}
		})
	}
}

func TestSession_EmptyTokenIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyToken, "  "))
	_, ok := New(store).Token(ctx)
	assert.False(t, ok)

	assert.Error(t, New(store).SignIn(ctx, "", User{}))
}

func TestFileStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileStore(dir, Namespace, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyUserEmail, "ann@x"))

	info, err := os.Stat(first.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, "auth.toml", filepath.Base(first.Path()))

	second, err := NewFileStore(dir, Namespace, nil)
	require.NoError(t, err)
	v, ok := second.Get(ctx, KeyUserEmail)
	require.True(t, ok)
	assert.Equal(t, "ann@x", v)

	other, err := NewFileStore(dir, PrefsNamespace, nil)
	require.NoError(t, err)
	_, ok = other.Get(ctx, KeyUserEmail)
	assert.False(t, ok, "namespaces are isolated")
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.toml"), []byte("not = [toml"), 0o600))

	store, err := NewFileStore(dir, Namespace, nil)
	require.NoError(t, err)
	_, ok := store.Get(context.Background(), KeyToken)
	assert.False(t, ok)

	require.NoError(t, store.Set(context.Background(), KeyToken, "fresh"))
	reopened, err := NewFileStore(dir, Namespace, nil)
	require.NoError(t, err)
	v, _ := reopened.Get(context.Background(), KeyToken)
	assert.Equal(t, "fresh", v)
}

func TestSQLiteStore_NamespacesShareDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	auth, err := NewSQLiteStore(ctx, path, Namespace, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auth.Close() })
	require.NoError(t, auth.Set(ctx, "k", "auth"))

	prefs, err := NewSQLiteStore(ctx, path, PrefsNamespace, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prefs.Close() })
	_, ok := prefs.Get(ctx, "k")
	assert.False(t, ok)
	require.NoError(t, prefs.Set(ctx, "k", "prefs"))

	v, _ := auth.Get(ctx, "k")
	assert.Equal(t, "auth", v)
}

func TestSealedStore_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	key := make([]byte, keySize)
	key[0] = 7

	sealed, err := NewSealedStore(inner, key, Namespace, nil)
	require.NoError(t, err)
	require.NoError(t, sealed.Set(ctx, KeyToken, "secret-token"))

	raw, ok := inner.Get(ctx, KeyToken)
	require.True(t, ok)
	assert.NotContains(t, raw, "secret-token")

	v, ok := sealed.Get(ctx, KeyToken)
	require.True(t, ok)
	assert.Equal(t, "secret-token", v)

	otherKey := make([]byte, keySize)
	wrong, err := NewSealedStore(inner, otherKey, Namespace, nil)
	require.NoError(t, err)
	_, ok = wrong.Get(ctx, KeyToken)
	assert.False(t, ok, "wrong key reads as absent")

	otherNS, err := NewSealedStore(inner, key, PrefsNamespace, nil)
	require.NoError(t, err)
	_, ok = otherNS.Get(ctx, KeyToken)
	assert.False(t, ok, "namespaces derive distinct keys")

	require.NoError(t, inner.Set(ctx, "junk", "!!not base64"))
	_, ok = sealed.Get(ctx, "junk")
	assert.False(t, ok)
}

func TestNewSealedStore_RejectsShortKey(t *testing.T) {
	_, err := NewSealedStore(NewMemoryStore(), []byte("short"), Namespace, nil)
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "session.key")

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, key, keySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = LoadOrCreateKey(path)
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestRedisStore_NamespacesShareClient(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client, err := DialRedis(ctx, RedisOptions{Addr: srv.Addr()})
	require.NoError(t, err)

	auth := NewRedisStore(client, Namespace, false, nil)
	prefs := NewRedisStore(client, PrefsNamespace, false, nil)

	require.NoError(t, auth.Set(ctx, KeyToken, "tok"))
	got, err := srv.Get("quill:auth:" + KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	_, ok := prefs.Get(ctx, KeyToken)
	assert.False(t, ok, "namespaces are isolated by key prefix")

	require.NoError(t, auth.Close())
	require.NoError(t, prefs.Close())
	assert.NoError(t, client.Ping(ctx).Err(), "borrowed client stays open")
	require.NoError(t, client.Close())
}

func TestRedisStore_UnreachableServerReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client, err := DialRedis(ctx, RedisOptions{Addr: srv.Addr()})
	require.NoError(t, err)
	store := NewRedisStore(client, Namespace, true, nil)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Set(ctx, KeyToken, "tok"))
	srv.Close()

	_, ok := store.Get(ctx, KeyToken)
	assert.False(t, ok)
	assert.Error(t, store.Set(ctx, KeyToken, "other"))
}
