package redis

import (
	"context"
	"testing"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/platform/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestCredentialStore_LoadEmpty(t *testing.T) {
	store := NewCredentialStore(setupTestClient(t), nil, "")

	_, _, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

func TestCredentialStore_SaveLoadClear(t *testing.T) {
	store := NewCredentialStore(setupTestClient(t), nil, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-1", []byte(`{"id":3}`)))

	cred, identity, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cred)
	assert.JSONEq(t, `{"id":3}`, string(identity))

	require.NoError(t, store.Clear(ctx))
	_, _, err = store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

func TestCredentialStore_SaveWithoutIdentityDropsUser(t *testing.T) {
	store := NewCredentialStore(setupTestClient(t), nil, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-1", []byte(`{"id":3}`)))
	require.NoError(t, store.Save(ctx, "tok-2", nil))

	cred, identity, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", cred)
	assert.Empty(t, identity)
}

func TestCredentialStore_SealsToken(t *testing.T) {
	client := setupTestClient(t)
	sealer, err := crypto.NewAESGCM(testKey)
	require.NoError(t, err)
	store := NewCredentialStore(client, sealer, "test")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "secret-token", nil))

	raw, err := client.Get(ctx, "test:token").Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret-token")

	cred, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cred)
}

func TestCredentialStore_PrefixesIsolate(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	a := NewCredentialStore(client, nil, "a")
	b := NewCredentialStore(client, nil, "b")

	require.NoError(t, a.Save(ctx, "tok-a", nil))

	_, _, err := b.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}
