package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

func TestNewConfigStore(t *testing.T) {
	store := NewConfigStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.values)
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Load())
}

func TestConfigStore_Set_Update(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("server.address", "https://a"))
	require.NoError(t, store.Set("server.address", "https://b"))

	val, ok := store.Get("server.address")
	assert.True(t, ok)
	assert.Equal(t, "https://b", val)
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	store := NewConfigStore()

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_GetString_WrongType(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("key", 42)

	assert.Empty(t, store.GetString("key"))
}

func TestConfigStore_GetInt_Types(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("int", 42)
	_ = store.Set("int64", int64(43))
	_ = store.Set("float", 44.0)
	_ = store.Set("string", "45")

	assert.Equal(t, 42, store.GetInt("int"))
	assert.Equal(t, 43, store.GetInt("int64"))
	assert.Equal(t, 44, store.GetInt("float"))
	assert.Zero(t, store.GetInt("string"))
}

func TestConfigStore_GetDuration(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("string", "90s")
	_ = store.Set("seconds", int64(5))
	_ = store.Set("broken", "whenever")

	d, ok, err := store.GetDuration("string")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	d, ok, err = store.GetDuration("seconds")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	_, ok, err = store.GetDuration("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.GetDuration("broken")
	assert.True(t, ok)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("strings", []string{"openid", "offline_access"})
	_ = store.Set("mixed", []any{"openid", 3, "profile"})

	assert.Equal(t, []string{"openid", "offline_access"}, store.GetStringSlice("strings"))
	assert.Equal(t, []string{"openid", "profile"}, store.GetStringSlice("mixed"))
}

func TestConfigStore_KeysAndUnset(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("session.auth_timeout", "90s")
	_ = store.Set("oauth.client_id", "hublink")
	_ = store.Set("server.address", "https://a")

	assert.Equal(t, []string{"oauth.client_id", "server.address", "session.auth_timeout"}, store.Keys())

	require.NoError(t, store.Unset("server.address"))
	_, ok := store.Get("server.address")
	assert.False(t, ok)
	assert.Len(t, store.Keys(), 2)

	// unsetting a missing key is not an error
	assert.NoError(t, store.Unset("server.address"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key%d", n))
			_ = store.Keys()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 20)
}
