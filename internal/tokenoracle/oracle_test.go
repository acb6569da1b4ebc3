package tokenoracle

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/clusterjoin/tokenbroker-go/internal/minter"
	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
	"github.com/clusterjoin/tokenbroker-go/pkg/tokenoracle"
)

// fakeBus counts publishes and returns canned responses.
type fakeBus struct {
	publishes int
	lastReq   peerbus.Request
	lastSel   peerbus.Selector
	responses []peerbus.Response
	err       error
}

func (f *fakeBus) Publish(ctx context.Context, sel peerbus.Selector, req peerbus.Request) ([]peerbus.Response, error) {
	f.publishes++
	f.lastSel = sel
	f.lastReq = req
	return f.responses, f.err
}

// tokenResponse marshals a minted token the way a responding peer would.
func tokenResponse(t *testing.T, nodeID string, token *minter.JoinToken) peerbus.Response {
	t.Helper()
	payload, err := json.Marshal(token)
	require.NoError(t, err)
	return peerbus.Response{NodeID: nodeID, Payload: payload}
}

func testOracle(t *testing.T, bus peerbus.PeerBus) (*FileOracle, *Config) {
	t.Helper()
	dir := t.TempDir()
	config := &Config{
		IdentityKeyPath: filepath.Join(dir, "node.key"),
		CacheTokenPath:  filepath.Join(dir, "auth_token"),
		SourceNode:      "web-01",
	}
	oracle, err := New(config, bus)
	require.NoError(t, err)
	return oracle, oracle.config
}

func authSelector() peerbus.Selector {
	return peerbus.Selector{Target: "role:teleport-auth", MatchType: peerbus.MatchGrain}
}

func writeCacheFile(t *testing.T, path string, token *minter.JoinToken) {
	t.Helper()
	data, err := yaml.Marshal(token)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestNodeAuthToken_IdentityKeySkipsBroadcast(t *testing.T) {
	// Identity key present: never broadcast, regardless of cache state.
	t.Run("with_expired_cache", func(t *testing.T) {
		bus := &fakeBus{}
		oracle, config := testOracle(t, bus)

		require.NoError(t, os.WriteFile(config.IdentityKeyPath, []byte("key material"), 0o600))
		writeCacheFile(t, config.CacheTokenPath, &minter.JoinToken{
			Token:     "tok-stale",
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		})

		token, err := oracle.NodeAuthToken(context.Background(), authSelector())
		require.NoError(t, err)
		assert.Equal(t, "tok-stale", token)
		assert.Equal(t, 0, bus.publishes)
	})

	t.Run("without_cache", func(t *testing.T) {
		bus := &fakeBus{}
		oracle, config := testOracle(t, bus)

		require.NoError(t, os.WriteFile(config.IdentityKeyPath, []byte("key material"), 0o600))

		token, err := oracle.NodeAuthToken(context.Background(), authSelector())
		require.NoError(t, err)
		assert.Equal(t, "", token)
		assert.Equal(t, 0, bus.publishes)
	})
}

func TestNodeAuthToken_FreshCacheSkipsBroadcast(t *testing.T) {
	// Scenario B: cache valid for another 10 minutes, no identity key.
	bus := &fakeBus{}
	oracle, config := testOracle(t, bus)

	writeCacheFile(t, config.CacheTokenPath, &minter.JoinToken{
		Token:     "tok-123",
		ExpiresAt: time.Now().Add(10 * time.Minute).Unix(),
	})

	token, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, 0, bus.publishes)
}

func TestNodeAuthToken_FetchAndCache(t *testing.T) {
	// Scenario A: nothing on disk, one peer answers with a 1-hour token.
	now := time.Now()
	minted := &minter.JoinToken{
		Token:      "tok-123",
		Expires:    "1 hours",
		ExpiresAt:  now.Add(time.Hour).Unix(),
		AuthServer: "auth-01.cluster.local:3025",
	}
	bus := &fakeBus{}
	oracle, config := testOracle(t, bus)
	bus.responses = []peerbus.Response{tokenResponse(t, "auth-01", minted)}

	token, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, 1, bus.publishes)
	assert.Equal(t, "teleport.nodes_add", bus.lastReq.Function)
	assert.Equal(t, "web-01", bus.lastReq.SourceNode)
	assert.Equal(t, "node", bus.lastReq.Args["roles"])

	// The persisted cache equals the returned token with a consistent expiry.
	cached, err := readCache(config.CacheTokenPath)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cached.Token)
	assert.Equal(t, "auth-01.cluster.local:3025", cached.AuthServer)
	assert.InDelta(t, now.Add(time.Hour).Unix(), cached.ExpiresAt, 5)
}

func TestNodeAuthToken_ExpiredCacheRefetches(t *testing.T) {
	bus := &fakeBus{}
	oracle, config := testOracle(t, bus)

	writeCacheFile(t, config.CacheTokenPath, &minter.JoinToken{
		Token:     "tok-old",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	bus.responses = []peerbus.Response{tokenResponse(t, "auth-01", &minter.JoinToken{
		Token:     "tok-new",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})}

	token, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)
	assert.Equal(t, "tok-new", token)
	assert.Equal(t, 1, bus.publishes)

	// The stale cache was overwritten.
	cached, err := readCache(config.CacheTokenPath)
	require.NoError(t, err)
	assert.Equal(t, "tok-new", cached.Token)
}

func TestNodeAuthToken_NoResponses(t *testing.T) {
	// Scenario D: required fetch, zero responses.
	bus := &fakeBus{}
	oracle, config := testOracle(t, bus)

	token, err := oracle.NodeAuthToken(context.Background(), authSelector())
	assert.Equal(t, "", token)
	require.Error(t, err)
	assert.ErrorIs(t, err, tokenoracle.ErrTokenUnavailable)
	assert.Equal(t, 1, bus.publishes)

	// Nothing was cached.
	_, err = readCache(config.CacheTokenPath)
	assert.Error(t, err)
}

func TestNodeAuthToken_EmptyResponsesSkipped(t *testing.T) {
	// First non-empty response wins; empty and malformed ones are skipped.
	bus := &fakeBus{}
	oracle, _ := testOracle(t, bus)
	bus.responses = []peerbus.Response{
		{NodeID: "auth-01", Payload: nil},
		{NodeID: "auth-02", Payload: []byte("not json")},
		tokenResponse(t, "auth-03", &minter.JoinToken{
			Token:     "tok-3",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		}),
		tokenResponse(t, "auth-04", &minter.JoinToken{
			Token:     "tok-4",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		}),
	}

	token, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)
	assert.Equal(t, "tok-3", token)
}

func TestNodeAuthToken_PublishErrorIsTokenUnavailable(t *testing.T) {
	bus := &fakeBus{err: errors.New("mesh unreachable")}
	oracle, _ := testOracle(t, bus)

	_, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.Error(t, err)
	assert.ErrorIs(t, err, tokenoracle.ErrTokenUnavailable)
}

func TestNodeAuthToken_Idempotence(t *testing.T) {
	// Two calls in immediate succession: one broadcast, identical results.
	bus := &fakeBus{}
	oracle, _ := testOracle(t, bus)
	bus.responses = []peerbus.Response{tokenResponse(t, "auth-01", &minter.JoinToken{
		Token:     "tok-123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})}

	first, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)
	second, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, bus.publishes)
}

func TestNodeAuthToken_InvalidSelector(t *testing.T) {
	bus := &fakeBus{}
	oracle, _ := testOracle(t, bus)

	_, err := oracle.NodeAuthToken(context.Background(), peerbus.Selector{})
	require.Error(t, err)
	assert.Equal(t, 0, bus.publishes)
}

func TestNodeAuthToken_CachePersistFailure(t *testing.T) {
	// The cache path's parent is a file, so persisting must fail; the token
	// is still returned alongside ErrCachePersist.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("in the way"), 0o600))

	bus := &fakeBus{responses: []peerbus.Response{}}
	config := &Config{
		IdentityKeyPath: filepath.Join(dir, "node.key"),
		CacheTokenPath:  filepath.Join(blocker, "auth_token"),
		DisableLock:     true,
	}
	oracle, err := New(config, bus)
	require.NoError(t, err)

	payload, err := json.Marshal(&minter.JoinToken{
		Token:     "tok-123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	bus.responses = []peerbus.Response{{NodeID: "auth-01", Payload: payload}}

	token, err := oracle.NodeAuthToken(context.Background(), authSelector())
	assert.Equal(t, "tok-123", token)
	require.Error(t, err)
	assert.ErrorIs(t, err, tokenoracle.ErrCachePersist)
}

func TestNodeAuthToken_LockReleased(t *testing.T) {
	// The scoped lock must not survive the call.
	bus := &fakeBus{responses: []peerbus.Response{}}
	oracle, config := testOracle(t, bus)
	bus.responses = []peerbus.Response{tokenResponse(t, "auth-01", &minter.JoinToken{
		Token:     "tok-123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})}

	_, err := oracle.NodeAuthToken(context.Background(), authSelector())
	require.NoError(t, err)

	_, err = os.Stat(config.LockPath)
	assert.True(t, os.IsNotExist(err), "lock file should be removed after the call")
}
