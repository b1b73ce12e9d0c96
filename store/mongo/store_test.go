package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/alkem-io/server-sub004/lifecycle/lifecycletest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testURLEnv = "LIFECYCLE_TEST_MONGO_URL"

func connectTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv(testURLEnv)
	if url == "" {
		t.Skipf("%s not set", testURLEnv)
	}

	store, err := Connect(t.Context(), Config{
		ConnectionURL: url,
		Database:      "lifecycle_test",
		Collection:    "records_" + uuid.NewString(),
		RetryAttempts: 1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		_ = store.coll.Drop(ctx)
		_ = store.Close(ctx)
	})

	return store
}

func TestStorageContract(t *testing.T) {
	t.Parallel()

	lifecycletest.RunStorageContract(t, connectTestStore(t))
}

func TestEngineContract(t *testing.T) {
	t.Parallel()

	lifecycletest.RunEngineContract(t, connectTestStore(t))
}

func TestCloseWithoutClient(t *testing.T) {
	t.Parallel()

	require.NoError(t, New(nil, nil).Close(t.Context()))
}
