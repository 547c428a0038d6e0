package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/pollypress/internal/objectstore"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJetStream(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return jetstreamContext
}

func TestNatsObjectStore_RoundTrip(t *testing.T) {
	t.Parallel()

	jetstreamContext := createTestJetStream(t)

	store, err := objectstore.New(jetstreamContext, "input-bucket")
	require.NoError(t, err)

	ctx := context.Background()

	exists, err := store.Exists(ctx, "output-bucket", "output/abc.mp3")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Upload(ctx, "output-bucket", "output/abc.mp3", []byte("ID3 audio"), "audio/mpeg")
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "output-bucket", "output/abc.mp3")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Download(ctx, "output-bucket", "output/abc.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3 audio"), data)

	objectStore, err := jetstreamContext.ObjectStore("output-bucket")
	require.NoError(t, err)

	info, err := objectStore.GetInfo("output/abc.mp3")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", info.Headers.Get("Content-Type"))
}

func TestNatsObjectStore_DownloadMissing(t *testing.T) {
	t.Parallel()

	store, err := objectstore.New(createTestJetStream(t))
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "input-bucket", "input/missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input/missing.txt")
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	jetstreamContext := createTestJetStream(t)

	first, err := objectstore.New(jetstreamContext, "input-bucket")
	require.NoError(t, err)

	err = first.Upload(context.Background(), "input-bucket", "input/a.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)

	second, err := objectstore.New(jetstreamContext, "input-bucket")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "input-bucket", "input/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}
