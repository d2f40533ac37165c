// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"afreco/internal/objectstore"
)

// startTestServer starts an in-memory NATS server for testing purposes.
func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestStoreUploadDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "render-jobs-test")
	require.NoError(t, err)

	ctx := context.Background()
	key := "jobs/entry-map.json"
	uploadData := []byte(`[{"index":1,"start":"00:00:00,000","end":"00:00:02,000","text":"こんにちは"}]`)

	err = store.Upload(ctx, key, uploadData)
	require.NoError(t, err)

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)

	require.Equal(t, uploadData, downloadData)
}

func TestNewBindsToExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(jetstreamContext, "audio-artifacts-test")
	require.NoError(t, err)

	err = first.Upload(context.Background(), "track.wav", []byte{0x52, 0x49, 0x46, 0x46})
	require.NoError(t, err)

	// A second New against the same bucket must bind, not fail.
	second, err := objectstore.New(jetstreamContext, "audio-artifacts-test")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "track.wav")
	require.NoError(t, err)
	require.Equal(t, []byte{0x52, 0x49, 0x46, 0x46}, data)
}
