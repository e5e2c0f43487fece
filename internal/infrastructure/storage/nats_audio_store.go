package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"go.uber.org/zap"
)

const headerContentType = "Content-Type"

var _ voice.AudioStore = (*NATSAudioStore)(nil)

// NATSAudioStore keeps audio in a JetStream object store bucket. Objects are
// not reachable over HTTP directly, so URLs point at the API's audio route.
type NATSAudioStore struct {
	store   nats.ObjectStore
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// NewNATSAudioStore creates the bucket or binds to an existing one
func NewNATSAudioStore(js nats.JetStreamContext, bucket, baseURL string, logger *zap.Logger) (*NATSAudioStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Narration audio",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to object store bucket %q: %w", bucket, err)
		}
	}

	return &NATSAudioStore{
		store:   store,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// PutAudio implements voice.AudioStore
func (n *NATSAudioStore) PutAudio(ctx context.Context, key string, audio *voice.Audio) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	if audio == nil || len(audio.Data) == 0 {
		return "", errors.New("audio is empty")
	}

	headers := nats.Header{}
	headers.Set(headerContentType, audio.ContentType)
	_, err := n.store.Put(&nats.ObjectMeta{Name: key, Headers: headers}, bytes.NewReader(audio.Data), nats.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to put %s to bucket %s: %w", key, n.bucket, err)
	}
	n.logger.Debug("Audio stored", zap.String("key", key), zap.Int("bytes", len(audio.Data)))

	return n.baseURL + "/" + key, nil
}

// GetAudio returns the stored audio for key, or shared.ErrNotFound
func (n *NATSAudioStore) GetAudio(ctx context.Context, key string) (*voice.Audio, error) {
	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s from bucket %s: %w", key, n.bucket, err)
	}
	defer obj.Close()

	info, err := obj.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	contentType := "audio/mpeg"
	if info.Headers != nil && info.Headers.Get(headerContentType) != "" {
		contentType = info.Headers.Get(headerContentType)
	}
	return &voice.Audio{Data: data, ContentType: contentType}, nil
}
