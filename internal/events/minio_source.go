package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// VendorResultEvent announces a vendor result file dropped into the inbox.
type VendorResultEvent struct {
	ObjectKey string
	FileName  string
	EventName string
}

type VendorResultSource interface {
	Run(ctx context.Context, handler func(context.Context, VendorResultEvent) error) error
}

type MinioVendorInboxSource struct {
	client *minio.Client
	bucket string
	prefix string
	suffix string
}

func NewMinioVendorInboxSource(client *minio.Client, bucket, prefix string) *MinioVendorInboxSource {
	return &MinioVendorInboxSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		suffix: ".json",
	}
}

// Run blocks until ctx is done or the notification stream fails. A handler error stops the loop.
func (s *MinioVendorInboxSource) Run(ctx context.Context, handler func(context.Context, VendorResultEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, s.suffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				event, err := toVendorResultEvent(s.prefix, record.S3.Object.Key, record.EventName)
				if err != nil {
					continue
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func toVendorResultEvent(prefix, encodedKey, eventName string) (VendorResultEvent, error) {
	objectKey, err := decodeObjectKey(encodedKey)
	if err != nil {
		return VendorResultEvent{}, err
	}
	fileName, err := parseInboxKey(prefix, objectKey)
	if err != nil {
		return VendorResultEvent{}, err
	}
	return VendorResultEvent{ObjectKey: objectKey, FileName: fileName, EventName: eventName}, nil
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseInboxKey returns the file name of a .json object directly or indirectly under prefix.
func parseInboxKey(prefix, objectKey string) (string, error) {
	cleaned := strings.TrimLeft(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	if !strings.HasPrefix(cleaned, prefix) {
		return "", fmt.Errorf("object key %q is outside inbox %q", objectKey, prefix)
	}
	rest := strings.Trim(strings.TrimPrefix(cleaned, prefix), "/")
	if rest == "" {
		return "", fmt.Errorf("object key %q has no file name", objectKey)
	}
	if !strings.HasSuffix(rest, ".json") {
		return "", fmt.Errorf("object key %q is not a json file", objectKey)
	}
	return path.Base(rest), nil
}
