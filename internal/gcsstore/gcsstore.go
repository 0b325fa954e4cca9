// Package gcsstore keeps an audit copy of every ingested RTGS export file in
// Google Cloud Storage and lets the CLI ingest directly from gs:// URIs.
package gcsstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// ObjectName builds the staging object path for an uploaded file:
// imports/YYYY/MM/DD/<uuid>-<filename>.
func ObjectName(filename string, now time.Time) string {
	return fmt.Sprintf("imports/%s/%s-%s", now.Format("2006/01/02"), uuid.NewString(), path.Base(filename))
}

// StageBytes writes the raw source file to the bucket and returns its
// gs:// URI. It assumes Application Default Credentials are configured.
func StageBytes(ctx context.Context, bucketName, objectName string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("StageBytes: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("StageBytes: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("StageBytes: finalizing upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}

// Fetch downloads the file bytes behind a gs:// URI.
func Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: opening %s: %w", gcsURI, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading %s: %w", gcsURI, err)
	}
	return data, nil
}

// FilenameFromURI extracts the bare filename from a gs:// URI.
func FilenameFromURI(gcsURI string) string {
	_, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return gcsURI
	}
	return path.Base(objectPath)
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
