// Package archive stores generated company menu documents in object
// storage so past distributions survive re-activation of a week.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store writes company menu JSON documents to a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and ensures the archive bucket exists. The
// caller proceeds without archiving when the connection fails.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// PutCompanyMenu archives one generated company menu document. Objects
// are keyed by week and recipient so re-activations overwrite the
// previous snapshot for the same distribution.
func (s *Store) PutCompanyMenu(ctx context.Context, companyID, buildingID, startDate string, doc []byte) error {
	key := fmt.Sprintf("company-menus/%s/%s/%s.json", startDate, companyID, buildingID)
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(doc), int64(len(doc)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PutCompanyMenuAsync archives in the background and logs failures.
// Activation must not fail because the archive is down.
func (s *Store) PutCompanyMenuAsync(companyID, buildingID, startDate string, doc []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.PutCompanyMenu(ctx, companyID, buildingID, startDate, doc); err != nil {
			log.Printf("archive: company menu %s/%s week %s: %v", companyID, buildingID, startDate, err)
		}
	}()
}
