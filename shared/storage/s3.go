package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// DefaultUploadExpiry bounds how long a presigned upload URL stays valid
const DefaultUploadExpiry = 15 * time.Minute

var allowedAgreementTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// Upload is a presigned PUT the client performs directly against the bucket
type Upload struct {
	URL         string    `json:"upload_url"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AgreementStore issues upload URLs for lease agreement documents
type AgreementStore interface {
	PresignAgreementUpload(ctx context.Context, leaseID uuid.UUID, contentType string) (*Upload, error)
}

// S3Store presigns uploads into one bucket
type S3Store struct {
	client *s3.S3
	bucket string
	expiry time.Duration
}

// NewS3Store creates a store from an AWS session
func NewS3Store(sess *session.Session, bucket string) *S3Store {
	return &S3Store{
		client: s3.New(sess),
		bucket: bucket,
		expiry: DefaultUploadExpiry,
	}
}

// AgreementKey builds the object key for a lease agreement
func AgreementKey(leaseID uuid.UUID, extension string) string {
	return path.Join("leases", leaseID.String(), "agreement-"+uuid.NewString()+extension)
}

// PresignAgreementUpload returns a PUT URL restricted to the given content type
func (s *S3Store) PresignAgreementUpload(ctx context.Context, leaseID uuid.UUID, contentType string) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedAgreementTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported agreement content type %q", contentType)
	}

	key := AgreementKey(leaseID, ext)
	req, _ := s.client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	req.SetContext(ctx)

	url, err := req.Presign(s.expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign agreement upload: %w", err)
	}

	return &Upload{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		ExpiresAt:   time.Now().UTC().Add(s.expiry),
	}, nil
}

// IsSupportedAgreementType reports whether an upload of contentType would be accepted
func IsSupportedAgreementType(contentType string) bool {
	_, ok := allowedAgreementTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}
