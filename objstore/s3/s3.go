// Package s3 implements objstore.FileSystem against Amazon S3 (and
// S3-compatible stores) using the AWS SDK for Go v2.
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/opsmlerr"
)

// Backend is an objstore.FileSystem backed by a single S3 bucket.
type Backend struct {
	client *s3.Client
	presig *s3.PresignClient
	bucket string
}

// New loads the default AWS credential chain and returns a Backend for
// bucket.
func New(ctx context.Context, bucket string, optFns ...func(*config.LoadOptions) error) (*Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "load aws config")
	}
	client := s3.NewFromConfig(cfg)
	return &Backend{
		client: client,
		presig: s3.NewPresignClient(client),
		bucket: bucket,
	}, nil
}

var _ objstore.FileSystem = (*Backend)(nil)

func (b *Backend) Find(ctx context.Context, prefix string) ([]string, error) {
	infos, err := b.FindInfo(ctx, prefix)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.Path
	}
	return paths, nil
}

func (b *Backend) FindInfo(ctx context.Context, prefix string) ([]objstore.FileInfo, error) {
	var out []objstore.FileInfo
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "list objects under %s", prefix)
		}
		for _, obj := range page.Contents {
			out = append(out, objstore.FileInfo{
				Path:         aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (b *Backend) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, opsmlerr.New(opsmlerr.NotFound, "object %s not found", path)
		}
		return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "get %s", path)
	}
	return out.Body, nil
}

func (b *Backend) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.StorageErr, err, "buffer upload body for %s", path)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.StorageErr, err, "put %s", path)
	}
	return n, nil
}

func (b *Backend) Rm(ctx context.Context, path string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "delete %s", path)
	}
	return nil
}

func (b *Backend) Copy(ctx context.Context, src, dst string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		CopySource: aws.String(b.bucket + "/" + src),
		Key:        aws.String(dst),
	})
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "copy %s to %s", src, dst)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, opsmlerr.Wrap(opsmlerr.StorageErr, err, "head %s", path)
	}
	return true, nil
}

func (b *Backend) GeneratePresignedURL(ctx context.Context, path string, ttl time.Duration, method string) (string, error) {
	switch strings.ToUpper(method) {
	case "GET":
		req, err := b.presig.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(path),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", opsmlerr.Wrap(opsmlerr.StorageErr, err, "presign get %s", path)
		}
		return req.URL, nil
	case "PUT":
		req, err := b.presig.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(path),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", opsmlerr.Wrap(opsmlerr.StorageErr, err, "presign put %s", path)
		}
		return req.URL, nil
	default:
		return "", opsmlerr.New(opsmlerr.InvalidRequest, "unsupported presign method %q", method)
	}
}

func (b *Backend) CreateMultipartUpload(ctx context.Context, path string) (string, error) {
	out, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return "", opsmlerr.Wrap(opsmlerr.StorageErr, err, "create multipart upload for %s", path)
	}
	return aws.ToString(out.UploadId), nil
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey")
}

// UploadPart uploads one part of an in-progress multipart upload, giving
// Backend the github.com/opsml/registry/upload.PartUploader shape.
func (b *Backend) UploadPart(ctx context.Context, path, uploadID string, partNumber int, data []byte) (string, error) {
	out, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(path),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(partNumber + 1)), // S3 part numbers are 1-based
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return "", opsmlerr.Wrap(opsmlerr.StorageErr, err, "upload part %d for %s", partNumber, path)
	}
	return aws.ToString(out.ETag), nil
}

// CompleteMultipartUpload finalizes the upload, assembling parts in the
// order etags was built (sequential, starting at part 1).
func (b *Backend) CompleteMultipartUpload(ctx context.Context, path, uploadID string, etags []string) error {
	parts := make([]types.CompletedPart, len(etags))
	for i, etag := range etags {
		parts[i] = types.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int32(int32(i + 1)),
		}
	}
	_, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(b.bucket),
		Key:             aws.String(path),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "complete multipart upload for %s", path)
	}
	return nil
}

// AbortMultipartUpload releases any parts already uploaded for uploadID.
func (b *Backend) AbortMultipartUpload(ctx context.Context, path, uploadID string) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(path),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "abort multipart upload for %s", path)
	}
	return nil
}
