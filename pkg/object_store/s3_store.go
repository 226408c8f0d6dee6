package object_store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

const defaultHeadConcurrency = 8

// S3Store talks to any S3-compatible endpoint.
type S3Store struct {
	client          *s3.Client
	headConcurrency int
}

// NewS3Store builds a client from opts. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	concurrency := opts.HeadConcurrency
	if concurrency <= 0 {
		concurrency = defaultHeadConcurrency
	}

	return &S3Store{client: client, headConcurrency: concurrency}, nil
}

// List pages through the bucket and fills content types with bounded HEAD requests.
func (s *S3Store) List(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{
				Name: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.Updated = *obj.LastModified
				info.Created = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.headConcurrency)
	for i := range objects {
		g.Go(func() error {
			head, err := s.client.HeadObject(gctx, &s3.HeadObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(objects[i].Name),
			})
			if err != nil {
				// the listing is still useful without a content type
				if errors.Is(translateError(err), ErrObjectNotFound) {
					return nil
				}
				return translateError(err)
			}
			objects[i].ContentType = aws.ToString(head.ContentType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return objects, nil
}

// Stat issues a HEAD request for one object.
func (s *S3Store) Stat(ctx context.Context, bucket, name string) (*ObjectInfo, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, translateError(err)
	}

	info := &ObjectInfo{
		Name:        name,
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: aws.ToString(head.ContentType),
	}
	if head.LastModified != nil {
		info.Updated = *head.LastModified
		info.Created = *head.LastModified
	}
	return info, nil
}

// Open starts a GET and returns the body.
func (s *S3Store) Open(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, translateError(err)
	}
	return out.Body, nil
}

// Put uploads data in a single request.
func (s *S3Store) Put(ctx context.Context, bucket, name, contentType string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return translateError(err)
	}
	return nil
}

// Delete removes the object after checking it exists, since S3 deletes are
// silent for missing keys.
func (s *S3Store) Delete(ctx context.Context, bucket, name string) error {
	if _, err := s.Stat(ctx, bucket, name); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	}); err != nil {
		return translateError(err)
	}
	return nil
}

// translateError maps provider errors onto the package sentinels.
func translateError(err error) error {
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, err.Error())
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, err.Error())
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, err.Error())
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return fmt.Errorf("%w: %s", ErrBucketNotFound, apiErr.ErrorMessage())
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrObjectNotFound, apiErr.ErrorMessage())
		}
	}
	return err
}
