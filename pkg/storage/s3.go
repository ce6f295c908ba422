package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Options configures S3 stores.
type S3Options struct {
	Region string

	// Endpoint overrides the AWS endpoint, e.g. for an S3-compatible store.
	Endpoint     string
	UsePathStyle bool

	// MaxAttempts bounds retries of transient failures (0 = SDK default).
	MaxAttempts int

	// MaxListKeys is the page size of listings.
	MaxListKeys int32

	// MaxSize is the upload limit in bytes (0 = no limit).
	MaxSize int64

	// URLExpiry is how long view links stay valid.
	URLExpiry time.Duration
}

// S3Store stores résumés in AWS S3.
//
// Example usage:
//
//	store := storage.NewS3Store(storage.S3Options{Region: "us-west-1"}, creds)
//	objs, err := store.List(ctx, "beachbev-resumes", storage.FolderPrefix("42"))
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    S3Options
}

// NewS3Store creates a store using static session credentials.
func NewS3Store(opts S3Options, creds Credentials) *S3Store {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 15 * time.Minute
	}

	cfg := aws.Config{
		Region: opts.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     creds.AccessKeyID,
					SecretAccessKey: creds.SecretAccessKey,
					SessionToken:    creds.SessionToken,
					Source:          "beachbev",
				}, nil
			})),
	}
	if opts.MaxAttempts > 0 {
		cfg.Retryer = func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), opts.MaxAttempts)
		}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		opts:    opts,
	}
}

// S3Factory returns a Factory opening S3 stores with opts.
func S3Factory(opts S3Options) Factory {
	return func(ctx context.Context, creds Credentials) (Store, error) {
		if !creds.Valid() {
			return nil, &Error{Op: "open", Err: ErrNoCredentials}
		}
		return NewS3Store(opts, creds), nil
	}
}

// List returns every object under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:       aws.String(bucket),
		EncodingType: types.EncodingTypeUrl,
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if s.opts.MaxListKeys > 0 {
		input.MaxKeys = aws.Int32(s.opts.MaxListKeys)
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapS3("list", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, Object{
				Key:          DecodeKey(*obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// Get downloads an object, up to MaxObjectSize bytes.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (*File, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapS3("get", key, err)
	}
	defer out.Body.Close()

	data, err := readLimited(out.Body, MaxObjectSize)
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	return &File{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}

// Put uploads r under key. The body is buffered so the SDK can sign and
// retry it.
func (s *S3Store) Put(ctx context.Context, bucket, key, contentType string, size int64, r io.Reader) error {
	if s.opts.MaxSize > 0 && size > s.opts.MaxSize {
		return &Error{Op: "put", Key: key, Err: ErrTooLarge}
	}
	data, err := readLimited(r, s.opts.MaxSize)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return wrapS3("put", key, err)
	}
	return nil
}

// URL presigns a GET for key.
func (s *S3Store) URL(ctx context.Context, bucket, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.opts.URLExpiry))
	if err != nil {
		return "", wrapS3("presign", key, err)
	}
	return req.URL, nil
}

func wrapS3(op, key string, err error) error {
	e := &Error{Op: op, Key: key, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Code = apiErr.ErrorCode()
		switch e.Code {
		case "NoSuchKey", "NotFound":
			e.Err = errors.Join(ErrNotFound, err)
		}
	}
	return e
}
