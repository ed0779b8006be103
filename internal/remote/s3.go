package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/lfc-dev/lfc/internal/cache"
)

// s3Backend serves an "s3://bucket/prefix" remote. The object key layout
// mirrors the local cache's two-level hex directories so a bucket
// populated by lfc is just as inspectable as a `local` remote.
// Credentials come from the SDK's default chain (env vars, shared config,
// IAM role): no lfc-specific credentials provider is needed here.
type s3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Backend(bucket, prefix string) (*s3Backend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("remote: s3 URL missing bucket")
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, classify(KindPermanent, fmt.Errorf("remote: loading AWS config: %w", err))
	}
	return &s3Backend{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (b *s3Backend) key(h cache.Hash) string {
	hex := h.String()
	parts := []string{hex[:2], hex[2:]}
	if b.prefix != "" {
		parts = append([]string{b.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (b *s3Backend) Has(ctx context.Context, h cache.Hash) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(h)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, classify(classifyAWSErr(err), err)
}

func (b *s3Backend) Get(ctx context.Context, h cache.Hash) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(h)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, classify(KindMissing, err)
		}
		return nil, classify(classifyAWSErr(err), err)
	}
	return out.Body, nil
}

func (b *s3Backend) Put(ctx context.Context, h cache.Hash, r io.Reader, size int64) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key(h)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return classify(classifyAWSErr(err), err)
	}
	return nil
}

func (b *s3Backend) List(ctx context.Context) (<-chan cache.Hash, <-chan error) {
	hashes := make(chan cache.Hash)
	errc := make(chan error, 1)

	go func() {
		defer close(hashes)
		defer close(errc)

		var token *string
		listPrefix := b.prefix
		if listPrefix != "" {
			listPrefix += "/"
		}
		for {
			out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(b.bucket),
				Prefix:            aws.String(listPrefix),
				ContinuationToken: token,
			})
			if err != nil {
				errc <- classify(classifyAWSErr(err), err)
				return
			}
			for _, obj := range out.Contents {
				key := strings.TrimPrefix(*obj.Key, listPrefix)
				hex := strings.ReplaceAll(key, "/", "")
				h, err := cache.ParseHash(hex)
				if err != nil {
					continue
				}
				select {
				case hashes <- h:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if out.IsTruncated == nil || !*out.IsTruncated {
				return
			}
			token = out.NextContinuationToken
		}
	}()

	return hashes, errc
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}

func classifyAWSErr(err error) ErrorKind {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == 401 || code == 403:
			return KindAuth
		case code == 404:
			return KindMissing
		case code >= 500:
			return KindTransient
		case code >= 400:
			return KindPermanent
		}
	}
	return KindTransient
}
