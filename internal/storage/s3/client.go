// Package s3 implements the RemoteClient contract over an S3 bucket.
//
// Remote paths map to object keys without the leading slash. Folders are
// zero-byte marker objects with a trailing slash, plus whatever implicit
// prefixes existing objects create. The object ETag serves as the
// revision token; uploads present it as an If-Match precondition so a
// concurrent writer fails the same way a Dropbox revision conflict does.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/Mayank-software/dropboxfs/internal/config"
	"github.com/Mayank-software/dropboxfs/pkg/errors"
	"github.com/Mayank-software/dropboxfs/pkg/types"
)

const component = "s3"

// api is the slice of the S3 SDK surface the client uses.
type api interface {
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *awss3.CopyObjectInput, opts ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Client exposes one bucket as an account-scoped storage tree.
type Client struct {
	api    api
	bucket string
	logger *slog.Logger
}

// NewClient creates an S3 client from configuration.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "s3 bucket is required").
			WithComponent(component)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigLoad, "failed to load AWS config").
			WithComponent(component).WithCause(err)
	}

	sdk := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{
		api:    sdk,
		bucket: cfg.Bucket,
		logger: slog.Default().With("component", component, "bucket", cfg.Bucket),
	}, nil
}

// pathToKey converts a normalized remote path to an object key.
func pathToKey(path string) string {
	return strings.TrimPrefix(path, "/")
}

// folderPrefix is the listing prefix for a folder path; "" for the root.
func folderPrefix(path string) string {
	key := pathToKey(path)
	if key == "" {
		return ""
	}
	return key + "/"
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// GetMetadata returns the entry at path. Folders are recognized by their
// marker object or, failing that, by any object under the prefix.
func (c *Client) GetMetadata(ctx context.Context, path string) (*types.Metadata, error) {
	key := pathToKey(path)
	if key == "" {
		return &types.Metadata{Path: "", Name: "/", IsDir: true}, nil
	}

	head, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return &types.Metadata{
			Path:     path,
			Name:     key[strings.LastIndex(key, "/")+1:],
			Size:     aws.ToInt64(head.ContentLength),
			Modified: aws.ToTime(head.LastModified),
			Rev:      trimETag(aws.ToString(head.ETag)),
		}, nil
	}
	if !isNotFound(err) {
		return nil, c.translateError(err, "get_metadata", path)
	}

	// No object at the key; the path may still name a folder.
	list, err := c.api.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, c.translateError(err, "get_metadata", path)
	}
	if aws.ToInt32(list.KeyCount) > 0 {
		return &types.Metadata{
			Path:  path,
			Name:  key[strings.LastIndex(key, "/")+1:],
			IsDir: true,
		}, nil
	}

	return nil, errors.NotFound(path).WithComponent(component).WithOperation("get_metadata")
}

// ListFolder returns the immediate children of a folder using a delimited
// listing. The folder's own marker object is skipped.
func (c *Client) ListFolder(ctx context.Context, path string) ([]types.Metadata, error) {
	prefix := folderPrefix(path)

	var entries []types.Metadata
	var token *string
	for {
		out, err := c.api.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, c.translateError(err, "list_folder", path)
		}

		for _, cp := range out.CommonPrefixes {
			p := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			entries = append(entries, types.Metadata{
				Path:  "/" + p,
				Name:  p[strings.LastIndex(p, "/")+1:],
				IsDir: true,
			})
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, types.Metadata{
				Path:     "/" + key,
				Name:     key[strings.LastIndex(key, "/")+1:],
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
				Rev:      trimETag(aws.ToString(obj.ETag)),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			return entries, nil
		}
		token = out.NextContinuationToken
	}
}

// Download returns the full object content and its ETag.
func (c *Client) Download(ctx context.Context, path string) ([]byte, string, error) {
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(pathToKey(path)),
	})
	if err != nil {
		return nil, "", c.translateError(err, "download", path)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", errors.NewError(errors.ErrCodeNetworkError, "failed to read object body").
			WithComponent(component).WithOperation("download").WithPath(path).WithCause(err)
	}
	return data, trimETag(aws.ToString(out.ETag)), nil
}

// Upload writes the full object content. A non-empty rev becomes an
// If-Match precondition; an empty rev uses If-None-Match so an existing
// object rejects the write.
func (c *Client) Upload(ctx context.Context, path string, data []byte, rev string) (string, error) {
	in := &awss3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(pathToKey(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	}
	if rev != "" {
		in.IfMatch = aws.String(`"` + rev + `"`)
	} else {
		in.IfNoneMatch = aws.String("*")
	}

	out, err := c.api.PutObject(ctx, in)
	if err != nil {
		return "", c.translateError(err, "upload", path)
	}

	c.logger.Debug("uploaded object", "path", path, "size", len(data))
	return trimETag(aws.ToString(out.ETag)), nil
}

// Move relocates an entry by copy and delete, folders recursively.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	if err := c.Copy(ctx, src, dst); err != nil {
		return err
	}
	return c.Delete(ctx, src)
}

// Copy duplicates an entry server-side, folders recursively.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	srcKey := pathToKey(src)
	dstKey := pathToKey(dst)

	_, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(srcKey),
	})
	if err == nil {
		return c.copyObject(ctx, srcKey, dstKey, src)
	}
	if !isNotFound(err) {
		return c.translateError(err, "copy", src)
	}

	// Folder copy: every key under the prefix moves to the new prefix.
	keys, err := c.keysUnder(ctx, srcKey+"/")
	if err != nil {
		return c.translateError(err, "copy", src)
	}
	if len(keys) == 0 {
		return errors.NotFound(src).WithComponent(component).WithOperation("copy")
	}
	for _, key := range keys {
		target := dstKey + "/" + strings.TrimPrefix(key, srcKey+"/")
		if err := c.copyObject(ctx, key, target, src); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an entry, folders recursively.
func (c *Client) Delete(ctx context.Context, path string) error {
	key := pathToKey(path)

	_, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		_, err = c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return c.translateError(err, "delete", path)
		}
		return nil
	}
	if !isNotFound(err) {
		return c.translateError(err, "delete", path)
	}

	keys, err := c.keysUnder(ctx, key+"/")
	if err != nil {
		return c.translateError(err, "delete", path)
	}
	if len(keys) == 0 {
		return errors.NotFound(path).WithComponent(component).WithOperation("delete")
	}
	for _, k := range keys {
		_, err = c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(k),
		})
		if err != nil {
			return c.translateError(err, "delete", path)
		}
	}
	return nil
}

// CreateFolder writes the zero-byte folder marker.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	_, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(pathToKey(path) + "/"),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return c.translateError(err, "create_folder", path)
	}
	return nil
}

func (c *Client) copyObject(ctx context.Context, srcKey, dstKey, path string) error {
	_, err := c.api.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(c.bucket + "/" + srcKey),
	})
	if err != nil {
		return c.translateError(err, "copy", path)
	}
	return nil
}

// keysUnder lists every key under a prefix, following continuation tokens.
func (c *Client) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := c.api.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

// isNotFound reports whether err is any of the SDK's absent-object shapes.
func isNotFound(err error) bool {
	if isErrorType[*s3types.NoSuchKey](err) || isErrorType[*s3types.NotFound](err) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	}
	return false
}

// isErrorType checks if an error is of a specific type.
func isErrorType[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}

func (c *Client) translateError(err error, operation, path string) error {
	switch {
	case isNotFound(err):
		return errors.NotFound(path).WithComponent(component).WithOperation(operation)
	case isPreconditionFailed(err):
		return errors.Conflict(path).WithComponent(component).WithOperation(operation)
	case isErrorType[*s3types.NoSuchBucket](err):
		return errors.NewError(errors.ErrCodeRemoteFailure,
			fmt.Sprintf("bucket not found: %s", c.bucket)).
			WithComponent(component).WithOperation(operation).WithCause(err)
	default:
		return errors.NewError(errors.ErrCodeRemoteFailure, "request failed").
			WithComponent(component).WithOperation(operation).WithPath(path).WithCause(err)
	}
}

// isPreconditionFailed recognizes a rejected If-Match or If-None-Match.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "PreconditionFailed" ||
			apiErr.ErrorCode() == "ConditionalRequestConflict"
	}
	return false
}
