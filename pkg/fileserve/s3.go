package fileserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/vango-dev/duplex/pkg/conn"
	"github.com/vango-dev/duplex/pkg/httpmsg"
)

// ObjectGetter is the subset of *s3.Client used by S3Handler.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DefaultMaxObjectSize bounds the size of an object served by S3Handler.
const DefaultMaxObjectSize = 32 << 20

// S3Handler serves objects from an S3 bucket. The request path, without its
// leading slash, is appended to the key prefix.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	h := fileserve.S3(s3.NewFromConfig(cfg), "my-bucket", "site/")
type S3Handler struct {
	client  ObjectGetter
	bucket  string
	prefix  string
	maxSize int64
	logger  *slog.Logger
}

// S3 creates a handler for bucket.
func S3(client ObjectGetter, bucket, prefix string) *S3Handler {
	return &S3Handler{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: DefaultMaxObjectSize,
		logger:  slog.Default().With("component", "s3", "bucket", bucket),
	}
}

// WithMaxSize sets the largest object that will be served.
func (h *S3Handler) WithMaxSize(n int64) *S3Handler {
	h.maxSize = n
	return h
}

// Handle implements conn.Handler. A path ending in "/" serves index.html.
// Missing objects produce 404 and any other failure 500.
func (h *S3Handler) Handle(ctx context.Context, c *conn.Conn, req *httpmsg.Request, rep *httpmsg.Reply) bool {
	if !checkURI(req, rep) {
		return false
	}

	name := requestPath(req.URI)
	if strings.HasSuffix(name, "/") {
		name += "index.html"
	}
	key := h.prefix + strings.TrimPrefix(name, "/")

	body, contentType, err := h.fetch(ctx, key)
	if err != nil {
		if isNotFound(err) {
			*rep = httpmsg.StockReply(httpmsg.StatusNotFound)
			return false
		}
		h.logger.Error("get object", "key", key, "error", err)
		*rep = httpmsg.StockReply(httpmsg.StatusInternalServerError)
		return false
	}

	if contentType == "" {
		contentType = MimeType(extension(name))
	}
	setFile(rep, contentType, body)
	return true
}

func (h *S3Handler) fetch(ctx context.Context, key string) ([]byte, string, error) {
	out, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()

	r := io.Reader(out.Body)
	if h.maxSize > 0 {
		r = io.LimitReader(out.Body, h.maxSize+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("s3 read failed: %w", err)
	}
	if h.maxSize > 0 && int64(len(body)) > h.maxSize {
		return nil, "", fmt.Errorf("s3 object %s exceeds %d bytes", key, h.maxSize)
	}
	return body, aws.ToString(out.ContentType), nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
