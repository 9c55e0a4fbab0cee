package sweep

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// S3Archiver copies expired articles to an S3 bucket before the sweeper
// purges them from the spool.
type S3Archiver struct {
	config *sc.Config
	client *s3.Client
}

// NewS3Archiver returns nil when no bucket is configured: the sweeper
// treats a nil archiver as "purge without a copy".
func NewS3Archiver(ctx context.Context, cfg *sc.Config) (*S3Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,     // MINIO_ROOT_USER
			cfg.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
	})

	return &S3Archiver{config: cfg, client: client}, nil
}

// Archive stores the article under <group>/<message-id> in RFC 5536 wire
// form, headers first, blank line, body.
func (ar *S3Archiver) Archive(ctx context.Context, group string, a *models.Article) error {
	bucket := ar.config.S3Bucket
	key := StorageKey(group, a.MessageID())

	var buf bytes.Buffer
	for _, h := range a.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(a.Body)

	_, err := putObject(ar.client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("archiving %s: %w", a.MessageID(), err)
	}
	return nil
}

// StorageKey builds the object key for an archived article. Angle brackets
// and slashes in the message id are stripped so the id cannot escape the
// group prefix.
func StorageKey(group, messageID string) string {
	id := strings.Trim(messageID, "<>")
	id = strings.ReplaceAll(id, "/", "_")
	return group + "/" + id
}
