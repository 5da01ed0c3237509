package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog/log"
)

// Client archives audit and reset reports to S3 so operator-facing
// diagnostics survive beyond the HTTP response that carried them.
type Client struct {
	session  *session.Session
	bucket   string
	region   string
	uploader *s3manager.Uploader
}

func NewClient(region, bucket string) *Client {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create AWS session")
	}

	log.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("AWS session created successfully")

	return &Client{
		session:  sess,
		bucket:   bucket,
		region:   region,
		uploader: s3manager.NewUploader(sess),
	}
}

// ArchiveReport uploads a report as JSON under
// reports/<tenant>/<pass>_<unix>.json. Archiving is best-effort:
// failures are logged, never propagated to the audit caller.
func (c *Client) ArchiveReport(ctx context.Context, tenantID, pass string, report any) {
	key := fmt.Sprintf("reports/%s/%s_%d.json", tenantID, pass, time.Now().Unix())

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Error().
			Err(err).
			Str("tenant_id", tenantID).
			Str("pass", pass).
			Msg("Failed to serialize report for archiving")
		return
	}

	uploadInput := &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	}

	if _, err := c.uploader.UploadWithContext(ctx, uploadInput); err != nil {
		log.Error().
			Err(err).
			Str("bucket", c.bucket).
			Str("key", key).
			Msg("Report upload to S3 failed")
		return
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Str("tenant_id", tenantID).
		Str("pass", pass).
		Msg("Report archived to S3")
}
