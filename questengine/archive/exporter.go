// Package archive uploads end-of-day snapshots of the ledger and quest set
// to the platform's S3-compatible object storage, where the profile
// statistics surface reads them from.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/studyquestapp/studyquest/questengine/activity"
	"github.com/studyquestapp/studyquest/questengine/quest"
)

const maxConcurrentUploads = 4

type Exporter struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewExporter builds an Exporter against an S3-compatible endpoint.
func NewExporter(ctx context.Context, key, secret, region, bucket, endpoint, prefix string) (*Exporter, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	return &Exporter{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

type snapshot struct {
	name    string
	payload any
}

// ExportDay uploads the given day's ledger and quest set as JSON under
// <prefix>/<userID>/<date>/. Uploads run concurrently but bounded.
func (e *Exporter) ExportDay(ctx context.Context, userID, date string, ledger activity.Ledger, set quest.DailySet) error {
	start := time.Now()

	snapshots := []snapshot{
		{name: "ledger.json", payload: ledger},
		{name: "quests.json", payload: set},
	}

	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxConcurrentUploads)

	for _, snap := range snapshots {
		snap := snap
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}

		g.Go(func() error {
			defer sem.Release(1)

			data, err := json.Marshal(snap.payload)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", snap.name, err)
			}

			key := fmt.Sprintf("%s/%s/%s/%s", e.prefix, userID, date, snap.name)
			contentType := "application/json"
			_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      &e.bucket,
				Key:         &key,
				Body:        bytes.NewReader(data),
				ContentType: &contentType,
			})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", key, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Exported daily snapshot",
		slog.String("type", "quest"),
		slog.String("user_id", userID),
		slog.String("date", date),
		slog.Duration("took", time.Since(start)))
	return nil
}
