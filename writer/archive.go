package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "holdingsflow/config"
	"holdingsflow/internal/metadata"
	"holdingsflow/logger"
	"holdingsflow/models"
)

const (
	HoldingsTable = "holdings"
	ChangesTable  = "changes"
)

// objectPutter is the part of the S3 client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchivedFile describes one parquet file produced by the archiver.
type ArchivedFile struct {
	Key       string
	LocalPath string
	Size      int64
	Records   int
	Uploaded  bool
}

// Archiver exports snapshots and change sets to hive partitioned parquet
// files under a local directory, optionally mirrored to S3.
type Archiver struct {
	dir         string
	compression string
	version     string
	bucket      string
	prefix      string
	s3          objectPutter
	log         *logger.Log
	now         func() time.Time
	generators  map[string]*metadata.Generator
}

// NewArchiver builds an archiver from configuration. The S3 client is only
// created when archive.s3.enabled is set.
func NewArchiver(ctx context.Context, cfg *appconfig.Config, log *logger.Log) (*Archiver, error) {
	a := &Archiver{
		dir:         cfg.Archive.Dir,
		compression: cfg.Archive.Compression,
		version:     cfg.App.Version,
		log:         log,
		now:         time.Now,
		generators:  make(map[string]*metadata.Generator),
	}
	if !cfg.Archive.S3.Enabled {
		return a, nil
	}

	s3cfg := cfg.Archive.S3
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s3cfg.Region),
	}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	a.s3 = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.PathStyle
	})
	a.bucket = s3cfg.Bucket
	a.prefix = s3cfg.Prefix

	log.WithComponent("archiver").WithFields(logger.Fields{
		"bucket":     s3cfg.Bucket,
		"region":     s3cfg.Region,
		"endpoint":   s3cfg.Endpoint,
		"path_style": s3cfg.PathStyle,
	}).Info("s3 archive upload enabled")
	return a, nil
}

// partitionKey returns table/year=YYYY/quarter=Q/table_<id>.parquet.
func partitionKey(table string, p models.Period, id string) string {
	return path.Join(table,
		fmt.Sprintf("year=%d", p.Year),
		fmt.Sprintf("quarter=%d", p.Quarter),
		fmt.Sprintf("%s_%s.parquet", table, id))
}

// ArchiveHoldings exports one quarterly snapshot.
func (a *Archiver) ArchiveHoldings(ctx context.Context, p models.Period, records []models.HoldingRecord) (ArchivedFile, error) {
	rows := make([]interface{}, len(records))
	for i, r := range records {
		rows[i] = holdingRow(r)
	}
	return a.archive(ctx, HoldingsTable, p, new(HoldingRow), rows)
}

// ArchiveChanges exports the change set stored for later.
func (a *Archiver) ArchiveChanges(ctx context.Context, later models.Period, records []models.ChangeRecord) (ArchivedFile, error) {
	rows := make([]interface{}, len(records))
	for i, r := range records {
		rows[i] = changeRow(r)
	}
	return a.archive(ctx, ChangesTable, later, new(ChangeRow), rows)
}

func (a *Archiver) archive(ctx context.Context, table string, p models.Period, schema interface{}, rows []interface{}) (ArchivedFile, error) {
	key := partitionKey(table, p, uuid.NewString())
	log := a.log.WithComponent("archiver").WithFields(logger.Fields{
		"table":        table,
		"period":       p.String(),
		"key":          key,
		"record_count": len(rows),
	})

	data, err := encodeParquet(schema, rows, a.compression)
	if err != nil {
		return ArchivedFile{}, err
	}

	out := ArchivedFile{
		Key:       key,
		LocalPath: filepath.Join(a.dir, filepath.FromSlash(key)),
		Size:      int64(len(data)),
		Records:   len(rows),
	}
	if err := os.MkdirAll(filepath.Dir(out.LocalPath), 0o755); err != nil {
		return ArchivedFile{}, fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(out.LocalPath, data, 0o644); err != nil {
		return ArchivedFile{}, fmt.Errorf("write %s: %w", out.LocalPath, err)
	}

	location := out.LocalPath
	if a.s3 != nil {
		objectKey := path.Join(a.prefix, key)
		if err := a.upload(ctx, objectKey, data); err != nil {
			log.WithError(err).WithEnv("S3_BUCKET").Error("failed to upload archive to S3")
			return out, err
		}
		out.Uploaded = true
		location = fmt.Sprintf("s3://%s/%s", a.bucket, objectKey)
	}

	if err := a.record(table, p, location, out); err != nil {
		log.WithError(err).Warn("failed to update archive metadata")
	}
	log.WithFields(logger.Fields{"file_size": out.Size, "uploaded": out.Uploaded}).Info("archive written")
	return out, nil
}

func (a *Archiver) upload(ctx context.Context, key string, data []byte) error {
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":         "parquet",
			"compression":          a.compression,
			"holdingsflow-version": a.version,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", a.bucket, err)
	}
	return nil
}

func (a *Archiver) record(table string, p models.Period, location string, f ArchivedFile) error {
	gen, ok := a.generators[table]
	if !ok {
		var err error
		gen, err = metadata.NewGenerator(filepath.Join(a.dir, table), table)
		if err != nil {
			return err
		}
		a.generators[table] = gen
	}
	return gen.AddFile(metadata.DataFile{
		Path:        location,
		FileSize:    f.Size,
		RecordCount: int64(f.Records),
		Partition:   map[string]any{"year": p.Year, "quarter": p.Quarter},
		Timestamp:   a.now(),
	})
}
