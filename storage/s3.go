package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"content-pulse/config"
)

// S3Target beschreibt einen S3-kompatiblen Speicher.
type S3Target struct {
	URL    string
	Region string
	Key    string
	Secret string
	Bucket string
}

// ReportTarget liefert das Ziel für CSV-Reports aus der Konfiguration.
func ReportTarget(cfg *config.Config) S3Target {
	return S3Target{
		URL:    cfg.ReportS3URL,
		Region: cfg.ReportS3Region,
		Key:    cfg.ReportS3Key,
		Secret: cfg.ReportS3Secret,
		Bucket: cfg.ReportS3Bucket,
	}
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, t S3Target) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               t.URL,
				SigningRegion:     t.Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(t.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(t.Key, t.Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// ObjectAPI ist der Ausschnitt des S3-Clients, den ObjectStore braucht.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ObjectStore legt Dateien unter einem Präfix ab und hält nur die neuesten Keep Objekte vor.
type ObjectStore struct {
	Client  ObjectAPI
	BaseURL string
	Bucket  string
	Prefix  string
	Keep    int
	Logger  *zap.Logger
}

// NewReportStore erstellt den Speicher für CSV-Reports.
func NewReportStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ObjectStore, error) {
	t := ReportTarget(cfg)
	client, err := NewS3Client(ctx, t)
	if err != nil {
		return nil, err
	}
	return &ObjectStore{Client: client, BaseURL: t.URL, Bucket: t.Bucket, Prefix: "reports/", Keep: cfg.ReportKeep, Logger: logger}, nil
}

// Put lädt eine Datei hoch und gibt den Link zurück.
func (o *ObjectStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := o.Prefix + name
	_, err := o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(o.BaseURL, "/"), o.Bucket, key), nil
}

// UploadReport lädt einen Report hoch und rotiert danach ältere Reports.
func (o *ObjectStore) UploadReport(ctx context.Context, name string, data []byte) (string, error) {
	link, err := o.Put(ctx, name, data)
	if err != nil {
		return "", err
	}
	if err := o.Rotate(ctx); err != nil {
		o.Logger.Warn("Rotation alter Objekte fehlgeschlagen", zap.Error(err))
	}
	return link, nil
}

// Rotate löscht alle Objekte unter dem Präfix bis auf die neuesten Keep.
func (o *ObjectStore) Rotate(ctx context.Context) error {
	if o.Keep <= 0 {
		return nil
	}
	output, err := o.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(o.Bucket),
		Prefix: aws.String(o.Prefix),
	})
	if err != nil {
		return err
	}
	objects := output.Contents
	if len(objects) <= o.Keep {
		o.Logger.Debug("Keine Rotation nötig", zap.Int("objects", len(objects)), zap.Int("keep", o.Keep))
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})

	for _, obj := range objects[o.Keep:] {
		o.Logger.Info("Lösche altes Objekt", zap.String("key", aws.ToString(obj.Key)))
		_, err := o.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(o.Bucket),
			Key:    obj.Key,
		})
		if err != nil {
			o.Logger.Error("Löschen fehlgeschlagen", zap.String("key", aws.ToString(obj.Key)), zap.Error(err))
		}
	}
	return nil
}
