package btcforge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mirrorClient wraps an S3 client for the artifact mirror (any S3-compatible
// store; endpoint style covers Cloudflare R2 and friends).
type mirrorClient struct {
	client *s3.Client
	bucket string
}

// newMirrorClient builds a mirror client from configuration values.
func newMirrorClient(ctx context.Context, cfg *Config) (*mirrorClient, error) {
	endpoint := cfg.Values["BTCFORGE_S3_ENDPOINT"]
	accessKey := cfg.Values["BTCFORGE_S3_ACCESS_KEY"]
	secretKey := cfg.Values["BTCFORGE_S3_SECRET_KEY"]
	bucket := cfg.Values["BTCFORGE_S3_BUCKET"]
	region := cfg.Values["BTCFORGE_S3_REGION"]
	if region == "" {
		region = "auto"
	}

	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("mirror credentials missing in configuration (BTCFORGE_S3_ENDPOINT, BTCFORGE_S3_ACCESS_KEY, BTCFORGE_S3_SECRET_KEY, BTCFORGE_S3_BUCKET)")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: endpoint}, nil
	})

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion(region),
	}
	if Debug {
		options = append(options, awsconfig.WithClientLogMode(aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &mirrorClient{client: client, bucket: bucket}, nil
}

// UploadLocalFile streams a file from disk to the mirror.
func (m *mirrorClient) UploadLocalFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".tar.xz") {
		contentType = "application/x-xz"
	} else if strings.HasSuffix(key, ".b3") {
		contentType = "text/plain"
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType),
	})
	return err
}

// mirrorObject is metadata for one stored artifact.
type mirrorObject struct {
	Key  string
	Size int64
}

// ListObjects returns the mirror's contents under the given prefix.
func (m *mirrorClient) ListObjects(ctx context.Context, prefix string) ([]mirrorObject, error) {
	var objects []mirrorObject
	paginator := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			objects = append(objects, mirrorObject{Key: *obj.Key, Size: *obj.Size})
		}
	}
	return objects, nil
}

// runUpload pushes artifact archives to the mirror. With no arguments it
// uploads every .tar.xz under <buildRoot>/binaries; arguments name specific
// files.
func runUpload(ctx context.Context, cfg *Config, args []string, listOnly bool) error {
	mirror, err := newMirrorClient(ctx, cfg)
	if err != nil {
		return err
	}

	if listOnly {
		objects, err := mirror.ListObjects(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list mirror contents: %w", err)
		}
		for _, obj := range objects {
			fmt.Printf("%12d  %s\n", obj.Size, obj.Key)
		}
		colArrow.Print("-> ")
		colSuccess.Printf("%d objects on mirror\n", len(objects))
		return nil
	}

	files := args
	if len(files) == 0 {
		pattern := filepath.Join(buildRoot, "binaries", "*.tar.xz")
		files, err = filepath.Glob(pattern)
		if err != nil || len(files) == 0 {
			return fmt.Errorf("no artifact archives found under %s (build with BTCFORGE_ARCHIVE=1 first)", filepath.Join(buildRoot, "binaries"))
		}
	}

	for _, file := range files {
		key := filepath.Base(file)
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", key)
		if err := mirror.UploadLocalFile(ctx, key, file); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Uploaded %d archive(s)\n", len(files))
	return nil
}
