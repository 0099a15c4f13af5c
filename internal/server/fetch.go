package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Fetch materializes a document reference as a local file inside destDir.
// Supported schemes: s3://bucket/key, http(s)://, file://, plain paths.
// Plain paths are returned as-is without copying.
func Fetch(ctx context.Context, ref, destDir string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return fetchS3(ctx, ref, destDir)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return fetchHTTP(ctx, ref, destDir)
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), nil
	default:
		if _, err := os.Stat(ref); err != nil {
			return "", fmt.Errorf("source %s: %w", ref, err)
		}
		return ref, nil
	}
}

func fetchHTTP(ctx context.Context, url, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: http %d", url, resp.StatusCode)
	}
	return saveStream(resp.Body, destDir, filepath.Base(url))
}

func fetchS3(ctx context.Context, s3url, destDir string) (string, error) {
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 {
		return "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	bucket, key := path[:slash], path[slash+1:]

	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	out, err := s3.NewFromConfig(cfg).GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", s3url, err)
	}
	defer out.Body.Close()

	local, err := saveStream(out.Body, destDir, filepath.Base(key))
	if err != nil {
		return "", err
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Str("local", local).Msg("fetched s3 object")
	return local, nil
}

func saveStream(r io.Reader, destDir, name string) (string, error) {
	if name == "" || name == "." || name == "/" {
		name = "source.pdf"
	}
	local := filepath.Join(destDir, name)
	f, err := os.Create(local)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return local, nil
}
