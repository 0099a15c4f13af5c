package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// gcmMagic prefixes every encrypted object so downloads can tell encrypted
// payloads from plain ones.
const gcmMagic = "GCM3NCR0"

const (
	pbkdf2Iterations = 100000
	keyLength        = 32
	saltLength       = 16
	nonceLength      = 12
)

// S3Client uploads composed outputs and fetches source documents. When a
// password is set, payloads are AES-GCM encrypted with a PBKDF2-derived key.
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	password string
}

// New builds an S3 client from the default AWS config chain.
func New(ctx context.Context, bucket, region, prefix, password string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   bucket,
		prefix:   prefix,
		password: password,
	}, nil
}

// UploadFile stores one local file under prefix/batchID/basename and returns
// the object key.
func (s *S3Client) UploadFile(ctx context.Context, batchID, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", localPath, err)
	}

	encrypted := false
	if s.password != "" {
		if data, err = s.encrypt(data); err != nil {
			return "", fmt.Errorf("encrypt %s: %w", localPath, err)
		}
		encrypted = true
	}

	key := path.Join(s.prefix, batchID, filepath.Base(localPath))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"name":      filepath.Base(localPath),
			"encrypted": fmt.Sprintf("%t", encrypted),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	log.Info().Str("key", key).Bool("encrypted", encrypted).Int("size", len(data)).Msg("uploaded to s3")
	return key, nil
}

// UploadBatch uploads all files and returns their keys, stopping at the
// first failure.
func (s *S3Client) UploadBatch(ctx context.Context, batchID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key, err := s.UploadFile(ctx, batchID, f)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Download fetches one object into destDir, decrypting it when the payload
// carries the encryption magic. Returns the local path.
func (s *S3Client) Download(ctx context.Context, key, destDir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}

	if len(data) > len(gcmMagic) && string(data[:len(gcmMagic)]) == gcmMagic {
		if s.password == "" {
			return "", fmt.Errorf("object %s is encrypted but no password is configured", key)
		}
		if data, err = s.decrypt(data); err != nil {
			return "", fmt.Errorf("decrypt %s: %w", key, err)
		}
	}

	local := filepath.Join(destDir, filepath.Base(key))
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", local, err)
	}
	log.Debug().Str("key", key).Str("local", local).Msg("downloaded from s3")
	return local, nil
}

// encrypt produces magic(8) + salt(16) + nonce(12) + ciphertext-with-tag.
func (s *S3Client) encrypt(plain []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	gcm, err := s.cipherFor(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gcmMagic)+saltLength+nonceLength+len(plain)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, nil), nil
}

func (s *S3Client) decrypt(data []byte) ([]byte, error) {
	header := len(gcmMagic) + saltLength + nonceLength
	if len(data) < header+16 {
		return nil, fmt.Errorf("encrypted payload too short: %d bytes", len(data))
	}
	salt := data[len(gcmMagic) : len(gcmMagic)+saltLength]
	nonce := data[len(gcmMagic)+saltLength : header]

	gcm, err := s.cipherFor(salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[header:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM open failed: %w", err)
	}
	return plain, nil
}

func (s *S3Client) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.password), salt, pbkdf2Iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
