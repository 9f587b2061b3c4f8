package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/kinkeeper/internal/metrics"
)

const (
	keyTimeLayout = "20060102T150405Z"
	keySuffix     = ".db.enc"
)

// s3Client is the subset of the S3 API the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds S3-compatible storage and encryption settings.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
	Retention  time.Duration
}

// Object is one stored backup.
type Object struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager writes encrypted snapshots of the database to a bucket. The
// bucket listing is the backup history: a restore replaces the database, so
// nothing about backups is recorded in it.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	now    func() time.Time

	// serializes Run so two snapshots never race on VACUUM INTO
	mu sync.Mutex
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return newManager(cfg, db, s3.New(opts), logger)
}

func newManager(cfg Config, db *sql.DB, client s3Client, logger *slog.Logger) *Manager {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Manager{
		cfg:    cfg,
		db:     db,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (m *Manager) objectKey(t time.Time) string {
	name := "kinkeeper-" + t.UTC().Format(keyTimeLayout) + keySuffix
	if m.cfg.Prefix == "" {
		return name
	}
	return path.Join(m.cfg.Prefix, name)
}

// Run snapshots the database, encrypts it and uploads it.
func (m *Manager) Run(ctx context.Context) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, err := m.run(ctx)
	if err != nil {
		metrics.BackupRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.BackupRuns.WithLabelValues("ok").Inc()
	m.logger.Info("backup uploaded", "key", obj.Key, "size", obj.Size)
	return obj, nil
}

func (m *Manager) run(ctx context.Context) (*Object, error) {
	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(snapshot, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	now := m.now().UTC()
	key := m.objectKey(now)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}
	return &Object{Key: key, Size: int64(len(sealed)), CreatedAt: now}, nil
}

// snapshot returns a consistent copy of the live database.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "kinkeeper-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// List returns stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	prefix := ""
	if m.cfg.Prefix != "" {
		prefix = m.cfg.Prefix + "/"
	}

	var objects []Object
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, o := range out.Contents {
			key := aws.ToString(o.Key)
			created, ok := parseKeyTime(key)
			if !ok {
				continue
			}
			objects = append(objects, Object{Key: key, Size: aws.ToInt64(o.Size), CreatedAt: created})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].CreatedAt.After(objects[j].CreatedAt)
	})
	return objects, nil
}

func parseKeyTime(key string) (time.Time, bool) {
	name := path.Base(key)
	if !strings.HasPrefix(name, "kinkeeper-") || !strings.HasSuffix(name, keySuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, "kinkeeper-"), keySuffix)
	t, err := time.Parse(keyTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Prune deletes backups older than the retention period. The newest backup
// is always kept.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.cfg.Retention <= 0 {
		return 0, nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().UTC().Add(-m.cfg.Retention)
	deleted := 0
	for i, o := range objects {
		if i == 0 || !o.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("delete old backup", "key", o.Key, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Restore downloads and decrypts the backup at key into a new database file
// at dst. dst must not exist; the server is pointed at it afterwards.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("restore target %s already exists", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat restore target: %w", err)
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".partial"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move restored db: %w", err)
	}
	m.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Loop backs up and prunes every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (m *Manager) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Run(ctx); err != nil {
				m.logger.Error("scheduled backup failed", "error", err)
				continue
			}
			if n, err := m.Prune(ctx); err != nil {
				m.logger.Error("prune backups", "error", err)
			} else if n > 0 {
				m.logger.Info("pruned old backups", "count", n)
			}
		}
	}
}
