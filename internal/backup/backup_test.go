package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dukerupert/kinkeeper/internal/database"
)

// mockS3Client implements s3Client in memory.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	// pageSize > 0 splits listings into pages
	pageSize int
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, _ := io.ReadAll(input.Body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(input.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if input.ContinuationToken != nil {
		for i, k := range keys {
			if k == *input.ContinuationToken {
				start = i
			}
		}
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(m.objects[k])))})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func setupManager(t *testing.T, cfg Config) (*Manager, *mockS3Client, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if cfg.Passphrase == "" {
		cfg.Passphrase = "correct horse battery"
	}
	client := newMockS3()
	m := newManager(cfg, db, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return m, client, db
}

// at pins the manager clock.
func at(m *Manager, ts string) {
	t, _ := time.Parse(time.RFC3339, ts)
	m.now = func() time.Time { return t }
}

func TestRunAndRestore(t *testing.T) {
	m, client, db := setupManager(t, Config{Bucket: "b", Prefix: "/nightly/"})
	if _, err := db.Exec(`INSERT INTO users (email, auth_method) VALUES ('alice@example.com', 'password')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	at(m, "2024-03-01T02:00:00Z")

	obj, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if obj.Key != "nightly/kinkeeper-20240301T020000Z.db.enc" {
		t.Errorf("key = %q", obj.Key)
	}
	if bytes.Contains(client.objects[obj.Key], []byte("alice@example.com")) {
		t.Error("uploaded object is not encrypted")
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), obj.Key, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var email string
	if err := restored.QueryRow(`SELECT email FROM users`).Scan(&email); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if email != "alice@example.com" {
		t.Errorf("email = %q", email)
	}

	if err := m.Restore(context.Background(), obj.Key, dst); err == nil {
		t.Error("restore over an existing file should fail")
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	m, client, db := setupManager(t, Config{Bucket: "b"})
	at(m, "2024-03-01T02:00:00Z")
	obj, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	other := newManager(Config{Bucket: "b", Passphrase: "another passphrase"}, db, client, m.logger)
	err = other.Restore(context.Background(), obj.Key, filepath.Join(t.TempDir(), "x.db"))
	if !errors.Is(err, ErrBadArchive) {
		t.Errorf("err = %v, want ErrBadArchive", err)
	}
}

func TestRunUploadFailure(t *testing.T) {
	m, client, _ := setupManager(t, Config{Bucket: "b"})
	client.putErr = errors.New("access denied")

	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestListAndPrune(t *testing.T) {
	m, client, _ := setupManager(t, Config{Bucket: "b", Prefix: "kk", Retention: 48 * time.Hour})
	client.pageSize = 2

	for _, ts := range []string{"2024-03-01T00:00:00Z", "2024-03-02T00:00:00Z", "2024-03-03T00:00:00Z", "2024-03-04T00:00:00Z"} {
		at(m, ts)
		if _, err := m.Run(context.Background()); err != nil {
			t.Fatalf("run %s: %v", ts, err)
		}
	}
	client.objects["kk/notes.txt"] = []byte("ignored")

	objects, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 4 {
		t.Fatalf("objects = %d, want 4", len(objects))
	}
	if !objects[0].CreatedAt.After(objects[3].CreatedAt) {
		t.Error("list should be newest first")
	}

	at(m, "2024-03-04T12:00:00Z")
	n, err := m.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	// 03-01 and 03-02 are older than 48h.
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	objects, _ = m.List(context.Background())
	if len(objects) != 2 {
		t.Errorf("remaining = %d, want 2", len(objects))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	m, _, _ := setupManager(t, Config{Bucket: "b", Retention: 24 * time.Hour})
	at(m, "2024-01-01T00:00:00Z")
	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	at(m, "2024-06-01T00:00:00Z")
	n, err := m.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned = %d, the only backup must survive", n)
	}
}

func TestParseKeyTime(t *testing.T) {
	tests := []struct {
		key string
		ok  bool
	}{
		{"kk/kinkeeper-20240301T020000Z.db.enc", true},
		{"kinkeeper-20240301T020000Z.db.enc", true},
		{"kk/kinkeeper-garbage.db.enc", false},
		{"kk/other-20240301T020000Z.db.enc", false},
		{"kk/kinkeeper-20240301T020000Z.db", false},
	}
	for _, tt := range tests {
		if _, ok := parseKeyTime(tt.key); ok != tt.ok {
			t.Errorf("parseKeyTime(%q) ok = %v, want %v", tt.key, ok, tt.ok)
		}
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	m, _, _ := setupManager(t, Config{Bucket: "b"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Loop(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("loop returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
