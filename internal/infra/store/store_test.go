package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LargeThreshold = 256
	return cfg
}

func openTestStore(t *testing.T, dir string, cfg Config) *Store {
	t.Helper()
	s, err := Open(dir, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func smallRecord(jobID string) domain.StoredResult {
	return domain.StoredResult{
		JobID:          jobID,
		Status:         domain.JobCompleted,
		Payload:        []byte(`{"status":"success","results":[{"job_id":"job-1","global_score":82}]}`),
		Priority:       "normal",
		ProcessingTime: 0.42,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	rec := smallRecord("job-rt")

	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(context.Background(), "job-rt")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Status != domain.JobCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if !bytes.Equal(got.Payload, rec.Payload) {
		t.Errorf("Payload = %s, want the saved body", got.Payload)
	}
	if got.Priority != "normal" || got.ProcessingTime != 0.42 {
		t.Errorf("metadata = %q/%v", got.Priority, got.ProcessingTime)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
}

func TestLoadMissReturnsNotFound(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("Load() error = %v, want ErrResultNotFound", err)
	}
}

func TestSaveRejectsEmptyJobID(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	err := s.Save(context.Background(), domain.StoredResult{Status: domain.JobCompleted})
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Fatalf("Save() error = %v, want invalid input", err)
	}
}

func TestRowTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	first := openTestStore(t, dir, testConfig())
	if err := first.Save(context.Background(), smallRecord("job-dur")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	first.Close()

	second := openTestStore(t, dir, testConfig())
	got, err := second.Load(context.Background(), "job-dur")
	if err != nil {
		t.Fatalf("Load() after restart error = %v", err)
	}
	if !bytes.Equal(got.Payload, smallRecord("job-dur").Payload) {
		t.Errorf("Payload = %s after restart", got.Payload)
	}
}

func TestHotCacheServesWithoutRowTier(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	if err := s.Save(context.Background(), smallRecord("job-hot")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.rows.close() // reads must now come from the hot cache

	got, err := s.Load(context.Background(), "job-hot")
	if err != nil {
		t.Fatalf("Load() error = %v, want a hot cache hit", err)
	}
	if got.JobID != "job-hot" {
		t.Errorf("JobID = %q", got.JobID)
	}
}

func TestOversizePayloadMovesToBlob(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir, testConfig())

	rec := smallRecord("job-big")
	rec.Payload = bytes.Repeat([]byte(`{"k":"v"}`), 100) // 900 B > 256 B threshold
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	blobPath := filepath.Join(dir, "results", "job-big.json")
	data, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("blob object missing: %v", err)
	}
	if !bytes.Equal(data, rec.Payload) {
		t.Error("blob object does not hold the payload")
	}

	// a fresh store has a cold hot cache, so this read walks row → blob
	s.Close()
	reopened := openTestStore(t, dir, testConfig())
	got, err := reopened.Load(context.Background(), "job-big")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got.Payload, rec.Payload) {
		t.Errorf("Payload length = %d, want %d via the blob tier", len(got.Payload), len(rec.Payload))
	}
	if got.FilePath != blobPath {
		t.Errorf("FilePath = %q, want %q", got.FilePath, blobPath)
	}
}

func TestBlobLossStillServesMetadata(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir, testConfig())

	rec := smallRecord("job-lost")
	rec.Payload = bytes.Repeat([]byte("x"), 512)
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "results", "job-lost.json")); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	s.Close()
	reopened := openTestStore(t, dir, testConfig())
	got, err := reopened.Load(context.Background(), "job-lost")
	if err != nil {
		t.Fatalf("Load() error = %v, want row metadata despite the lost blob", err)
	}
	if got.Status != domain.JobCompleted || len(got.Payload) != 0 {
		t.Errorf("got status %q with %d payload bytes", got.Status, len(got.Payload))
	}
}

func TestSaveToleratesRowFailureForOversize(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir, testConfig())
	s.rows.close() // durable writes now only reach the blob tier

	rec := smallRecord("job-blob-only")
	rec.Payload = bytes.Repeat([]byte("y"), 512)
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v, want success while the blob tier holds", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "results", "job-blob-only.json")); err != nil {
		t.Errorf("blob object missing: %v", err)
	}
}

func TestSaveFailsWhenNoDurableTierKeepsIt(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	s.rows.close()

	err := s.Save(context.Background(), smallRecord("job-doomed")) // small: row is the only durable tier
	if err == nil {
		t.Fatal("Save() = nil, want an error when nothing durable kept the record")
	}
	if domain.KindOf(err) != domain.KindPersistenceFault {
		t.Errorf("kind = %v, want persistence fault", domain.KindOf(err))
	}
	if !errors.Is(err, domain.ErrAllTiersFailed) {
		t.Errorf("err = %v, want ErrAllTiersFailed in the chain", err)
	}

	// the hot cache must not advertise a record the store would lose
	if _, lerr := s.Load(context.Background(), "job-doomed"); lerr == nil {
		t.Error("Load() = nil error, want the record to stay invisible")
	}
}

func TestUpsertOverwritesStatus(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	ctx := context.Background()

	first := smallRecord("job-up")
	first.Status = domain.JobFailed
	first.Payload = nil
	first.Error = "transient blip"
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, smallRecord("job-up")); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	got, err := s.Load(ctx, "job-up")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Status != domain.JobCompleted || got.Error != "" {
		t.Errorf("record = %q/%q, want the retried success", got.Status, got.Error)
	}
}

func TestFailedJobKeepsErrorText(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	rec := domain.StoredResult{
		JobID:  "job-err",
		Status: domain.JobFailed,
		Error:  "candidate has no usable skills",
	}
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(context.Background(), "job-err")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Status != domain.JobFailed || !strings.Contains(got.Error, "skills") {
		t.Errorf("record = %q/%q", got.Status, got.Error)
	}
	if len(got.Payload) != 0 {
		t.Errorf("failed record carries %d payload bytes", len(got.Payload))
	}
}

func TestRecentListsStoredResults(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	ctx := context.Background()
	for _, id := range []string{"job-1", "job-2", "job-3"} {
		if err := s.Save(ctx, smallRecord(id)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(got))
	}

	all, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(0) returned %d records, want all 3", len(all))
	}
}

func TestPing(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testConfig())
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping() = nil after Close")
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	pg := &rowTier{driver: DriverPostgres}
	got := pg.rebind(`INSERT INTO t (a, b) VALUES (?, ?) ON CONFLICT(a) DO UPDATE SET b=?`)
	want := `INSERT INTO t (a, b) VALUES ($1, $2) ON CONFLICT(a) DO UPDATE SET b=$3`
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}

	lite := &rowTier{driver: DriverSQLite}
	if got := lite.rebind(`SELECT ?`); got != `SELECT ?` {
		t.Errorf("sqlite rebind() = %q, want untouched", got)
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"job-123", "job-123"},
		{"550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"job id with spaces", "job_id_with_spaces"},
	}
	for _, tt := range tests {
		if got := sanitizeID(tt.id); got != tt.want {
			t.Errorf("sanitizeID(%q) = %q, want %q", tt.id, got, tt.want)
		}
		if strings.ContainsAny(sanitizeID(tt.id), `/\`) {
			t.Errorf("sanitizeID(%q) still contains a path separator", tt.id)
		}
	}
}

func TestHotTierExpiry(t *testing.T) {
	h := newHotTier(8, 30*time.Millisecond)
	h.put(domain.StoredResult{JobID: "job-ttl", Status: domain.JobCompleted})

	if _, ok := h.get("job-ttl"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := h.get("job-ttl"); ok {
		t.Error("entry survived its TTL")
	}
}

func TestUnknownDriverRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Driver = "oracle"
	if _, err := Open(t.TempDir(), cfg, zap.NewNop()); err == nil {
		t.Fatal("Open() = nil error for an unknown driver")
	}
}
