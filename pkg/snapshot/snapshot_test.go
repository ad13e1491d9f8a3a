package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
)

func TestRunWritesSnapshot(t *testing.T) {
	store := rdf.NewStore(nil)
	store.Bind("ex", "http://example.org/")
	store.Add(rdf.Triple{
		Subject:   rdf.IRI("http://example.org/s"),
		Predicate: rdf.IRI("http://example.org/p"),
		Object:    rdf.Literal("v"),
	})

	path := filepath.Join(t.TempDir(), "snapshot.ttl")
	s := NewScheduler(store, path, nil)
	s.Run()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot file not written: %v", err)
	}
	if !strings.Contains(string(data), "ex:s") {
		t.Errorf("snapshot missing expected triple:\n%s", data)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(rdf.NewStore(nil), filepath.Join(t.TempDir(), "x.ttl"), nil)
	if err := s.Start("not a schedule"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	s.Stop()
}

func TestStartAcceptsDescriptorSchedule(t *testing.T) {
	s := NewScheduler(rdf.NewStore(nil), filepath.Join(t.TempDir(), "x.ttl"), nil)
	if err := s.Start("@hourly"); err != nil {
		t.Fatalf("descriptor schedule rejected: %v", err)
	}
	s.Stop()
}
