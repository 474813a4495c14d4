package geo

import (
	"errors"
	"net"
	"os"
	"sync"
	"testing"
)

const testMMDBPath = "../../testdata/GeoLite2-City-Test.mmdb"

func skipIfNoMMDB(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testMMDBPath); os.IsNotExist(err) {
		t.Skip("test MMDB file not found; download it with: curl -L -o testdata/GeoLite2-City-Test.mmdb https://github.com/maxmind/MaxMind-DB/raw/main/test-data/GeoLite2-City-Test.mmdb")
	}
}

func TestNewReader_DefaultPath(t *testing.T) {
	r := NewReader("")
	if r.Path() != DefaultDBPath {
		t.Errorf("expected default path %s, got %s", DefaultDBPath, r.Path())
	}
}

func TestReader_InvalidPath(t *testing.T) {
	r := NewReader("/nonexistent/path.mmdb")

	err := r.Ready()
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Errorf("expected ErrDatabaseUnavailable, got %v", err)
	}

	// The failure is remembered, not retried.
	if err2 := r.Ready(); !errors.Is(err2, ErrDatabaseUnavailable) {
		t.Errorf("expected cached error, got %v", err2)
	}
}

func TestReader_OpenOnceUnderConcurrency(t *testing.T) {
	skipIfNoMMDB(t)

	r := NewReader(testMMDBPath)
	defer r.Close()

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.City(net.ParseIP("2.125.160.216"))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if err := r.Ready(); err != nil {
		t.Errorf("reader not ready after concurrent first use: %v", err)
	}
}

func TestReader_CityLookup(t *testing.T) {
	skipIfNoMMDB(t)

	r := NewReader(testMMDBPath)
	defer r.Close()

	record, err := r.City(net.ParseIP("2.125.160.216"))
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if record.Country.IsoCode != "GB" {
		t.Errorf("expected GB, got %q", record.Country.IsoCode)
	}
}

func TestReader_Reload(t *testing.T) {
	skipIfNoMMDB(t)

	r := NewReader(testMMDBPath)
	defer r.Close()

	if err := r.Ready(); err != nil {
		t.Fatalf("initial open failed: %v", err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, err := r.City(net.ParseIP("2.125.160.216")); err != nil {
		t.Errorf("lookup after reload failed: %v", err)
	}
}

func TestReader_CloseWithoutOpen(t *testing.T) {
	r := NewReader(testMMDBPath)
	if err := r.Close(); err != nil {
		t.Errorf("closing an unopened reader errored: %v", err)
	}
}
