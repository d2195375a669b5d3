package elements

import (
	"sync"
	"testing"
	"time"
)

func TestStoreEmpty(t *testing.T) {
	s := NewStore()
	if ds := s.Get(); ds != nil {
		t.Errorf("expected nil dataset, got %v", ds)
	}
	if age := s.AgeSeconds(); age != -1 {
		t.Errorf("expected age -1 for empty store, got %v", age)
	}
}

func TestStoreSetGet(t *testing.T) {
	s := NewStore()
	ds := &Dataset{
		Source:    "test",
		FetchedAt: time.Now().Add(-10 * time.Second),
		Satellites: []OrbitalElements{
			{NORADID: 25544, Name: "ISS (ZARYA)"},
		},
	}
	s.Set(ds)

	got := s.Get()
	if got != ds {
		t.Fatal("Get returned a different dataset pointer")
	}

	age := s.AgeSeconds()
	if age < 9 || age > 12 {
		t.Errorf("AgeSeconds = %v, want about 10", age)
	}
}

// TestStoreConcurrentAccess exercises readers racing a writer; run with
// -race to catch unsynchronized access.
func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if ds := s.Get(); ds != nil && len(ds.Satellites) != 1 {
					t.Error("observed partially written dataset")
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 1000; j++ {
			s.Set(&Dataset{
				FetchedAt:  time.Now(),
				Satellites: []OrbitalElements{{NORADID: j}},
			})
		}
	}()

	wg.Wait()
}

func TestDatasetByID(t *testing.T) {
	ds := &Dataset{
		Satellites: []OrbitalElements{
			{NORADID: 25544, Name: "ISS (ZARYA)"},
			{NORADID: 44713, Name: "STARLINK-1007"},
		},
	}

	e, ok := ds.ByID(44713)
	if !ok {
		t.Fatal("expected to find 44713")
	}
	if e.Name != "STARLINK-1007" {
		t.Errorf("Name = %q, want STARLINK-1007", e.Name)
	}

	if _, ok := ds.ByID(99999); ok {
		t.Error("expected 99999 to be absent")
	}
}
