package cache

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	s := NewAt(t.TempDir())
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func TestSaveLoad(t *testing.T) {
	s := testStore(t)
	first := []byte("0;Disc//1-3;Side A//")
	second := []byte("0;Disc//1-4;Side A//")

	p1, err := s.Save("Net MD Walkman", PayloadKindTOC, first)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(p1, ".xz") || !strings.Contains(p1, "net_md_walkman-toc-") {
		t.Errorf("unexpected path %q", p1)
	}
	if _, err := s.Save("Net MD Walkman", PayloadKindTOC, second); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save("Other Deck", PayloadKindTOC, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	backups, err := s.List("Net MD Walkman", PayloadKindTOC)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("got %d backups, wanted 2", len(backups))
	}
	data, err := s.Load(&backups[0])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(data, second) {
		t.Errorf("newest backup is %q, wanted %q", data, second)
	}

	// Saving again refreshes the older backup.
	if _, err := s.Save("Net MD Walkman", PayloadKindTOC, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	backups, _ = s.List("Net MD Walkman", PayloadKindTOC)
	if len(backups) != 2 || backups[0].Path != p1 {
		t.Errorf("re-saved backup not listed first: %+v", backups)
	}
}

func TestFind(t *testing.T) {
	s := testStore(t)
	p, err := s.Save("deck", PayloadKindTOC, []byte("MyDisc"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sum := checksum([]byte("MyDisc"))
	b, err := s.Find("deck", PayloadKindTOC, sum[:6])
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if b.Path != p || b.Sum != sum {
		t.Errorf("found %+v", b)
	}
	if _, err := s.Find("deck", PayloadKindTOC, "zz"); !errors.Is(err, ErrNoSuchBackup) {
		t.Errorf("got %v, wanted ErrNoSuchBackup", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	s := testStore(t)
	p, err := s.Save("deck", PayloadKindTOC, []byte("MyDisc"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(p, []byte("not xz"), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := s.Find("deck", PayloadKindTOC, "")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if _, err := s.Load(b); err == nil {
		t.Errorf("corrupt backup loaded")
	}
}

func TestListEmpty(t *testing.T) {
	s := NewAt(t.TempDir() + "/missing")
	backups, err := s.List("deck", PayloadKindTOC)
	if err != nil || len(backups) != 0 {
		t.Errorf("got %v, %v", backups, err)
	}
}

func TestDeviceSlug(t *testing.T) {
	for in, want := range map[string]string{
		"Net MD Walkman":      "net_md_walkman",
		"Sony MZ-N710/NE810 ": "sony_mz_n710_ne810",
		"":                    "any",
	} {
		if got := deviceSlug(in); got != want {
			t.Errorf("deviceSlug(%q) = %q, wanted %q", in, got, want)
		}
	}
}
