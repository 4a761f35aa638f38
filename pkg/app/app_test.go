package app

import (
	"errors"
	"testing"

	"github.com/netmd-tools/mdctl/pkg/cache"
	"github.com/netmd-tools/mdctl/pkg/discheader"
)

type fakeHeader struct {
	header string
	writes int
}

func (f *fakeHeader) RawHeader() (string, error) {
	return f.header, nil
}

func (f *fakeHeader) WriteRawHeader(header string) error {
	f.header = header
	f.writes += 1
	return nil
}

func TestEditHeader(t *testing.T) {
	store := cache.NewAt(t.TempDir())
	dev := &fakeHeader{header: "0;Old//1-2;Side A//"}
	err := EditHeader(dev, store, "deck", func(h *discheader.Header) error {
		h.SetDiscTitle("New")
		return nil
	})
	if err != nil {
		t.Fatalf("EditHeader: %v", err)
	}
	if want := "0;New//1-2;Side A//"; dev.header != want {
		t.Errorf("header %q, wanted %q", dev.header, want)
	}

	backups, err := store.List("deck", cache.PayloadKindTOC)
	if err != nil || len(backups) != 1 {
		t.Fatalf("got backups %v, %v", backups, err)
	}
	data, err := store.Load(&backups[0])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "0;Old//1-2;Side A//" {
		t.Errorf("backup holds %q", data)
	}

	if err := RestoreHeader(dev, store, "deck", &backups[0]); err != nil {
		t.Fatalf("RestoreHeader: %v", err)
	}
	if dev.header != "0;Old//1-2;Side A//" {
		t.Errorf("restored %q", dev.header)
	}
	if backups, _ := store.List("deck", cache.PayloadKindTOC); len(backups) != 2 {
		t.Errorf("restore did not back up the current header")
	}
}

func TestEditHeaderUnchanged(t *testing.T) {
	dev := &fakeHeader{header: "Disc"}
	err := EditHeader(dev, nil, "deck", func(h *discheader.Header) error {
		h.SetDiscTitle("Disc")
		return nil
	})
	if err != nil {
		t.Fatalf("EditHeader: %v", err)
	}
	if dev.writes != 0 {
		t.Errorf("unchanged header written")
	}
}

func TestEditHeaderError(t *testing.T) {
	dev := &fakeHeader{header: "0;Disc//"}
	want := errors.New("nope")
	err := EditHeader(dev, nil, "deck", func(h *discheader.Header) error {
		h.SetDiscTitle("Other")
		return want
	})
	if !errors.Is(err, want) || dev.writes != 0 {
		t.Errorf("got %v after %d writes", err, dev.writes)
	}
}
