package playlist

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	m3u := strings.Join([]string{
		"#EXTM3U",
		"#EXTINF:123,Artist - Opening",
		"music/01 Opening.mp3",
		"C:\\Music\\02 Second.flac",
		"# a comment",
		"",
		"#EXTINF:321",
		"../no-extension",
		"#EXTINF:200,Last, with comma",
		"last.wav",
	}, "\r\n")
	got, err := Parse(strings.NewReader(m3u))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Entry{
		{0, "Artist - Opening"},
		{1, "02 Second"},
		{2, "no-extension"},
		{3, "Last, with comma"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, wanted %+v", got, want)
	}
}

func TestParseNotM3U(t *testing.T) {
	for _, in := range []string{"", "song.mp3\n", "#EXTM3U8\n"} {
		if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrNotM3U) {
			t.Errorf("%q: got %v, wanted ErrNotM3U", in, err)
		}
	}
}

func TestParseLongLine(t *testing.T) {
	in := "#EXTM3U\n" + strings.Repeat("a", MaxLine+1) + ".mp3\n"
	if _, err := Parse(strings.NewReader(in)); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("got %v, wanted ErrLineTooLong", err)
	}
	in = "#EXTM3U\n" + strings.Repeat("a", MaxLine-4) + ".mp3\n"
	if _, err := Parse(strings.NewReader(in)); err != nil {
		t.Errorf("line of %d characters rejected: %v", MaxLine, err)
	}
}

type fakeTitler struct {
	log  []string
	fail uint16
}

func (f *fakeTitler) CacheTOC() error {
	f.log = append(f.log, "cache")
	return nil
}

func (f *fakeTitler) SetTrackTitle(track uint16, title string) error {
	if track == f.fail {
		return errors.New("rejected")
	}
	f.log = append(f.log, fmt.Sprintf("%d=%s", track, title))
	return nil
}

func (f *fakeTitler) SyncTOC() error {
	f.log = append(f.log, "sync")
	return nil
}

func TestApply(t *testing.T) {
	f := &fakeTitler{fail: 1}
	err := Apply(f, []Entry{{0, "a"}, {1, "b"}, {2, "c"}})
	if err == nil || !strings.Contains(err.Error(), "track 1") {
		t.Errorf("got %v, wanted failure of track 1", err)
	}
	if got, want := strings.Join(f.log, " "), "cache 0=a 2=c sync"; got != want {
		t.Errorf("got %q, wanted %q", got, want)
	}
}
