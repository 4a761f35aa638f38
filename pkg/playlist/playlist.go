// Package playlist titles the tracks of a disc from an M3U playlist.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
)

// MaxLine is the longest playlist line accepted, matching what fits in a
// track title.
const MaxLine = 128

var (
	ErrNotM3U      = errors.New("not an extended M3U playlist")
	ErrLineTooLong = fmt.Errorf("line longer than %d characters", MaxLine)
)

// Entry assigns a title to a zero-based track.
type Entry struct {
	Track uint16
	Title string
}

// Parse reads a playlist. Each path line is one track, titled by the
// preceding #EXTINF line if any, else by the file's base name.
func Parse(r io.Reader) ([]Entry, error) {
	s := bufio.NewScanner(r)
	lineno := 0
	next := func() (string, bool, error) {
		if !s.Scan() {
			return "", false, s.Err()
		}
		lineno += 1
		line := strings.TrimRight(s.Text(), "\r")
		if len(line) > MaxLine {
			return "", false, fmt.Errorf("line %d: %w", lineno, ErrLineTooLong)
		}
		return line, true, nil
	}

	first, ok, err := next()
	if err != nil {
		return nil, err
	}
	if !ok || first != "#EXTM3U" {
		return nil, ErrNotM3U
	}

	var res []Entry
	var track uint16
	titled := false
	for {
		line, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			_, title, found := strings.Cut(line, ",")
			if !found {
				glog.Warningf("Line %d: no title in %q", lineno, line)
				continue
			}
			res = append(res, Entry{Track: track, Title: title})
			titled = true
		case strings.HasPrefix(line, "#"):
			glog.V(1).Infof("Skipping %q", line)
		default:
			if !titled {
				res = append(res, Entry{Track: track, Title: titleFromPath(line)})
			}
			titled = false
			track += 1
		}
	}
	return res, nil
}

// titleFromPath strips directories and the extension from a path, which
// may use either separator.
func titleFromPath(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i > 0 {
		p = p[:i]
	}
	return p
}

// Titler is the part of a device needed to apply a playlist.
type Titler interface {
	CacheTOC() error
	SetTrackTitle(track uint16, title string) error
	SyncTOC() error
}

// Apply titles the tracks on dev. It continues past failing tracks and
// returns all failures.
func Apply(dev Titler, entries []Entry) error {
	if err := dev.CacheTOC(); err != nil {
		return fmt.Errorf("caching TOC: %w", err)
	}
	var errs error
	for _, e := range entries {
		glog.Infof("Title track %d - %s", e.Track, e.Title)
		if err := dev.SetTrackTitle(e.Track, e.Title); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("track %d: %w", e.Track, err))
		}
	}
	if err := dev.SyncTOC(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("syncing TOC: %w", err))
	}
	return errs
}
