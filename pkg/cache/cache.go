// Package cache keeps xz compressed backups of disc TOC headers, so that a
// botched rename or group edit can be undone.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/golang/glog"
	"github.com/ulikunitz/xz"
)

type PayloadKind string

const (
	PayloadKindTOC PayloadKind = "toc"
)

var ErrNoSuchBackup = errors.New("no such backup")

// Store is a directory of backups.
type Store struct {
	dir string
	now func() time.Time
}

// New returns the store in the user's data directory.
func New() *Store {
	return NewAt(filepath.Join(xdg.DataHome, "mdctl"))
}

func NewAt(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Backup is one stored payload.
type Backup struct {
	Device string
	Kind   PayloadKind
	Sum    string
	Path   string
	Time   time.Time
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// deviceSlug turns a device name into something usable in a file name.
func deviceSlug(device string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(device), "_"), "_")
	if s == "" {
		return "any"
	}
	return s
}

func (s *Store) pathFor(device string, payload PayloadKind, sum string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s-%s.xz", deviceSlug(device), payload, sum))
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Save stores data unless an identical backup exists, and returns its path.
func (s *Store) Save(device string, payload PayloadKind, data []byte) (string, error) {
	fspath := s.pathFor(device, payload, checksum(data))
	if _, err := os.Stat(fspath); err == nil {
		glog.V(1).Infof("Backup %s already present", fspath)
		now := s.now()
		os.Chtimes(fspath, now, now)
		return fspath, nil
	}

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("could not create compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("could not compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("could not compress: %w", err)
	}

	os.MkdirAll(filepath.Dir(fspath), 0755)
	if err := os.WriteFile(fspath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("could not write backup: %w", err)
	}
	now := s.now()
	os.Chtimes(fspath, now, now)
	glog.Infof("Saved %s backup to %s", payload, fspath)
	return fspath, nil
}

// List returns the backups of a device, newest first.
func (s *Store) List(device string, payload PayloadKind) ([]Backup, error) {
	prefix := fmt.Sprintf("%s-%s-", deviceSlug(device), payload)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var res []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			glog.Warningf("Could not stat %s: %v", name, err)
			continue
		}
		res = append(res, Backup{
			Device: deviceSlug(device),
			Kind:   payload,
			Sum:    strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xz"),
			Path:   filepath.Join(s.dir, name),
			Time:   info.ModTime(),
		})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Time.After(res[j].Time)
	})
	return res, nil
}

// Find returns the backup whose checksum starts with prefix.
func (s *Store) Find(device string, payload PayloadKind, prefix string) (*Backup, error) {
	backups, err := s.List(device, payload)
	if err != nil {
		return nil, err
	}
	var found *Backup
	for i := range backups {
		if !strings.HasPrefix(backups[i].Sum, prefix) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%q is ambiguous", prefix)
		}
		found = &backups[i]
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchBackup, prefix)
	}
	return found, nil
}

// Load decompresses a backup and checks its integrity.
func (s *Store) Load(b *Backup) ([]byte, error) {
	f, err := os.Open(b.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", b.Path, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not decompress %s: %w", b.Path, err)
	}
	if got := checksum(data); got != b.Sum {
		return nil, fmt.Errorf("backup %s is corrupt (checksum %s)", b.Path, got)
	}
	return data, nil
}
