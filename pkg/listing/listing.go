// Package listing gathers everything known about a disc into one value,
// and renders it for humans or other tools.
package listing

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/netmd-tools/mdctl/pkg/discheader"
	"github.com/netmd-tools/mdctl/pkg/netmd"
)

// Source is the part of a device queried for a listing.
type Source interface {
	Capacity() (netmd.Capacity, error)
	TrackCount() (uint16, error)
	TrackTitle(track uint16) (string, error)
	TrackTime(track uint16) (netmd.TrackTime, error)
	TrackFlags(track uint16) (netmd.Protection, error)
	TrackBitrate(track uint16) (netmd.Encoding, netmd.Channels, error)
}

type Track struct {
	// Number is one-based, as shown on the device.
	Number     int    `yaml:"number" plist:"Number"`
	Title      string `yaml:"title" plist:"Title"`
	Time       string `yaml:"time" plist:"Time"`
	Protection string `yaml:"protection" plist:"Protection"`
	Bitrate    string `yaml:"bitrate" plist:"Bitrate"`
	Channels   string `yaml:"channels" plist:"Channels"`
	Group      string `yaml:"group,omitempty" plist:"Group,omitempty"`
}

type Group struct {
	ID    int    `yaml:"id" plist:"ID"`
	Name  string `yaml:"name" plist:"Name"`
	First int    `yaml:"first" plist:"First"`
	Last  int    `yaml:"last" plist:"Last"`
}

type Disc struct {
	Title     string  `yaml:"title" plist:"Title"`
	Length    string  `yaml:"length" plist:"Length"`
	Used      string  `yaml:"used" plist:"Used"`
	Available string  `yaml:"available" plist:"Available"`
	Tracks    []Track `yaml:"tracks" plist:"Tracks"`
	Groups    []Group `yaml:"groups,omitempty" plist:"Groups,omitempty"`
}

// Collect queries src for every track. Failing per-track queries leave
// the affected fields empty.
func Collect(src Source, h *discheader.Header) (*Disc, error) {
	d := &Disc{Title: h.DiscTitle()}

	if c, err := src.Capacity(); err != nil {
		glog.Warningf("Capacity unavailable: %v", err)
	} else {
		d.Length = c.Total.String()
		d.Used = c.Recorded.String()
		d.Available = c.Available.String()
	}

	count, err := src.TrackCount()
	if err != nil {
		return nil, fmt.Errorf("counting tracks: %w", err)
	}
	for i := uint16(0); i < count; i++ {
		t := Track{Number: int(i) + 1}
		if title, err := src.TrackTitle(i); err == nil {
			t.Title = strings.TrimPrefix(title, "LP:")
		} else {
			glog.Warningf("Track %d: %v", t.Number, err)
		}
		if tm, err := src.TrackTime(i); err == nil {
			t.Time = tm.String()
		}
		if p, err := src.TrackFlags(i); err == nil {
			t.Protection = p.String()
		}
		if e, ch, err := src.TrackBitrate(i); err == nil {
			t.Bitrate = e.String()
			t.Channels = ch.String()
		}
		if name, _, ok := h.TrackGroup(t.Number); ok {
			t.Group = name
		}
		d.Tracks = append(d.Tracks, t)
	}

	for _, g := range h.Groups() {
		if g.Title() || g.First == discheader.None {
			continue
		}
		last := g.Last
		if last == discheader.None {
			last = g.First
		}
		d.Groups = append(d.Groups, Group{ID: g.ID, Name: g.Name, First: g.First, Last: last})
	}
	return d, nil
}

// Format selects how a listing is written.
type Format string

const (
	FormatText  Format = "text"
	FormatYAML  Format = "yaml"
	FormatPlist Format = "plist"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatYAML, FormatPlist:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q, want text, yaml or plist", s)
}

func (d *Disc) Write(w io.Writer, f Format) error {
	switch f {
	case FormatText:
		return d.writeText(w)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case FormatPlist:
		data, err := plist.MarshalIndent(d, plist.XMLFormat, "\t")
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown output format %q", f)
}

func (d *Disc) writeText(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Disc Title: %s\n", d.Title)
	fmt.Fprintf(&sb, "Disc Length: %s\n", d.Length)
	fmt.Fprintf(&sb, "Time used: %s\n", d.Used)
	fmt.Fprintf(&sb, "Time available: %s\n", d.Available)

	group := ""
	for _, t := range d.Tracks {
		if t.Group != group {
			group = t.Group
			if group != "" {
				fmt.Fprintf(&sb, " [ %s ]\n", group)
			}
		}
		indent := ""
		if t.Group != "" {
			indent = "    "
		}
		fmt.Fprintf(&sb, "%s%02d) %s (%s; %s; %s)\n", indent, t.Number, t.Title, t.Time, t.Protection, t.Bitrate)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
