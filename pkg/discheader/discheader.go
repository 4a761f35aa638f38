// Package discheader implements the text format in which MiniDiscs store
// their title and track groups.
//
// The disc title text holds a list of entries, each terminated by "//":
//
//	0;Disc title//1-3;Side A//5;Side B//
//
// An entry is an optional track range (N or N-M, 1-based) followed by ";" and
// a name. The entry starting at track 0 is the disc title. A text without
// any "//" is a bare disc title on a disc without groups.
package discheader

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrValidation is returned when a change would leave the header with
	// overlapping or malformed groups. The header is left unchanged.
	ErrValidation  = errors.New("invalid group layout")
	ErrNoSuchGroup = errors.New("no such group")
)

// None marks an absent track number.
const None = -1

// TitleID is the ID of the group holding the disc title.
const TitleID = 0

// Group is a named, contiguous range of tracks. Last is None for single
// track groups, and both First and Last are None for empty groups. A
// parsed "N-N" range keeps its Last so that it is written back unchanged.
type Group struct {
	ID    int
	First int
	Last  int
	Name  string
}

// Title returns true if this group holds the disc title.
func (g Group) Title() bool {
	return g.First == 0
}

// last returns the last track of the group, or First for single track
// groups.
func (g Group) last() int {
	if g.Last == None {
		return g.First
	}
	return g.Last
}

// Contains returns true if track is part of the group's range.
func (g Group) Contains(track int) bool {
	if g.First <= 0 {
		return false
	}
	return track >= g.First && track <= g.last()
}

func (g Group) String() string {
	var sb strings.Builder
	if g.First != None {
		sb.WriteString(strconv.Itoa(g.First))
	}
	if g.Last != None {
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(g.Last))
	}
	sb.WriteString(";")
	sb.WriteString(g.Name)
	return sb.String()
}

// Header is a parsed disc title text.
type Header struct {
	groups []Group
	nextID int
}

// New returns a header with an empty disc title and no groups.
func New() *Header {
	return &Header{
		groups: []Group{{ID: TitleID, First: 0, Last: None}},
		nextID: TitleID + 1,
	}
}

// Parse reads a disc title text. Malformed track numbers read as 0, as
// units do. Use Check to find out whether the result is consistent.
func Parse(s string) *Header {
	if s == "" {
		return New()
	}
	if !strings.Contains(s, "//") {
		h := New()
		h.groups[0].Name = s
		return h
	}

	h := &Header{nextID: TitleID + 1}
	haveTitle := false
	toks := strings.Split(s, "//")
	// Only entries terminated by "//" count; anything after the last one
	// is ignored.
	for _, tok := range toks[:len(toks)-1] {
		if tok == "" {
			continue
		}
		g := Group{First: None, Last: None, Name: tok}
		if rng, name, ok := strings.Cut(tok, ";"); ok {
			g.Name = name
			if rng != "" {
				first, last, isRange := strings.Cut(rng, "-")
				g.First = atoi(first)
				if isRange {
					g.Last = atoi(last)
				}
			}
		}
		if g.First == 0 && !haveTitle {
			g.ID = TitleID
			haveTitle = true
		} else {
			g.ID = h.nextID
			h.nextID++
		}
		h.groups = append(h.groups, g)
	}
	return h
}

// atoi converts the leading decimal number in s, returning 0 if there is
// none.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 0x7fff {
			n = 0x7fff
		}
	}
	if neg {
		return -n
	}
	return n
}

// sorted returns a copy of groups ordered by first track, with empty groups
// last.
func sorted(groups []Group) []Group {
	res := make([]Group, len(groups))
	copy(res, groups)
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.First == None {
			return false
		}
		if b.First == None {
			return true
		}
		return a.First < b.First
	})
	return res
}

func check(groups []Group) error {
	last := 0
	for _, g := range sorted(groups) {
		switch {
		case g.First == 0 && g.Last != None:
			return fmt.Errorf("%w: title group %q has a last track", ErrValidation, g.Name)
		case g.First == None && g.Last != None:
			return fmt.Errorf("%w: empty group %q has a last track", ErrValidation, g.Name)
		case g.Last != None && g.First > g.Last:
			return fmt.Errorf("%w: group %q ends before it starts", ErrValidation, g.Name)
		case g.First > 0 && g.First <= last:
			return fmt.Errorf("%w: group %q overlaps track %d", ErrValidation, g.Name, last)
		}
		if g.First != None {
			last = g.last()
		}
	}
	return nil
}

// Check returns an error wrapping ErrValidation if groups overlap or are
// malformed.
func (h *Header) Check() error {
	return check(h.groups)
}

// commit validates a modified copy of the groups and makes it current.
func (h *Header) commit(groups []Group) error {
	if err := check(groups); err != nil {
		return err
	}
	h.groups = groups
	return nil
}

func (h *Header) clone() []Group {
	res := make([]Group, len(h.groups))
	copy(res, h.groups)
	return res
}

func (h *Header) index(gid int) int {
	for i, g := range h.groups {
		if g.ID == gid {
			return i
		}
	}
	return -1
}

func (h *Header) title() *Group {
	if i := h.index(TitleID); i >= 0 {
		return &h.groups[i]
	}
	return nil
}

// String serializes the header. A disc without groups serializes to its bare
// title.
func (h *Header) String() string {
	groups := h.groups
	var sb strings.Builder
	if t := h.title(); t != nil {
		if len(groups) == 1 {
			return t.Name
		}
		sb.WriteString("0;")
		sb.WriteString(t.Name)
		sb.WriteString("//")
		groups = make([]Group, 0, len(h.groups)-1)
		for _, g := range h.groups {
			if g.ID != TitleID {
				groups = append(groups, g)
			}
		}
	}
	for _, g := range sorted(groups) {
		sb.WriteString(g.String())
		sb.WriteString("//")
	}
	return sb.String()
}

// Groups returns the groups other than the disc title, ordered by track.
func (h *Header) Groups() []Group {
	var res []Group
	for _, g := range sorted(h.groups) {
		if g.ID != TitleID {
			res = append(res, g)
		}
	}
	return res
}

// Group returns the group with the given ID.
func (h *Header) Group(gid int) (Group, bool) {
	if i := h.index(gid); i >= 0 {
		return h.groups[i], true
	}
	return Group{}, false
}

func (h *Header) DiscTitle() string {
	if t := h.title(); t != nil {
		return t.Name
	}
	return ""
}

func (h *Header) SetDiscTitle(title string) {
	if t := h.title(); t != nil {
		t.Name = title
		return
	}
	h.groups = append([]Group{{ID: TitleID, First: 0, Last: None, Name: title}}, h.groups...)
}

// AddGroup creates a new group spanning first to last. Pass None as last for
// a single track group, and None as both for an empty group. The group ID is
// used up even if the group is rejected.
func (h *Header) AddGroup(name string, first, last int) (int, error) {
	id := h.nextID
	h.nextID++
	if first == 0 {
		return 0, fmt.Errorf("%w: track 0 is reserved for the disc title", ErrValidation)
	}
	if last == first {
		last = None
	}
	groups := append(h.clone(), Group{ID: id, First: first, Last: last, Name: name})
	if err := h.commit(groups); err != nil {
		return 0, err
	}
	return id, nil
}

// AddTrackToGroup extends a group by one track, which must directly precede
// or follow the group's range.
func (h *Header) AddTrackToGroup(gid, track int) error {
	i := h.index(gid)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNoSuchGroup, gid)
	}
	groups := h.clone()
	g := &groups[i]
	switch {
	case g.First == None:
		g.First = track
	case g.First-track == 1:
		if g.Last == None {
			g.Last = g.First
		}
		g.First = track
	case track-g.last() == 1:
		g.Last = track
	default:
		return fmt.Errorf("%w: track %d is not adjacent to group %q", ErrValidation, track, g.Name)
	}
	return h.commit(groups)
}

// RemoveTrackFromGroup shrinks a group by one track at either end of its
// range. A single track group becomes empty.
func (h *Header) RemoveTrackFromGroup(gid, track int) error {
	i := h.index(gid)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNoSuchGroup, gid)
	}
	groups := h.clone()
	g := &groups[i]
	if !g.Contains(track) {
		return fmt.Errorf("%w: track %d is not in group %q", ErrValidation, track, g.Name)
	}
	first, last := g.First, g.last()
	switch {
	case first == last:
		g.First, g.Last = None, None
	case track == first:
		g.First++
	case track == last:
		g.Last--
	default:
		return fmt.Errorf("%w: track %d is inside group %q", ErrValidation, track, g.Name)
	}
	if g.Last == g.First {
		g.Last = None
	}
	return h.commit(groups)
}

// DeleteGroup removes a group. Its tracks become ungrouped.
func (h *Header) DeleteGroup(gid int) error {
	if gid == TitleID {
		return fmt.Errorf("%w: the disc title cannot be deleted", ErrValidation)
	}
	i := h.index(gid)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNoSuchGroup, gid)
	}
	h.groups = append(h.groups[:i:i], h.groups[i+1:]...)
	return nil
}

func (h *Header) RenameGroup(gid int, name string) error {
	i := h.index(gid)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNoSuchGroup, gid)
	}
	h.groups[i].Name = name
	return nil
}

// TrackGroup returns the group containing track.
func (h *Header) TrackGroup(track int) (name string, gid int, ok bool) {
	for _, g := range h.groups {
		if g.Contains(track) {
			return g.Name, g.ID, true
		}
	}
	return "", 0, false
}

// Ungroup removes a track from whichever group contains it.
func (h *Header) Ungroup(track int) error {
	_, gid, ok := h.TrackGroup(track)
	if !ok {
		return fmt.Errorf("%w: track %d is not grouped", ErrNoSuchGroup, track)
	}
	return h.RemoveTrackFromGroup(gid, track)
}

// DeleteTrack updates the groups after a track was erased from the disc:
// the containing group shrinks, and all later tracks move down by one.
func (h *Header) DeleteTrack(track int) error {
	groups := h.clone()
	for i := range groups {
		g := &groups[i]
		switch {
		case g.First <= 0:
		case g.Contains(track):
			if g.First == g.last() {
				g.First, g.Last = None, None
			} else {
				g.Last--
			}
		case g.First > track:
			g.First--
			if g.Last != None {
				g.Last--
			}
		}
		if g.Last != None && g.Last == g.First {
			g.Last = None
		}
	}
	return h.commit(groups)
}
