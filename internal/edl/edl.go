// Package edl imports and exports cut lists: plain EDL text and
// m3u8 playlists whose EXTINF durations describe consecutive cues.
package edl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/agleyzer/trimcut/internal/segment"
	"github.com/agleyzer/trimcut/internal/store"
)

// Entry is one imported cut before registration. Either bound may be
// absent, matching open-ended segments.
type Entry struct {
	Start *float64
	End   *float64
	Name  string
}

// Mode selects how imported entries merge with the existing collection.
type Mode int

const (
	// ModeReplace discards the current collection.
	ModeReplace Mode = iota
	// ModeAppend keeps existing segments and adds the imported ones.
	ModeAppend
)

// ParseM3U8 parses a media playlist and converts its EXTINF durations
// into consecutive cut entries. Segment titles become entry names.
func ParseM3U8(r io.Reader) ([]Entry, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected media playlist, got master playlist")
	}

	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	var entries []Entry
	offset := 0.0
	for _, seg := range mediaPlaylist.Segments {
		if seg == nil {
			break
		}

		start := offset
		end := offset + seg.Duration
		entries = append(entries, Entry{
			Start: segment.Bound(start),
			End:   segment.Bound(end),
			Name:  seg.Title,
		})
		offset = end
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("playlist contains no segments")
	}

	return entries, nil
}

// ParseEDL parses plain EDL text: one cut per line, start and end in
// seconds separated by whitespace, with an optional trailing name.
// Blank lines and lines starting with '#' are skipped.
func ParseEDL(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected start and end times", lineNo)
		}

		start, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid start time %q: %w", lineNo, fields[0], err)
		}
		end, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid end time %q: %w", lineNo, fields[1], err)
		}

		name := ""
		if len(fields) > 2 {
			name = strings.Join(fields[2:], " ")
		}

		entries = append(entries, Entry{
			Start: segment.Bound(start),
			End:   segment.Bound(end),
			Name:  name,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cut list: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("cut list contains no entries")
	}

	return entries, nil
}

// LoadFile parses a cut list file, choosing the format by extension:
// .m3u8/.m3u parse as playlists, everything else as plain EDL text.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cut list: %w", err)
	}
	defer f.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".m3u8") || strings.HasSuffix(lower, ".m3u") {
		return ParseM3U8(f)
	}
	return ParseEDL(f)
}

// Import registers valid entries in the store. Entries with both bounds
// set where start is at or past end, or with a negative start, are
// dropped. If nothing survives, the store is untouched and
// ErrNoValidSegments is returned.
func Import(st *store.Store, entries []Entry, mode Mode) error {
	var valid []Entry
	for _, e := range entries {
		if e.Start != nil && e.End != nil && *e.Start >= *e.End {
			continue
		}
		if e.Start != nil && *e.Start < 0 {
			continue
		}
		valid = append(valid, e)
	}

	if len(valid) == 0 {
		return store.ErrNoValidSegments
	}

	live := 0
	if mode == ModeAppend {
		existing := st.Segments()
		live = len(existing)
		if live == 1 && existing[0].IsPlaceholder() {
			live = 0
		}
	}
	if live+len(valid) > st.MaxSegments() {
		return store.ErrTooManySegments
	}

	segments := make([]segment.Segment, len(valid))
	for i, e := range valid {
		segments[i] = st.Create(e.Start, e.End, e.Name, true)
	}

	if mode == ModeAppend {
		return st.Append(segments)
	}
	return st.ReplaceAll(segments)
}

// ExportM3U8 renders segments as a VOD-style playlist: one EXTINF per
// segment with its name as the title, and a media fragment URI pointing
// back into the source.
func ExportM3U8(segments []segment.Segment, source string, duration float64) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for _, seg := range segments {
		if seg.IsPlaceholder() {
			continue
		}
		start := seg.ApparentStart()
		end := seg.ApparentEnd(duration)
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,%s\n", end-start, seg.Name))
		b.WriteString(fmt.Sprintf("%s#t=%.3f,%.3f\n", source, start, end))
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// ExportEDL renders segments as plain EDL text, one cut per line.
func ExportEDL(segments []segment.Segment, duration float64) string {
	var b strings.Builder

	for _, seg := range segments {
		if seg.IsPlaceholder() {
			continue
		}
		b.WriteString(fmt.Sprintf("%.3f\t%.3f", seg.ApparentStart(), seg.ApparentEnd(duration)))
		if seg.Name != "" {
			b.WriteString("\t")
			b.WriteString(seg.Name)
		}
		b.WriteString("\n")
	}

	return b.String()
}
