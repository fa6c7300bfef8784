package session

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// JournalFile describes one journal on disk.
type JournalFile struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	NumEvents int
}

// ListJournals returns the journals in dir, newest first. Journal names
// start with their UTC creation time, so name order is creation order.
func ListJournals(dir string) ([]JournalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading journal directory: %w", err)
	}

	var files []JournalFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), journalSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		jf := JournalFile{
			Path:    filepath.Join(dir, e.Name()),
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if events, err := ReadEvents(jf.Path); err == nil {
			jf.NumEvents = len(events)
		}
		files = append(files, jf)
	}

	slices.SortFunc(files, func(a, b JournalFile) int {
		return cmp.Compare(b.Name, a.Name)
	})
	return files, nil
}

// ReadEvents parses a journal file. Lines that are not valid events are
// skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close() //nolint:errcheck

	events, err := decodeEvents(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", filepath.Base(path), err)
	}
	return events, nil
}

func decodeEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var ev Event
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// Tally counts journal events by kind.
type Tally struct {
	Results     int
	Stale       int
	Inspections int
	Exports     int
	Errors      int
}

// CountEvents tallies events.
func CountEvents(events []Event) Tally {
	var t Tally
	for _, ev := range events {
		switch ev.Type {
		case EventResultApplied:
			t.Results++
		case EventStaleDiscarded:
			t.Stale++
		case EventInspectionSet:
			t.Inspections++
		case EventReportExported:
			t.Exports++
		case EventError:
			t.Errors++
		}
	}
	return t
}

// RenderTimeline writes one line per event, offset from the first event,
// followed by the event tally.
//
//nolint:errcheck // display-only writes
func RenderTimeline(w io.Writer, events []Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	start := events[0].Timestamp
	for _, ev := range events {
		fmt.Fprintf(w, "[%s] %s\n", offset(ev.Timestamp.Sub(start)), describe(ev))
	}

	t := CountEvents(events)
	fmt.Fprintf(w, "\n%d result(s) loaded, %d stale discarded, %d status change(s), %d export(s), %d error(s)\n",
		t.Results, t.Stale, t.Inspections, t.Exports, t.Errors)
}

func describe(ev Event) string {
	str := func(key string) string {
		s, _ := ev.Data[key].(string) //nolint:errcheck
		return s
	}

	switch ev.Type {
	case EventSessionStart:
		return fmt.Sprintf("session started  user=%s  api=%s", str("user_id"), str("api_url"))
	case EventResultApplied:
		return fmt.Sprintf("result #%d loaded from %s  consumers=%d  anomalies=%d",
			intValue(ev.Data["token"]), str("source"), intValue(ev.Data["consumers"]), intValue(ev.Data["anomalies"]))
	case EventStaleDiscarded:
		return fmt.Sprintf("stale result #%d from %s discarded (showing #%d)",
			intValue(ev.Data["token"]), str("source"), intValue(ev.Data["current"]))
	case EventInspectionSet:
		return fmt.Sprintf("inspection %s -> %s", str("consumer_id"), str("status"))
	case EventReportExported:
		return fmt.Sprintf("report exported to %s (%s)", str("path"), str("format"))
	case EventError:
		return fmt.Sprintf("error in %s: %s", str("op"), str("message"))
	}
	return fmt.Sprintf("%s %v", ev.Type, ev.Data)
}

func offset(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%6dms", d.Milliseconds())
	}
	return fmt.Sprintf("%6.1fs", d.Seconds())
}

// intValue reads an integer from a JSON-decoded value.
func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	case json.Number:
		i, _ := n.Int64() //nolint:errcheck
		return int(i)
	}
	return 0
}
