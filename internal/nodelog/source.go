// Package nodelog reads a short recent window of the managed node's log
// output and extracts the two watchdog health signals from it: the newest
// block-production line and the newest reported hashrate figure.
package nodelog

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// windowLines is how much recent output a source returns. The watchdog only
// reasons about the last minute or two of node activity.
const windowLines = 200

// tailReadBytes bounds how much of the log file is read to find the window.
const tailReadBytes = 256 * 1024

// Entry is one log line with its parsed timestamp. At is zero when the line
// carried no recognizable timestamp; scanners treat such lines as unusable
// for age decisions.
type Entry struct {
	At   time.Time
	Text string
}

// Source yields the recent log window for one deployment mode.
type Source interface {
	// Recent returns up to windowLines of the newest log output,
	// oldest first.
	Recent() ([]Entry, error)
}

// FileSource tails the node log file written by the foreground manager.
type FileSource struct {
	Path string
}

// Recent reads the tail of the log file.
func (s *FileSource) Recent() ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening node log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat node log: %w", err)
	}

	offset := info.Size() - tailReadBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking node log: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading node log: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	// Drop the possibly partial first line of a mid-file read.
	if offset > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > windowLines {
		lines = lines[len(lines)-windowLines:]
	}

	return parseLines(lines), nil
}

// JournalSource reads the recent window from the systemd journal of the
// node's service unit.
type JournalSource struct {
	Unit string
}

// Recent shells out to journalctl for the unit's newest lines.
func (s *JournalSource) Recent() ([]Entry, error) {
	cmd := exec.Command("journalctl", "-u", s.Unit,
		"-n", fmt.Sprintf("%d", windowLines), "-o", "short-iso", "--no-pager")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("journalctl -u %s: %w", s.Unit, err)
	}
	return parseLines(strings.Split(string(output), "\n")), nil
}

// timestampFormats are the prefixes seen in node log files and journalctl
// short-iso output.
var timestampFormats = []string{
	"2006-01-02T15:04:05-0700", // journalctl short-iso
	"2006-01-02 15:04:05",      // node's own log prefix
}

func parseLines(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, Entry{At: parseTimestamp(line), Text: line})
	}
	return entries
}

func parseTimestamp(line string) time.Time {
	for _, format := range timestampFormats {
		if len(line) < len(format) {
			continue
		}
		if t, err := time.Parse(format, line[:len(format)]); err == nil {
			return t
		}
	}
	return time.Time{}
}
