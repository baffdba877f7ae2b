package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogEntry is one line of a category log
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads the files MultiLogger writes
type LogReader struct {
	logsDir      string
	pollInterval time.Duration
	now          func() time.Time
}

// NewLogReader creates a reader over logsDir
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{
		logsDir:      logsDir,
		pollInterval: 250 * time.Millisecond,
		now:          time.Now,
	}
}

// ParseCategory validates a category name
func ParseCategory(name string) (LogCategory, error) {
	for _, c := range categories {
		if string(c) == strings.ToLower(name) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown log category: %s", name)
}

// LogPath returns the file of a category for a date
func (lr *LogReader) LogPath(category LogCategory, date time.Time) string {
	return filepath.Join(lr.logsDir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))
}

// ReadLogs returns the last limit entries of a category for a date. A
// non-empty query keeps only entries whose message or fields contain it.
// A missing file yields no entries.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.LogPath(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	query = strings.ToLower(query)
	entries := []LogEntry{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(line), query) {
			continue
		}
		entries = append(entries, parseEntry(category, line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func parseEntry(category LogCategory, line string) LogEntry {
	entry := LogEntry{Category: string(category)}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		entry.Level = "info"
		entry.Message = line
		return entry
	}

	entry.Timestamp, _ = raw["ts"].(string)
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	delete(raw, "ts")
	delete(raw, "level")
	delete(raw, "msg")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry
}

// Follow sends the last backlog entries of today's category log and then
// every entry appended after them, until ctx ends. It waits for the file to
// appear and moves on to the next day's file once it exists.
func (lr *LogReader) Follow(ctx context.Context, category LogCategory, backlog int, out chan<- LogEntry) error {
	ticker := time.NewTicker(lr.pollInterval)
	defer ticker.Stop()

	var (
		file    *os.File
		reader  *bufio.Reader
		path    string
		partial string
	)
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	for first := true; ; first = false {
		if today := lr.LogPath(category, lr.now()); today != path {
			f, err := os.Open(today)
			switch {
			case err == nil:
				if file != nil {
					file.Close()
				}
				file, path, partial = f, today, ""
				reader = bufio.NewReader(f)
			case !os.IsNotExist(err):
				return err
			}
		}

		if reader != nil {
			var entries []LogEntry
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					// an unterminated line is still being written
					partial += line
					if err != io.EOF {
						return err
					}
					break
				}
				line = strings.TrimSpace(partial + line)
				partial = ""
				if line != "" {
					entries = append(entries, parseEntry(category, line))
				}
			}
			if first && len(entries) > backlog {
				entries = entries[len(entries)-backlog:]
			}
			for _, entry := range entries {
				select {
				case out <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
