// Package config loads the mooWApp configuration file: a bespoke
// key=value format with '#' comments and '|'-separated list values.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Retention and cadence constants. These are fixed by design, not
// configurable from the file.
const (
	CompressionInterval   = 5 * time.Minute
	DaysForMinutesDetails = 3
	DaysForDetails        = 7
	DaysForHoursDetails   = 31
)

// LogSource is one configured access-log file to tail.
type LogSource struct {
	Index  int
	Format string // "timestamp" or "date"
	Path   string
}

// Config is the typed configuration record loaded once at startup.
type Config struct {
	DBPath string
	DBName string

	FilterPath string
	FilterSSL  string

	// FilterExtension maps a page-group name to the set of exact
	// extensions (with leading dot) that belong to it.
	FilterExtension map[string][]string

	FilterURL1 string
	FilterURL2 string
	FilterURL3 string

	ExcludeMod string

	Compression bool

	ListeningPort string

	LogsReadInterval time.Duration

	LogSources []LogSource

	// LiveFeed gates the additive /ws/live websocket endpoint (internal/livefeed).
	// Not part of the original configuration record; off by default so its
	// absence never changes the core JSON/JSONP contract.
	LiveFeed bool

	// MaxStorageGB bounds the /storage/usage status endpoint's reported
	// limit. Not part of the original configuration record.
	MaxStorageGB int64
}

// defaults mirrors the original mooWApp Config::Config constructor.
func defaults() Config {
	return Config{
		DBPath:        "/data/",
		DBName:        "storage.db",
		FilterPath:    ".",
		FilterSSL:     "access.log",
		FilterURL1:    " 200 ",
		FilterURL2:    " 302 ",
		FilterURL3:    " 404 ",
		ExcludeMod:    "_v0",
		Compression:   false,
		ListeningPort:    "9999",
		LogsReadInterval: 10 * time.Second,
		LiveFeed:         false,
		MaxStorageGB:     1,
	}
}

// Load parses the configuration file at path. Any I/O error opening the
// file is fatal to the caller: the server cannot start without it.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening configuration file %q: %w", path, err)
	}
	defer f.Close()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		raw[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("reading configuration file %q: %w", path, err)
	}

	cfg := defaults()

	if v, ok := raw["DB_PATH"]; ok {
		cfg.DBPath = v
	}
	if v, ok := raw["DB_NAME"]; ok {
		cfg.DBName = v
	}
	if v, ok := raw["FILTER_PATH"]; ok {
		cfg.FilterPath = v
	}
	if v, ok := raw["FILTER_SSL"]; ok {
		cfg.FilterSSL = v
	}

	strPageGroups := "w"
	if v, ok := raw["FILTER_EXTENSION"]; ok {
		strPageGroups = v
	}
	cfg.FilterExtension = make(map[string][]string)
	for _, group := range splitList(strPageGroups) {
		extList, ok := raw[group]
		if !ok {
			return Config{}, fmt.Errorf("missing configuration for key=%s", group)
		}
		cfg.FilterExtension[group] = splitList(extList)
	}

	if v, ok := raw["FILTER_URL1"]; ok {
		cfg.FilterURL1 = v
	}
	if v, ok := raw["FILTER_URL2"]; ok {
		cfg.FilterURL2 = v
	}
	if v, ok := raw["FILTER_URL3"]; ok {
		cfg.FilterURL3 = v
	}
	if v, ok := raw["EXCLUDE_MOD"]; ok {
		cfg.ExcludeMod = v
	}
	if v, ok := raw["COMPRESSION"]; ok {
		cfg.Compression = v == "on"
	}
	if v, ok := raw["LISTENING_PORT"]; ok {
		cfg.ListeningPort = v
	}
	if v, ok := raw["LIVE_FEED"]; ok {
		cfg.LiveFeed = v == "on"
	}
	if v, ok := raw["MAX_STORAGE_GB"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxStorageGB = n
		}
	}

	logFileNb := 1
	if v, ok := raw["LOGS_FILES_NB"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			logFileNb = n
		}
	}
	cfg.LogSources = make([]LogSource, 0, logFileNb)
	for i := 1; i <= logFileNb; i++ {
		format := "timestamp"
		if v, ok := raw[fmt.Sprintf("LOG_FILE_FORMAT.%d", i)]; ok {
			format = v
		}
		path := fmt.Sprintf("myFile.log.%d", i)
		if v, ok := raw[fmt.Sprintf("LOG_FILE_PATH.%d", i)]; ok {
			path = v
		}
		cfg.LogSources = append(cfg.LogSources, LogSource{Index: i, Format: format, Path: path})
	}

	if v, ok := raw["LOGS_READ_INTERVAL"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LogsReadInterval = time.Duration(n) * time.Second
		}
	}

	return cfg, nil
}

// splitList splits on '|' and drops empty tokens, mirroring the
// original's boost::split(..., boost::is_any_of("|")) behaviour closely
// enough for this format (no quoting, no escaping).
func splitList(s string) []string {
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
