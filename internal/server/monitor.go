package server

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const cacheDuration = 10 * time.Second

// StorageMonitor tracks on-disk store size with a short cache to avoid
// repeated filesystem walks on every /storage/usage request, adapted
// from pkg/server/monitor/storage.go.
type StorageMonitor struct {
	dataDir     string
	maxBytes    int64
	mu          sync.Mutex
	cachedUsage int64
	lastCheck   time.Time
}

// NewStorageMonitor creates a monitor over dataDir, capped at maxBytes.
func NewStorageMonitor(dataDir string, maxBytes int64) *StorageMonitor {
	return &StorageMonitor{dataDir: dataDir, maxBytes: maxBytes}
}

// Usage is the JSON-serialisable payload for /storage/usage.
type Usage struct {
	UsedBytes    int64  `json:"used_bytes"`
	MaxBytes     int64  `json:"max_bytes"`
	UsedReadable string `json:"used_readable"`
	MaxReadable  string `json:"max_readable"`
}

// Usage returns the current usage snapshot, recalculating the cache if stale.
func (sm *StorageMonitor) Usage() (Usage, error) {
	used, err := sm.getUsage()
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		UsedBytes:    used,
		MaxBytes:     sm.maxBytes,
		UsedReadable: humanize.Bytes(uint64(used)),
		MaxReadable:  humanize.Bytes(uint64(sm.maxBytes)),
	}, nil
}

func (sm *StorageMonitor) getUsage() (int64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if time.Since(sm.lastCheck) < cacheDuration && !sm.lastCheck.IsZero() {
		return sm.cachedUsage, nil
	}

	usage, err := calculateDirSize(sm.dataDir)
	if err != nil {
		return 0, err
	}
	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// calculateDirSize walks dataDir and sums actual on-disk block usage,
// not logical file size, so sparse files are accounted for correctly.
func calculateDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		actual, err := getActualFileSize(filePath, info)
		if err != nil {
			size += info.Size()
		} else {
			size += actual
		}
		return nil
	})
	return size, err
}
