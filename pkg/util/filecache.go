// FileCache provides fast repeated access to stylesheet sources using
// memory-mapped files.
//
// **Why mmap:**
//   - Watch mode re-reads the same entry and its imports on every change burst
//   - Only accessed pages are loaded into RAM (on-demand paging)
//   - Graceful fallback to os.ReadFile if mmap fails
//
// **Lifecycle:**
//   - Lazy loading: files are mapped on first access
//   - Invalidate(path) drops a single file (watcher calls this on change/remove)
//   - Close() unmaps everything
//
// Returned byte slices alias the mapping and stay valid until the file is
// invalidated or the cache closed; callers must not retain them across either.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// FileCache is the local read capability handed to the stylesheet loader.
//
// Thread-safe: parallel reads under RWMutex, exclusive loads/invalidations.
type FileCache interface {
	// Get returns the mmap'd file, loading it on first access.
	Get(filePath string) (*MappedFile, error)

	// ReadFile returns the file's full content. The slice aliases the
	// mapping; see the package comment for validity rules.
	ReadFile(filePath string) ([]byte, error)

	// Invalidate drops one file from the cache, unmapping it if needed.
	// Unknown paths are a no-op.
	Invalidate(filePath string)

	// Size returns the number of currently cached files.
	Size() int

	// Stats returns current cache metrics.
	Stats() FileCacheStats

	// Close unmaps all files and releases resources.
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles is the maximum number of files to keep cached.
	// 0 means unlimited. When the limit is reached Get returns an error;
	// stylesheet trees rarely approach it.
	MaxFiles int

	// MaxMemoryMB limits the total mapped virtual memory (address space,
	// not physical RAM). 0 means unlimited.
	MaxMemoryMB int

	// EnableMetrics determines whether to track cache statistics.
	EnableMetrics bool

	// Logger for warnings and errors. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns defaults sized for stylesheet trees.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:      4096,
		MaxMemoryMB:   512,
		EnableMetrics: true,
		Logger:        nil,
	}
}

// MappedFile represents a memory-mapped file.
type MappedFile struct {
	// Path is the absolute path to the source file.
	Path string

	// Data is the memory-mapped region; nil for empty files.
	Data mmap.MMap

	// File is the underlying descriptor, kept open so Close can release it.
	// Nil for fallback entries (when mmap failed).
	File *os.File

	// Size is the file size in bytes.
	Size int64

	// MappedAt is when this file was first mapped.
	MappedAt time.Time
}

// FileCacheStats tracks cache performance metrics.
type FileCacheStats struct {
	// FilesLoaded is the total number of files loaded (cumulative).
	FilesLoaded int64

	// FilesCached is the current number of cached files.
	FilesCached int

	// CacheHits is the number of successful cache lookups (cumulative).
	CacheHits int64

	// CacheMisses is the number of cache misses (cumulative).
	CacheMisses int64

	// Invalidations is the number of entries dropped by Invalidate.
	Invalidations int64

	// MmapFailures is the number of files that fell back to os.ReadFile.
	MmapFailures int64

	// TotalMappedMB is the total virtual memory currently mapped.
	TotalMappedMB float64
}

// NewFileCache creates a new FileCache with the given config.
//
// If config is nil, uses DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &fileCacheImpl{
		config:        config,
		cache:         make(map[string]*MappedFile),
		fallbackCache: make(map[string][]byte),
		logger:        config.Logger,
	}
}

// fileCacheImpl is the internal implementation of FileCache.
//
// Thread-safety:
//   - mu (RWMutex) protects cache and fallbackCache
//   - statsMu protects stats, separately, to keep read paths uncontended
type fileCacheImpl struct {
	config *FileCacheConfig
	logger *slog.Logger

	cache         map[string]*MappedFile // path → mmap'd file
	fallbackCache map[string][]byte      // path → byte slice (for failed mmaps)
	mu            sync.RWMutex

	stats   FileCacheStats
	statsMu sync.Mutex
}

// Get returns the mmap'd file or loads it on first access.
func (fc *fileCacheImpl) Get(filePath string) (*MappedFile, error) {
	// Fast path: RLock allows parallel readers.
	fc.mu.RLock()
	if mf, ok := fc.cache[filePath]; ok {
		fc.mu.RUnlock()
		fc.recordHit()
		return mf, nil
	}
	if data, ok := fc.fallbackCache[filePath]; ok {
		fc.mu.RUnlock()
		fc.recordHit()
		return fc.wrapFallbackData(filePath, data), nil
	}
	fc.mu.RUnlock()

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Double-check: another goroutine may have loaded it while we waited.
	if mf, ok := fc.cache[filePath]; ok {
		fc.recordHit()
		return mf, nil
	}
	if data, ok := fc.fallbackCache[filePath]; ok {
		fc.recordHit()
		return fc.wrapFallbackData(filePath, data), nil
	}

	var fileSize int64
	if fc.config.MaxMemoryMB > 0 {
		stat, err := os.Stat(filePath)
		if err != nil {
			fc.recordMiss()
			return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
		}
		fileSize = stat.Size()
	}

	if err := fc.checkLimitsWithNewFile(fileSize); err != nil {
		fc.recordMiss()
		return nil, err
	}

	mf, err := fc.loadFile(filePath)
	if err != nil {
		fc.recordMiss()
		return nil, err
	}

	fc.cache[filePath] = mf
	fc.recordLoad()

	return mf, nil
}

// ReadFile returns the file's full content via the mapping.
func (fc *fileCacheImpl) ReadFile(filePath string) ([]byte, error) {
	mf, err := fc.Get(filePath)
	if err != nil {
		return nil, err
	}
	if len(mf.Data) == 0 {
		return nil, nil
	}
	return mf.Data, nil
}

// Invalidate drops one file from the cache.
func (fc *fileCacheImpl) Invalidate(filePath string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if mf, ok := fc.cache[filePath]; ok {
		if mf.Data != nil {
			if err := mf.Data.Unmap(); err != nil {
				fc.logger.Warn("failed to unmap file", "path", filePath, "error", err)
			}
		}
		if mf.File != nil {
			_ = mf.File.Close()
		}
		delete(fc.cache, filePath)
		fc.recordInvalidation()
		return
	}
	if _, ok := fc.fallbackCache[filePath]; ok {
		delete(fc.fallbackCache, filePath)
		fc.recordInvalidation()
	}
}

// checkLimitsWithNewFile verifies that adding a new file won't exceed limits.
//
// Must be called while holding mu.Lock.
func (fc *fileCacheImpl) checkLimitsWithNewFile(newFileSize int64) error {
	if fc.config.MaxFiles > 0 {
		currentFiles := len(fc.cache) + len(fc.fallbackCache)
		if currentFiles >= fc.config.MaxFiles {
			return fmt.Errorf("FileCache limit reached: %d files (limit: %d files); increase FileCacheConfig.MaxFiles",
				currentFiles, fc.config.MaxFiles)
		}
	}

	if fc.config.MaxMemoryMB > 0 && newFileSize > 0 {
		currentMB := fc.calculateTotalMappedMBLocked()
		newFileMB := float64(newFileSize) / (1024 * 1024)
		if currentMB+newFileMB >= float64(fc.config.MaxMemoryMB) {
			return fmt.Errorf("FileCache memory limit reached: %.2f MB + %.2f MB (limit: %d MB); increase FileCacheConfig.MaxMemoryMB",
				currentMB, newFileMB, fc.config.MaxMemoryMB)
		}
	}

	return nil
}

// loadFile opens and mmaps a file, with fallback to os.ReadFile if mmap fails.
//
// Must be called while holding mu.Lock.
func (fc *fileCacheImpl) loadFile(filePath string) (*MappedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	// Empty files can't be mmap'd.
	if stat.Size() == 0 {
		return &MappedFile{
			Path:     filePath,
			Data:     nil,
			File:     file,
			Size:     0,
			MappedAt: time.Now(),
		}, nil
	}

	mmapData, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		fc.logger.Warn("mmap failed, using fallback",
			"file", filePath,
			"size", stat.Size(),
			"error", err)

		data, readErr := os.ReadFile(filePath)
		if readErr != nil {
			file.Close()
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				filePath, err, readErr)
		}

		fc.fallbackCache[filePath] = data
		fc.recordMmapFailure()
		file.Close()

		return fc.wrapFallbackData(filePath, data), nil
	}

	return &MappedFile{
		Path:     filePath,
		Data:     mmapData,
		File:     file,
		Size:     stat.Size(),
		MappedAt: time.Now(),
	}, nil
}

// wrapFallbackData wraps a byte slice as a MappedFile so both storage paths
// look the same to callers.
func (fc *fileCacheImpl) wrapFallbackData(filePath string, data []byte) *MappedFile {
	return &MappedFile{
		Path:     filePath,
		Data:     mmap.MMap(data),
		File:     nil,
		Size:     int64(len(data)),
		MappedAt: time.Now(),
	}
}

// Size returns the number of currently cached files.
func (fc *fileCacheImpl) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return len(fc.cache) + len(fc.fallbackCache)
}

// Stats returns current cache metrics.
func (fc *fileCacheImpl) Stats() FileCacheStats {
	fc.mu.RLock()
	cachedFiles := len(fc.cache) + len(fc.fallbackCache)
	totalMappedMB := fc.calculateTotalMappedMBLocked()
	fc.mu.RUnlock()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()

	stats := fc.stats
	stats.FilesCached = cachedFiles
	stats.TotalMappedMB = totalMappedMB

	return stats
}

// calculateTotalMappedMBLocked sums mapped bytes.
//
// Must be called while holding mu.RLock or mu.Lock.
func (fc *fileCacheImpl) calculateTotalMappedMBLocked() float64 {
	total := int64(0)
	for _, mf := range fc.cache {
		total += mf.Size
	}
	for _, data := range fc.fallbackCache {
		total += int64(len(data))
	}
	return float64(total) / (1024 * 1024)
}

// Close unmaps all files and releases resources.
func (fc *fileCacheImpl) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var errs []error

	for path, mf := range fc.cache {
		if mf.Data != nil {
			if err := mf.Data.Unmap(); err != nil {
				fc.logger.Warn("failed to unmap file", "path", path, "error", err)
				errs = append(errs, fmt.Errorf("unmap %q: %w", path, err))
			}
		}
		if mf.File != nil {
			if err := mf.File.Close(); err != nil {
				fc.logger.Warn("failed to close file", "path", path, "error", err)
				errs = append(errs, fmt.Errorf("close %q: %w", path, err))
			}
		}
	}

	fc.cache = make(map[string]*MappedFile)
	fc.fallbackCache = make(map[string][]byte)

	fc.logger.Debug("FileCache closed",
		"files_loaded", fc.stats.FilesLoaded,
		"cache_hits", fc.stats.CacheHits,
		"cache_misses", fc.stats.CacheMisses,
		"mmap_failures", fc.stats.MmapFailures)

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// Metrics recording methods

func (fc *fileCacheImpl) recordHit() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.CacheHits++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordMiss() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.CacheMisses++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordLoad() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.FilesLoaded++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordInvalidation() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.Invalidations++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordMmapFailure() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.MmapFailures++
	fc.statsMu.Unlock()
}
