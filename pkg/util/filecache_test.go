// Tests for FileCache with mmap-based stylesheet access.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestFiles creates temporary stylesheet files for testing.
func setupTestFiles(t *testing.T) (dir string, files map[string]string) {
	t.Helper()

	dir = t.TempDir()
	files = make(map[string]string)

	buttonCSS := `.button {
  color: red;
}
.buttonActive {
  color: darkred;
}`
	buttonPath := filepath.Join(dir, "button.module.css")
	require.NoError(t, os.WriteFile(buttonPath, []byte(buttonCSS), 0644))
	files["button.module.css"] = buttonPath

	baseCSS := `@value primary: #0af;

.base {
  composes: reset from "./reset.css";
  padding: 4px;
}`
	basePath := filepath.Join(dir, "base.module.css")
	require.NoError(t, os.WriteFile(basePath, []byte(baseCSS), 0644))
	files["base.module.css"] = basePath

	// Unicode file (emoji class content + Chinese comment)
	unicodeCSS := `/* 样式 */
.greet::after {
  content: "👋";
}`
	unicodePath := filepath.Join(dir, "unicode.module.css")
	require.NoError(t, os.WriteFile(unicodePath, []byte(unicodeCSS), 0644))
	files["unicode.module.css"] = unicodePath

	// Empty file
	emptyPath := filepath.Join(dir, "empty.module.css")
	require.NoError(t, os.WriteFile(emptyPath, []byte{}, 0644))
	files["empty.module.css"] = emptyPath

	return dir, files
}

// TestFileCache_BasicOperations verifies core FileCache operations.
func TestFileCache_BasicOperations(t *testing.T) {
	_, files := setupTestFiles(t)
	cssPath := files["button.module.css"]

	cache := NewFileCache(DefaultFileCacheConfig())
	defer cache.Close()

	assert.Equal(t, 0, cache.Size(), "Initial cache should be empty")

	// Get file (should load and mmap it)
	mf, err := cache.Get(cssPath)
	require.NoError(t, err)
	require.NotNil(t, mf)
	assert.Equal(t, cssPath, mf.Path)
	assert.NotNil(t, mf.Data)
	assert.Greater(t, mf.Size, int64(0))

	assert.Equal(t, 1, cache.Size(), "Cache should contain 1 file")

	// Get same file again (should hit cache)
	mf2, err := cache.Get(cssPath)
	require.NoError(t, err)
	assert.Equal(t, mf.Path, mf2.Path)

	// ReadFile returns the full content
	content, err := cache.ReadFile(cssPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), ".buttonActive")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.FilesCached)
	assert.Greater(t, stats.CacheHits, int64(0))
	assert.Equal(t, int64(1), stats.FilesLoaded)
	assert.Greater(t, stats.TotalMappedMB, float64(0))

	err = cache.Close()
	assert.NoError(t, err)
	assert.Equal(t, 0, cache.Size())

	t.Logf("Cache stats: loaded=%d, hits=%d, misses=%d, mapped=%.2f MB",
		stats.FilesLoaded, stats.CacheHits, stats.CacheMisses, stats.TotalMappedMB)
}

// TestFileCache_Limits_MaxFiles verifies MaxFiles limit enforcement.
func TestFileCache_Limits_MaxFiles(t *testing.T) {
	dir := t.TempDir()

	config := &FileCacheConfig{
		MaxFiles:      2,
		MaxMemoryMB:   0,
		EnableMetrics: true,
	}
	cache := NewFileCache(config)
	defer cache.Close()

	file1 := filepath.Join(dir, "a.module.css")
	file2 := filepath.Join(dir, "b.module.css")
	file3 := filepath.Join(dir, "c.module.css")
	require.NoError(t, os.WriteFile(file1, []byte(".a {}"), 0644))
	require.NoError(t, os.WriteFile(file2, []byte(".b {}"), 0644))
	require.NoError(t, os.WriteFile(file3, []byte(".c {}"), 0644))

	_, err := cache.Get(file1)
	require.NoError(t, err)
	_, err = cache.Get(file2)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Size())

	// Third file exceeds the limit
	_, err = cache.Get(file3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FileCache limit reached")
	assert.Equal(t, 2, cache.Size())

	// Invalidating one frees a slot
	cache.Invalidate(file1)
	assert.Equal(t, 1, cache.Size())
	_, err = cache.Get(file3)
	require.NoError(t, err)
}

// TestFileCache_Limits_MaxMemoryMB verifies MaxMemoryMB limit enforcement.
func TestFileCache_Limits_MaxMemoryMB(t *testing.T) {
	dir := t.TempDir()

	config := &FileCacheConfig{
		MaxFiles:      0,
		MaxMemoryMB:   1,
		EnableMetrics: true,
	}
	cache := NewFileCache(config)
	defer cache.Close()

	smallContent := strings.Repeat("x", 512*1024) // 0.5MB
	smallPath := filepath.Join(dir, "small.css")
	require.NoError(t, os.WriteFile(smallPath, []byte(smallContent), 0644))

	_, err := cache.Get(smallPath)
	require.NoError(t, err)

	mediumContent := strings.Repeat("y", 614*1024) // 0.6MB; total would exceed 1MB
	mediumPath := filepath.Join(dir, "medium.css")
	require.NoError(t, os.WriteFile(mediumPath, []byte(mediumContent), 0644))

	_, err = cache.Get(mediumPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FileCache memory limit reached")
}

// TestFileCache_Invalidate verifies single-file invalidation and reload.
func TestFileCache_Invalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tile.module.css")
	require.NoError(t, os.WriteFile(path, []byte(".tile { margin: 0; }"), 0644))

	cache := NewFileCache(DefaultFileCacheConfig())
	defer cache.Close()

	content, err := cache.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), ".tile")

	// Rewrite the file, invalidate, reload
	require.NoError(t, os.WriteFile(path, []byte(".tile { margin: 2px; }\n.tileWide {}"), 0644))
	cache.Invalidate(path)
	assert.Equal(t, 0, cache.Size())

	content, err = cache.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), ".tileWide")

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Invalidations)
	assert.Equal(t, int64(2), stats.FilesLoaded)

	// Unknown path is a no-op
	cache.Invalidate(filepath.Join(dir, "nope.css"))
	assert.Equal(t, int64(1), cache.Stats().Invalidations)
}

// TestFileCache_ConcurrentAccess verifies thread-safe concurrent access.
func TestFileCache_ConcurrentAccess(t *testing.T) {
	_, files := setupTestFiles(t)
	buttonPath := files["button.module.css"]
	basePath := files["base.module.css"]

	cache := NewFileCache(DefaultFileCacheConfig())
	defer cache.Close()

	numGoroutines := 100
	var wg sync.WaitGroup
	errors := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			path := buttonPath
			if id%2 == 0 {
				path = basePath
			}

			content, err := cache.ReadFile(path)
			if err != nil {
				errors <- fmt.Errorf("goroutine %d ReadFile failed: %w", id, err)
				return
			}
			if len(content) == 0 {
				errors <- fmt.Errorf("goroutine %d got empty content", id)
			}
		}(i)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Error(err)
	}

	stats := cache.Stats()
	assert.Equal(t, 2, stats.FilesCached) // Only 2 unique files
	assert.Greater(t, stats.CacheHits, int64(90))

	t.Logf("Concurrent access: %d goroutines, %d hits, %d misses",
		numGoroutines, stats.CacheHits, stats.CacheMisses)
}

// TestFileCache_UnicodeHandling verifies multi-byte content survives mapping.
func TestFileCache_UnicodeHandling(t *testing.T) {
	_, files := setupTestFiles(t)
	unicodePath := files["unicode.module.css"]

	cache := NewFileCache(DefaultFileCacheConfig())
	defer cache.Close()

	content, err := cache.ReadFile(unicodePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "👋")
	assert.Contains(t, string(content), "样式")
}

// TestFileCache_EmptyFiles verifies handling of empty files.
func TestFileCache_EmptyFiles(t *testing.T) {
	_, files := setupTestFiles(t)
	emptyPath := files["empty.module.css"]

	cache := NewFileCache(DefaultFileCacheConfig())
	defer cache.Close()

	mf, err := cache.Get(emptyPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), mf.Size)
	assert.Nil(t, mf.Data)

	content, err := cache.ReadFile(emptyPath)
	require.NoError(t, err)
	assert.Empty(t, content)
}

// TestFileCache_ResourceCleanup verifies Close() releases resources.
func TestFileCache_ResourceCleanup(t *testing.T) {
	_, files := setupTestFiles(t)
	cssPath := files["button.module.css"]

	cache := NewFileCache(DefaultFileCacheConfig())

	_, err := cache.Get(cssPath)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	err = cache.Close()
	assert.NoError(t, err)
	assert.Equal(t, 0, cache.Size())

	// Get after Close reloads the file
	_, err = cache.Get(cssPath)
	require.NoError(t, err)

	err = cache.Close()
	assert.NoError(t, err)
}

// TestFileCache_FileNotFound verifies error handling for missing files.
func TestFileCache_FileNotFound(t *testing.T) {
	cache := NewFileCache(DefaultFileCacheConfig())
	defer cache.Close()

	_, err := cache.Get("/nonexistent/path/style.css")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to") // "failed to stat" or "failed to open"

	_, err = cache.ReadFile("/nonexistent/path/style.css")
	require.Error(t, err)
}

// BenchmarkFileCache_VsReadFile compares mmap-backed reads against os.ReadFile
// for the repeated-read pattern watch mode produces.
func BenchmarkFileCache_VsReadFile(b *testing.B) {
	dir := b.TempDir()

	numFiles := 10
	files := make([]string, numFiles)
	for i := 0; i < numFiles; i++ {
		path := filepath.Join(dir, fmt.Sprintf("sheet%d.module.css", i))
		content := strings.Repeat(fmt.Sprintf(".cls%d { color: red; }\n", i), 500)
		require.NoError(b, os.WriteFile(path, []byte(content), 0644))
		files[i] = path
	}

	b.Run("FileCache_mmap", func(b *testing.B) {
		cache := NewFileCache(DefaultFileCacheConfig())
		defer cache.Close()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			path := files[i%numFiles]
			if _, err := cache.ReadFile(path); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("ReadFile", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			path := files[i%numFiles]
			if _, err := os.ReadFile(path); err != nil {
				b.Fatal(err)
			}
		}
	})
}
