package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/safeio"
	"github.com/rollup/plugins-sub001/internal/sourcemap"
)

const cacheSchemaVersion = "v1"

// DefaultCacheDir is the disk store location below the project root.
const DefaultCacheDir = ".cjsesm-cache"

type CacheOptions struct {
	// Enabled turns on the disk store. The in-memory layer is always on.
	Enabled  bool
	Path     string
	ReadOnly bool
}

// cacheEntry addresses one generated module. KeyDigest names the slot (module
// id and options) and InputDigest the content it was generated from, so a
// changed source is reported as an invalidation rather than a plain miss.
type cacheEntry struct {
	KeyLabel    string
	KeyDigest   string
	InputDigest string
}

type cachePointer struct {
	InputDigest  string `json:"inputDigest"`
	ObjectDigest string `json:"objectDigest"`
}

type cachedOutput struct {
	Code        string           `json:"code"`
	Changed     bool             `json:"changed"`
	Map         *sourcemap.Map   `json:"map,omitempty"`
	SideEffects bool             `json:"sideEffects"`
	Proxy       *commonjs.Output `json:"proxy,omitempty"`
}

// Cache memoizes generated modules. It holds an in-memory layer and, when
// enabled, a content-addressed disk store with keys/ and objects/
// directories. It is safe for concurrent use; the last writer of a key wins.
type Cache struct {
	options CacheOptions

	mu        sync.Mutex
	memory    map[string]cachedOutput
	metadata  report.CacheMetadata
	warnings  []string
	cacheable bool
}

func NewMemoryCache() *Cache {
	return NewCache(CacheOptions{})
}

func NewCache(options CacheOptions) *Cache {
	options.Path = strings.TrimSpace(options.Path)
	c := &Cache{
		options: options,
		memory:  map[string]cachedOutput{},
		metadata: report.CacheMetadata{
			Enabled:  options.Enabled,
			Path:     options.Path,
			ReadOnly: options.ReadOnly,
		},
	}
	if !options.Enabled || options.Path == "" {
		return c
	}
	for _, dir := range []string{"keys", "objects"} {
		if err := os.MkdirAll(filepath.Join(options.Path, dir), 0o750); err != nil {
			c.warn("module cache unavailable: " + err.Error())
			return c
		}
	}
	c.cacheable = true
	return c
}

func (c *Cache) warn(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	c.warnings = append(c.warnings, message)
}

// Warnings returns and clears the warnings collected so far.
func (c *Cache) Warnings() []string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.warnings) == 0 {
		return nil
	}
	out := append([]string(nil), c.warnings...)
	c.warnings = c.warnings[:0]
	return out
}

// Metadata returns a snapshot of the hit and miss counters.
func (c *Cache) Metadata() *report.CacheMetadata {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.metadata
	if len(c.metadata.Invalidations) > 0 {
		snapshot.Invalidations = append([]report.CacheInvalidation(nil), c.metadata.Invalidations...)
	}
	return &snapshot
}

func newCacheEntry(id string, slot, input any) (cacheEntry, error) {
	keyDigest, err := hashJSON(map[string]any{"schema": cacheSchemaVersion, "id": id, "slot": slot})
	if err != nil {
		return cacheEntry{}, err
	}
	inputDigest, err := hashJSON(input)
	if err != nil {
		return cacheEntry{}, err
	}
	return cacheEntry{KeyLabel: id, KeyDigest: keyDigest, InputDigest: inputDigest}, nil
}

func (c *Cache) lookup(entry cacheEntry) (cachedOutput, bool) {
	if c == nil {
		return cachedOutput{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if value, ok := c.memory[entry.KeyDigest+entry.InputDigest]; ok {
		c.metadata.Hits++
		return value, true
	}
	if !c.cacheable {
		c.metadata.Misses++
		return cachedOutput{}, false
	}
	value, reason := c.readDisk(entry)
	if reason != "" {
		c.metadata.Misses++
		if reason != "missing" {
			c.metadata.Invalidations = append(c.metadata.Invalidations, report.CacheInvalidation{Key: entry.KeyLabel, Reason: reason})
		}
		return cachedOutput{}, false
	}
	c.memory[entry.KeyDigest+entry.InputDigest] = value
	c.metadata.Hits++
	return value, true
}

// readDisk returns the stored value or the reason it could not be used.
func (c *Cache) readDisk(entry cacheEntry) (cachedOutput, string) {
	pointerPath := filepath.Join(c.options.Path, "keys", entry.KeyDigest+".json")
	pointerData, err := safeio.ReadFileUnder(c.options.Path, pointerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cachedOutput{}, "missing"
		}
		return cachedOutput{}, "pointer-read-error"
	}
	var pointer cachePointer
	if err := json.Unmarshal(pointerData, &pointer); err != nil {
		return cachedOutput{}, "pointer-corrupt"
	}
	if pointer.InputDigest != entry.InputDigest {
		return cachedOutput{}, "input-changed"
	}

	objectPath := filepath.Join(c.options.Path, "objects", pointer.ObjectDigest+".json")
	objectData, err := safeio.ReadFileUnder(c.options.Path, objectPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cachedOutput{}, "object-missing"
		}
		return cachedOutput{}, "object-read-error"
	}
	var value cachedOutput
	if err := json.Unmarshal(objectData, &value); err != nil {
		return cachedOutput{}, "object-corrupt"
	}
	return value, ""
}

func (c *Cache) store(entry cacheEntry, value cachedOutput) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[entry.KeyDigest+entry.InputDigest] = value
	if !c.cacheable || c.options.ReadOnly {
		return nil
	}

	serialized, err := json.Marshal(value)
	if err != nil {
		return err
	}
	objectDigest := sha256Hex(serialized)
	objectPath := filepath.Join(c.options.Path, "objects", objectDigest+".json")
	if _, err := os.Stat(objectPath); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := safeio.WriteFileAtomic(objectPath, serialized); err != nil {
			return err
		}
	}

	pointer, err := json.Marshal(cachePointer{InputDigest: entry.InputDigest, ObjectDigest: objectDigest})
	if err != nil {
		return err
	}
	if err := safeio.WriteFileAtomic(filepath.Join(c.options.Path, "keys", entry.KeyDigest+".json"), pointer); err != nil {
		return err
	}
	c.metadata.Writes++
	return nil
}

func hashJSON(value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

func sha256Hex(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
