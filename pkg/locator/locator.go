// Package locator loads CSS Modules entry points.
//
// A load resolves the entry, extracts its exported names, and follows every
// reference the stylesheet makes to other modules:
//
//   - @import statements are inlined into the compiled text in the same
//     pass; the imported file's tokens fold into the entry's token list at
//     the position of the statement, and no separate load is issued.
//   - "@value x from ..." and "composes: x from ..." sources are loaded
//     separately through a shared cache so their own graphs are tracked.
//   - Specifiers resolve across three tiers: filesystem paths, installed
//     packages (node_modules), and HTTP/HTTPS URLs.
//
// The result carries the compiled CSS text, the exported tokens in document
// order, and the deduplicated set of every resource that contributed.
// Remote references nested inside remote resources are followed up to a
// fixed depth; resources at the limit still contribute their own names, but
// their nested references are skipped.
//
// Loads are safe for concurrent use. Concurrent loads touching the same
// file share one in-flight retrieval per path.
package locator

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/csstyped/csstyped/pkg/extractor"
	"github.com/csstyped/csstyped/pkg/parser"
	"github.com/csstyped/csstyped/pkg/parser/queries"
	"github.com/csstyped/csstyped/pkg/util"
)

// Defaults for Config zero values.
const (
	DefaultCacheSize      = 512
	DefaultMaxRemoteDepth = 2
)

// Config controls Locator behavior.
type Config struct {
	// WorkingDir anchors relative entry paths. Empty means the process
	// working directory.
	WorkingDir string

	// CacheSize bounds the parsed-record and assembled-result caches.
	// 0 means DefaultCacheSize.
	CacheSize int

	// MaxRemoteDepth bounds consecutive remote hops when remote resources
	// import further remote resources. 0 means DefaultMaxRemoteDepth.
	MaxRemoteDepth int

	// Fetcher controls remote retrieval.
	Fetcher FetcherConfig

	// Files is the local read capability. If nil, the locator creates and
	// owns its own cache.
	Files util.FileCache

	// Extractor parses and extracts stylesheets. If nil, the locator
	// creates and owns its own parser stack.
	Extractor *extractor.Extractor

	// Logger for diagnostics. If nil, uses slog.Default().
	Logger *slog.Logger
}

// LocatorStats tracks load activity.
type LocatorStats struct {
	// Loads is the number of separately-resolved load operations: one per
	// entry plus one per distinct composes/@value source, whether served
	// from the result cache or assembled fresh.
	Loads int64

	// ResultHits is how many of those were served from the result cache.
	ResultHits int64

	// RecordLoads is the number of parse-and-extract passes executed.
	RecordLoads int64

	// RemoteFetches is the number of HTTP retrievals actually performed.
	RemoteFetches int64

	// ResultsCached and RecordsCached are current cache sizes.
	ResultsCached int
	RecordsCached int
}

// Locator loads entry stylesheets and tracks their dependency graphs.
type Locator struct {
	resolver  *Resolver
	fetcher   *Fetcher
	files     util.FileCache
	extractor *extractor.Extractor
	logger    *slog.Logger

	records *recordCache
	results *lru.Cache[string, *LoadResult]

	maxRemoteDepth int

	// Owned members are closed by Close; injected ones are the caller's.
	ownsFiles     bool
	ownsParsers   bool
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager

	loads         atomic.Int64
	resultHits    atomic.Int64
	recordLoads   atomic.Int64
	remoteFetches atomic.Int64
}

// New creates a Locator. Nil config uses all defaults.
func New(config *Config) (*Locator, error) {
	if config == nil {
		config = &Config{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cacheSize := config.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	maxRemoteDepth := config.MaxRemoteDepth
	if maxRemoteDepth <= 0 {
		maxRemoteDepth = DefaultMaxRemoteDepth
	}

	records, err := newRecordCache(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating record cache")
	}
	results, err := lru.New[string, *LoadResult](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating result cache")
	}

	l := &Locator{
		resolver:       NewResolver(config.WorkingDir, logger),
		fetcher:        NewFetcher(config.Fetcher, logger),
		files:          config.Files,
		extractor:      config.Extractor,
		logger:         logger,
		records:        records,
		results:        results,
		maxRemoteDepth: maxRemoteDepth,
	}

	if l.files == nil {
		fileConfig := util.DefaultFileCacheConfig()
		fileConfig.Logger = logger
		l.files = util.NewFileCache(fileConfig)
		l.ownsFiles = true
	}
	if l.extractor == nil {
		l.parserManager = parser.NewParserManager(logger)
		l.queryManager = queries.NewQueryManager(l.parserManager, logger)
		l.extractor = extractor.NewExtractor(l.parserManager, l.queryManager, logger)
		l.ownsParsers = true
	}

	return l, nil
}

// Load resolves entry and produces its compiled text, ordered tokens, and
// full dependency set.
//
// entry may be an absolute or working-directory-relative file path, or an
// absolute HTTP/HTTPS URL. Any resolution, network, or transform failure
// aborts the whole load; no partial result is returned.
func (l *Locator) Load(ctx context.Context, entry string) (*LoadResult, error) {
	resolution, err := l.resolver.ResolveEntry(entry)
	if err != nil {
		return nil, err
	}

	depth := 0
	if resolution.Kind == ResolutionRemoteResource {
		depth = 1
	}

	result, _, err := l.loadResolved(ctx, resolution, depth, make(map[string]bool))
	if err != nil {
		l.logger.Debug("load failed", "entry", entry, "error", err)
		return nil, err
	}

	l.logger.Debug("loaded entry",
		"entry", resolution.Path,
		"tokens", len(result.Tokens),
		"dependencies", len(result.Dependencies))

	return result, nil
}

// loadResolved assembles the full result for one separately-resolved unit:
// the entry itself or the source behind a composes/@value reference.
//
// chain carries every path currently being assembled up the call stack; it
// guards reference cycles across nested loads. The returned bool reports
// whether the result was affected by a cycle skip or the remote depth limit;
// such results are valid for the caller but never cached.
func (l *Locator) loadResolved(ctx context.Context, resolution Resolution, remoteDepth int, chain map[string]bool) (*LoadResult, bool, error) {
	l.loads.Add(1)

	if cached, ok := l.results.Get(resolution.Path); ok {
		l.resultHits.Add(1)
		return cached, false, nil
	}

	state := &assembleState{
		entry:   resolution.Path,
		chain:   chain,
		visited: make(map[string]bool),
		loaded:  make(map[string]*LoadResult),
		deps:    make(map[string]Dependency),
		tokens:  make([]Token, 0),
	}

	if err := l.inlineFile(ctx, resolution, remoteDepth, state); err != nil {
		return nil, false, err
	}

	result := &LoadResult{
		CSSText:      state.css.String(),
		Tokens:       state.tokens,
		Dependencies: sortDependencies(state.deps),
	}
	if !state.tainted {
		l.results.Add(resolution.Path, result)
	}
	return result, state.tainted, nil
}

// assembleState accumulates one separately-resolved load.
type assembleState struct {
	// entry is the path whose result is being assembled; the entry never
	// depends on itself unless another file in its graph re-imports it.
	entry string

	// chain tracks paths currently being assembled anywhere up the call
	// stack. Shared across nested loads inside one top-level Load.
	chain map[string]bool

	// visited tracks files already inlined into this assembly so a
	// diamond of @imports folds each file once.
	visited map[string]bool

	// loaded memoizes separately-loaded child results within this
	// assembly, one load per distinct source.
	loaded map[string]*LoadResult

	// tainted marks results affected by a cycle skip or the remote depth
	// limit. Tainted results are never cached: assembled fresh they could
	// differ.
	tainted bool

	css    strings.Builder
	tokens []Token
	deps   map[string]Dependency
}

// inlineFile folds one file into the assembly: its own names in source
// order, @import targets inlined at the statement position, and separately
// resolved references loaded through the cache.
func (l *Locator) inlineFile(ctx context.Context, resolution Resolution, remoteDepth int, state *assembleState) error {
	if state.chain[resolution.Path] {
		state.tainted = true
		return nil
	}
	state.chain[resolution.Path] = true
	defer delete(state.chain, resolution.Path)

	record, err := l.record(ctx, resolution)
	if err != nil {
		return err
	}

	// A remote resource at the depth limit still contributes its own
	// names, but its nested references are not followed.
	atLimit := resolution.Kind == ResolutionRemoteResource && remoteDepth >= l.maxRemoteDepth

	content := record.Content
	cursor := uint32(0)

	for _, ev := range orderEvents(record.Sheet) {
		switch ev.kind {
		case eventImport:
			// Splice the @import statement out of the compiled text; the
			// inlined child text takes its place.
			if ev.stmtStart >= cursor && int(ev.stmtEnd) <= len(content) {
				state.css.Write(content[cursor:ev.stmtStart])
				cursor = ev.stmtEnd
			}
			if atLimit {
				state.tainted = true
				l.logger.Debug("remote depth limit reached, skipping import",
					"resource", resolution.Path, "specifier", ev.specifier)
				continue
			}
			if err := l.inlineImport(ctx, ev, resolution, remoteDepth, state); err != nil {
				return err
			}

		case eventValueImport:
			if ev.specifier == "" {
				continue
			}
			if atLimit {
				state.tainted = true
				continue
			}
			if err := l.linkValueImport(ctx, ev, resolution, remoteDepth, state); err != nil {
				return err
			}

		case eventComposes:
			// Same-file and global composition adds no references
			if ev.specifier == "" || ev.specifier == "global" {
				continue
			}
			if atLimit {
				state.tainted = true
				continue
			}
			if err := l.linkComposes(ctx, ev, resolution, remoteDepth, state); err != nil {
				return err
			}

		case eventName:
			state.tokens = append(state.tokens, Token{
				Name:     ev.name,
				Location: locationFor(resolution.Path, ev.location),
			})
		}
	}

	state.css.Write(content[cursor:])
	return nil
}

// inlineImport resolves one @import target and folds it into the assembly.
func (l *Locator) inlineImport(ctx context.Context, ev event, importer Resolution, remoteDepth int, state *assembleState) error {
	child, err := l.resolver.Resolve(ev.specifier, importer.Path)
	if err != nil {
		return err
	}

	inlined := child.Kind == ResolutionLocalFile
	l.addDependency(state, importer.Path, child, inlined)

	if state.chain[child.Path] {
		// Import cycle: the target is already being assembled upstream
		state.tainted = true
		return nil
	}
	if state.visited[child.Path] {
		return nil
	}
	state.visited[child.Path] = true

	return l.inlineFile(ctx, child, l.childDepth(child, remoteDepth), state)
}

// linkValueImport loads the source module behind one "@value ... from"
// statement and emits a token. The token's location points at the foreign
// definition when it can be found there, and at the local reference
// otherwise.
func (l *Locator) linkValueImport(ctx context.Context, ev event, importer Resolution, remoteDepth int, state *assembleState) error {
	child, err := l.resolver.Resolve(ev.specifier, importer.Path)
	if err != nil {
		return err
	}
	l.addDependency(state, importer.Path, child, false)

	location := locationFor(importer.Path, ev.location)
	childResult, err := l.loadChild(ctx, child, remoteDepth, state)
	if err != nil {
		return err
	}
	if childResult != nil {
		if foreign, ok := findToken(childResult.Tokens, ev.imported); ok {
			location = foreign.Location
		}
	}

	state.tokens = append(state.tokens, Token{
		Name:         ev.name,
		ImportedName: ev.imported,
		Kind:         TokenReexported,
		Location:     location,
	})
	return nil
}

// linkComposes loads the source module behind "composes: x from ..." so its
// graph joins the dependency set. Composition changes runtime class lists,
// not the exported names, so no token is emitted.
func (l *Locator) linkComposes(ctx context.Context, ev event, importer Resolution, remoteDepth int, state *assembleState) error {
	child, err := l.resolver.Resolve(ev.specifier, importer.Path)
	if err != nil {
		return err
	}
	l.addDependency(state, importer.Path, child, false)

	_, err = l.loadChild(ctx, child, remoteDepth, state)
	return err
}

// loadChild performs the separately-resolved load behind a composes/@value
// reference, memoized per assembly. Returns nil without error when the
// child is already being assembled upstream (a reference cycle).
func (l *Locator) loadChild(ctx context.Context, child Resolution, remoteDepth int, state *assembleState) (*LoadResult, error) {
	if state.chain[child.Path] {
		state.tainted = true
		return nil, nil
	}
	if memo, ok := state.loaded[child.Path]; ok {
		return memo, nil
	}

	childResult, childTainted, err := l.loadResolved(ctx, child, l.childDepth(child, remoteDepth), state.chain)
	if err != nil {
		return nil, err
	}
	if childTainted {
		state.tainted = true
	}
	l.mergeDependencies(state, childResult.Dependencies)
	state.loaded[child.Path] = childResult
	return childResult, nil
}

// childDepth advances the remote hop count when crossing onto a remote
// resource.
func (l *Locator) childDepth(child Resolution, remoteDepth int) int {
	if child.Kind == ResolutionRemoteResource {
		return remoteDepth + 1
	}
	return remoteDepth
}

// addDependency records one directly referenced resource.
func (l *Locator) addDependency(state *assembleState, importer string, child Resolution, inlined bool) {
	if child.Path == state.entry && importer == state.entry {
		// A file importing itself is not a dependency; a re-import by
		// another file in the graph is.
		return
	}
	if _, ok := state.deps[child.Path]; ok {
		return
	}
	kind := child.Kind
	if inlined {
		kind = ResolutionAlreadyBundled
	}
	state.deps[child.Path] = Dependency{Path: child.Path, Kind: kind}
}

// mergeDependencies folds a child result's dependency set into this
// assembly's.
func (l *Locator) mergeDependencies(state *assembleState, deps []Dependency) {
	for _, dep := range deps {
		if _, ok := state.deps[dep.Path]; !ok {
			state.deps[dep.Path] = dep
		}
	}
}

// record returns the parsed file record for a resolved path, retrieving and
// extracting it on first access.
func (l *Locator) record(ctx context.Context, resolution Resolution) (*fileRecord, error) {
	return l.records.get(resolution.Path, func() (*fileRecord, error) {
		l.recordLoads.Add(1)

		content, err := l.retrieve(ctx, resolution)
		if err != nil {
			return nil, err
		}
		sheet, err := l.extractor.ExtractFile(resolution.Path, content)
		if err != nil {
			return nil, NewTransformError(resolution.Path, err)
		}
		return &fileRecord{Resolution: resolution, Content: content, Sheet: sheet}, nil
	})
}

// retrieve reads local content through the file cache and remote content
// through the fetcher. Local bytes are copied out of the mapped region so
// the record stays valid across invalidation.
func (l *Locator) retrieve(ctx context.Context, resolution Resolution) ([]byte, error) {
	if resolution.Kind == ResolutionRemoteResource {
		l.remoteFetches.Add(1)
		return l.fetcher.Fetch(ctx, resolution.Path)
	}

	data, err := l.files.ReadFile(resolution.Path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading %s", resolution.Path), ErrPathResolution)
	}
	return bytes.Clone(data), nil
}

// Invalidate drops all cached state for one path: its parsed record, its
// assembled result, and its mapped file. The watcher calls this when a file
// changes or disappears.
func (l *Locator) Invalidate(path string) {
	l.records.invalidate(path)
	l.results.Remove(path)
	l.files.Invalidate(path)
}

// InvalidateResult drops only the assembled result for one path, keeping
// its parsed record. Used for dependents of a changed file whose own
// content is unchanged.
func (l *Locator) InvalidateResult(path string) {
	l.results.Remove(path)
}

// Stats returns a snapshot of load activity.
func (l *Locator) Stats() LocatorStats {
	return LocatorStats{
		Loads:         l.loads.Load(),
		ResultHits:    l.resultHits.Load(),
		RecordLoads:   l.recordLoads.Load(),
		RemoteFetches: l.remoteFetches.Load(),
		ResultsCached: l.results.Len(),
		RecordsCached: l.records.len(),
	}
}

// Close releases owned resources: the parser stack and file cache when the
// locator created them, and both internal caches.
func (l *Locator) Close() error {
	var closeErr error

	if l.ownsParsers {
		if l.queryManager != nil {
			closeErr = errors.CombineErrors(closeErr, l.queryManager.Close())
		}
		if l.parserManager != nil {
			closeErr = errors.CombineErrors(closeErr, l.parserManager.Close())
		}
	}
	if l.ownsFiles {
		closeErr = errors.CombineErrors(closeErr, l.files.Close())
	}

	l.records.purge()
	l.results.Purge()

	return closeErr
}

// eventKind discriminates the document-ordered occurrences the assembly
// walk replays.
type eventKind int

const (
	eventName eventKind = iota
	eventImport
	eventValueImport
	eventComposes
)

// event is one document-ordered occurrence in a stylesheet.
type event struct {
	kind      eventKind
	name      string // exported name (classes, keyframes, values, value imports)
	imported  string // foreign name behind an aliased value import
	specifier string // import/composes/value-import source
	location  extractor.Location
	stmtStart uint32 // byte span of the whole @import statement
	stmtEnd   uint32
}

// orderEvents flattens a stylesheet into byte-ordered events so tokens and
// inlined imports interleave exactly as the document reads.
func orderEvents(sheet *extractor.Stylesheet) []event {
	size := len(sheet.Classes) + len(sheet.Keyframes) + len(sheet.Values) +
		len(sheet.ValueImports) + len(sheet.Composes) + len(sheet.Imports)
	events := make([]event, 0, size)

	for _, entry := range sheet.Classes {
		events = append(events, event{kind: eventName, name: entry.Name, location: entry.Location})
	}
	for _, entry := range sheet.Keyframes {
		events = append(events, event{kind: eventName, name: entry.Name, location: entry.Location})
	}
	for _, entry := range sheet.Values {
		events = append(events, event{kind: eventName, name: entry.Name, location: entry.Location})
	}
	for _, entry := range sheet.ValueImports {
		events = append(events, event{
			kind:      eventValueImport,
			name:      entry.LocalName,
			imported:  entry.ImportedName,
			specifier: entry.Source,
			location:  entry.Location,
		})
	}
	for _, entry := range sheet.Composes {
		events = append(events, event{
			kind:      eventComposes,
			name:      entry.Name,
			specifier: entry.Source,
			location:  entry.Location,
		})
	}
	for _, entry := range sheet.Imports {
		events = append(events, event{
			kind:      eventImport,
			specifier: entry.Specifier,
			location:  entry.Location,
			stmtStart: entry.StatementLocation.StartByte,
			stmtEnd:   entry.StatementLocation.EndByte,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return eventSortKey(events[i]) < eventSortKey(events[j])
	})
	return events
}

// eventSortKey orders events by document position. Imports sort by the
// statement start so splicing stays monotonic.
func eventSortKey(ev event) uint32 {
	if ev.kind == eventImport {
		return ev.stmtStart
	}
	return ev.location.StartByte
}

// locationFor converts an extractor location into a token location.
func locationFor(source string, loc extractor.Location) SourceLocation {
	return SourceLocation{
		Source:      source,
		StartLine:   loc.StartLine,
		StartColumn: loc.StartColumn,
		EndLine:     loc.EndLine,
		EndColumn:   loc.EndColumn,
	}
}

// findToken returns the first token with the given name.
func findToken(tokens []Token, name string) (Token, bool) {
	for _, token := range tokens {
		if token.Name == name {
			return token, true
		}
	}
	return Token{}, false
}

// sortDependencies flattens the dependency set into a path-sorted slice.
func sortDependencies(deps map[string]Dependency) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, dep := range deps {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
