// Package source resolves a list of input paths (files, directories, zip
// bundles) into an ordered, deduplicated list of export documents. Bundles
// are extracted to a staging directory that is removed on Close unless the
// caller asks to keep it. Each input path is isolated: a missing path or a
// corrupt bundle is reported as a SourceError without aborting resolution
// of the remaining inputs.
package source

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for per-source failures.
var (
	ErrSourceNotFound   = errors.New("source path does not exist")
	ErrArchiveCorrupt   = errors.New("archive cannot be opened")
	ErrNoDocumentsFound = errors.New("no export documents found")
)

// Bundle carries metadata read from an archive's Descriptor document.
type Bundle struct {
	Archive     string
	Model       string
	DisplayName string
	Version     string
}

// Document is one resolved export document plus its originating bundle,
// when it came from an archive.
type Document struct {
	Path   string
	Bundle *Bundle
}

// SourceError records a failure for one input path.
type SourceError struct {
	Path string
	Err  error
}

func (e SourceError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e SourceError) Unwrap() error { return e.Err }

// Options configures resolution.
type Options struct {
	// StagingDir is where archives are extracted. Empty means the system
	// temp directory.
	StagingDir string

	// KeepExtracted leaves extracted archive contents in place after Close.
	KeepExtracted bool
}

// Resolver turns input paths into document streams. Not safe for
// concurrent use.
type Resolver struct {
	opts     Options
	logger   *slog.Logger
	tempDirs []string
}

// NewResolver creates a resolver. A nil logger falls back to slog.Default.
func NewResolver(opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{opts: opts, logger: logger}
}

// Resolve expands every input path into export documents. Results preserve
// input order with duplicates removed; failures come back as SourceErrors,
// one per failing input.
func (r *Resolver) Resolve(paths []string) ([]Document, []SourceError) {
	var docs []Document
	var errs []SourceError

	for _, path := range paths {
		resolved, err := r.resolveOne(path)
		if err != nil {
			r.logger.Warn("source.resolve.failed", "path", path, "err", err)
			errs = append(errs, SourceError{Path: path, Err: err})
			continue
		}
		docs = append(docs, resolved...)
	}

	return dedupe(docs), errs
}

func (r *Resolver) resolveOne(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		found, err := discoverDocuments(path, nil)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoDocumentsFound, path)
		}
		return found, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return r.resolveArchive(path)
	}

	return []Document{{Path: path}}, nil
}

func (r *Resolver) resolveArchive(path string) ([]Document, error) {
	if r.opts.StagingDir != "" {
		if err := os.MkdirAll(r.opts.StagingDir, 0o755); err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
	}

	target, err := os.MkdirTemp(r.opts.StagingDir, "aotgraph_")
	if err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	if !r.opts.KeepExtracted {
		r.tempDirs = append(r.tempDirs, target)
	}

	if err := extractZip(path, target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, path, err)
	}

	bundle := &Bundle{Archive: filepath.Base(path)}
	if meta, ok := readDescriptor(target); ok {
		bundle.Model = meta.Model
		bundle.DisplayName = meta.DisplayName
		bundle.Version = meta.Version
		r.logger.Info("source.bundle.descriptor",
			"archive", bundle.Archive,
			"model", bundle.Model,
			"display_name", bundle.DisplayName,
			"version", bundle.Version,
		)
	} else {
		r.logger.Info("source.bundle.no_descriptor", "archive", bundle.Archive)
	}

	docs, err := discoverDocuments(target, bundle)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocumentsFound, path)
	}
	return docs, nil
}

// discoverDocuments walks root for .xml documents, sorted by path for
// deterministic processing. Descriptor documents describe the bundle, not
// the AOT, and are excluded.
func discoverDocuments(root string, bundle *Bundle) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		if underDescriptor(root, path) {
			return nil
		}
		docs = append(docs, Document{Path: path, Bundle: bundle})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func underDescriptor(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "Descriptor" {
			return true
		}
	}
	return false
}

// extractZip unpacks archive into target, refusing entries that would
// escape the target directory.
func extractZip(archive, target string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		dest := filepath.Join(target, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(target, dest)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("entry %q escapes extraction dir", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		src, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(out, src)
		src.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// descriptorMeta is the subset of a bundle Descriptor document we surface.
type descriptorMeta struct {
	Model       string
	DisplayName string
	Version     string
}

type descriptorXML struct {
	Name            string `xml:"Name"`
	DisplayName     string `xml:"DisplayName"`
	ModelModule     string `xml:"ModelModule"`
	Model           string `xml:"Model"`
	VersionMajor    string `xml:"VersionMajor"`
	VersionMinor    string `xml:"VersionMinor"`
	VersionBuild    string `xml:"VersionBuild"`
	VersionRevision string `xml:"VersionRevision"`
}

// readDescriptor locates the first **/Descriptor/*.xml under root and
// parses its model metadata. Absence or a malformed descriptor is not an
// error; the bundle just has no metadata.
func readDescriptor(root string) (descriptorMeta, bool) {
	var descriptorPath string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || descriptorPath != "" {
			return fs.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "Descriptor" && strings.EqualFold(filepath.Ext(path), ".xml") {
			descriptorPath = path
			return fs.SkipAll
		}
		return nil
	})
	if descriptorPath == "" {
		return descriptorMeta{}, false
	}

	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return descriptorMeta{}, false
	}
	var desc descriptorXML
	if err := xml.Unmarshal(data, &desc); err != nil {
		return descriptorMeta{}, false
	}

	model := desc.Name
	if model == "" {
		model = strings.TrimSuffix(filepath.Base(descriptorPath), filepath.Ext(descriptorPath))
	}
	display := desc.DisplayName
	if display == "" {
		display = model
	}

	var parts []string
	for _, p := range []string{desc.VersionMajor, desc.VersionMinor, desc.VersionBuild, desc.VersionRevision} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return descriptorMeta{
		Model:       model,
		DisplayName: display,
		Version:     strings.Join(parts, "."),
	}, true
}

// Close removes extraction directories created during Resolve, unless
// KeepExtracted was set.
func (r *Resolver) Close() error {
	var lastErr error
	for _, dir := range r.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			lastErr = err
		}
	}
	r.tempDirs = nil
	return lastErr
}

// dedupe removes duplicate document paths while preserving order.
func dedupe(docs []Document) []Document {
	seen := make(map[string]bool, len(docs))
	out := docs[:0]
	for _, d := range docs {
		if seen[d.Path] {
			continue
		}
		seen[d.Path] = true
		out = append(out, d)
	}
	return out
}
