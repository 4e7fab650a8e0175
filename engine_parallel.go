package aotgraph

import (
	"sort"
	"sync"
	"time"

	"github.com/aotgraph/aotgraph/internal/aotdoc"
	"github.com/aotgraph/aotgraph/internal/source"
)

// parseDocuments parses resolved documents with a worker pool. Parse
// failures never abort the run: a document that cannot be read is counted
// as failed and logged, and the rest proceed. Results come back sorted by
// path so downstream stages see a deterministic order regardless of worker
// scheduling.
func (e *Engine) parseDocuments(docs []source.Document, report *RunReport) []*aotdoc.Document {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()

	numWorkers := e.workers
	if numWorkers > len(docs) {
		numWorkers = len(docs)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan source.Document, len(docs))
	for _, d := range docs {
		workCh <- d
	}
	close(workCh)

	type result struct {
		doc *aotdoc.Document
		src source.Document
		err error
	}
	resultCh := make(chan result, len(docs))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parser := &aotdoc.Parser{}
			for item := range workCh {
				doc, err := parser.ParseFile(item.Path)
				resultCh <- result{doc: doc, src: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var parsed []*aotdoc.Document
	for res := range resultCh {
		if res.err != nil {
			report.DocumentsFailed++
			e.logger.Warn("ingest.parse.failed", "path", res.src.Path, "err", res.err)
			continue
		}
		applyBundleModel(res.doc, res.src.Bundle)
		report.Diagnostics = append(report.Diagnostics, res.doc.Diagnostics...)
		report.DocumentsParsed++
		parsed = append(parsed, res.doc)
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Path < parsed[j].Path })

	ingestMetrics.documentsParsed.Add(float64(report.DocumentsParsed))
	ingestMetrics.parseDuration.Observe(time.Since(start).Seconds())
	return parsed
}

// applyBundleModel fills in model metadata from a bundle descriptor for
// records whose document declared no model scope of its own. The in-document
// scope always wins.
func applyBundleModel(doc *aotdoc.Document, bundle *source.Bundle) {
	if bundle == nil || bundle.Model == "" {
		return
	}
	for i := range doc.Classes {
		if doc.Classes[i].Model == aotdoc.DefaultModel {
			doc.Classes[i].Model = bundle.Model
		}
		if doc.Classes[i].Package == "" {
			doc.Classes[i].Package = bundle.Model
		}
	}
	for i := range doc.Tables {
		if doc.Tables[i].Model == aotdoc.DefaultModel {
			doc.Tables[i].Model = bundle.Model
		}
		if doc.Tables[i].Package == "" {
			doc.Tables[i].Package = bundle.Model
		}
	}
}
