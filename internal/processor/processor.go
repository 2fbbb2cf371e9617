/**
 * Document Processor - Hybrid figure-detection OCR pipeline
 *
 * Drives the full per-document sequence: OCR extraction, page raster
 * extraction, layout detection, coordinate repair, reconciliation, crop
 * extraction, verification, markdown assembly and persistence.
 *
 * Failure policy: only the OCR extraction call itself (after retries) and
 * an unparseable engine response are document-fatal. Every later stage is
 * page-scoped: a failed detector call, a missing page raster or a rejected
 * crop degrades that page's figures and the document still completes.
 */

package processor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/textbridge/ocr-worker/internal/clients"
	"github.com/textbridge/ocr-worker/internal/config"
	"github.com/textbridge/ocr-worker/internal/errors"
	"github.com/textbridge/ocr-worker/internal/figure"
	"github.com/textbridge/ocr-worker/internal/geometry"
	"github.com/textbridge/ocr-worker/internal/render"
	"github.com/textbridge/ocr-worker/internal/retry"
	"github.com/textbridge/ocr-worker/internal/storage"
)

// Status is the document pipeline stage, published as it advances.
type Status string

const (
	StatusPending          Status = "pending"
	StatusExtracting       Status = "extracting"
	StatusDetecting        Status = "detecting"
	StatusReconciling      Status = "reconciling"
	StatusExtractingImages Status = "extracting_images"
	StatusVerifying        Status = "verifying"
	StatusMerging          Status = "merging"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// StatusReporter publishes stage transitions for live progress consumers.
type StatusReporter interface {
	ReportStatus(ctx context.Context, jobID string, status Status, fields map[string]interface{})
}

// ExtractionEngine is the whole-document OCR capability the pipeline
// requires.
type ExtractionEngine interface {
	ExtractDocument(ctx context.Context, jobID string, pdf []byte) ([]clients.PageResult, error)
}

// PageRenderer handles PDF inspection and page raster extraction.
type PageRenderer interface {
	Validate(pdf []byte) error
	PageCount(pdf []byte) (int, error)
	ExtractPageRasters(pdf []byte) (map[int]render.PageRaster, error)
}

// ResultStore persists job state and completed document output.
type ResultStore interface {
	UpdateDocumentStatus(ctx context.Context, update *storage.DocumentUpdate) error
	PersistDocument(ctx context.Context, out *storage.DocumentOutput) (string, error)
}

// ProcessRequest is one document job.
type ProcessRequest struct {
	JobID    string
	FileName string
	PDF      []byte
}

// ProcessResult summarizes a completed document.
type ProcessResult struct {
	JobID          string
	OutputPath     string
	PageCount      int
	FigureCount    int
	ProcessingTime time.Duration
}

// DocumentProcessor owns the per-document pipeline.
type DocumentProcessor struct {
	cfg      *config.Config
	engine   ExtractionEngine
	embedder *clients.EmbeddingClient // nil when embedding is disabled

	renderer   PageRenderer
	detector   *figure.RegionDetector
	repairer   *figure.Repairer
	reconciler *figure.Reconciler
	extractor  *figure.Extractor
	verifier   *figure.Verifier

	storage  ResultStore
	reporter StatusReporter
}

// NewDocumentProcessor wires the pipeline from configuration. The OCR
// engine is required; detector, embedder and the local verification
// fallback are optional and their absence degrades gracefully.
func NewDocumentProcessor(cfg *config.Config, store ResultStore, reporter StatusReporter) (*DocumentProcessor, error) {
	policy := retry.DefaultPolicy()
	engine := clients.NewOCREngineClient(cfg.OCREngineURL, policy)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := engine.HealthCheck(ctx); err != nil {
		log.Printf("WARNING: OCR engine health check failed: %v. Jobs will fail until it recovers.", err)
	} else {
		log.Printf("OCR engine connection verified: %s", cfg.OCREngineURL)
	}

	var detectorClient figure.DetectorClient
	if cfg.DetectorURL != "" {
		dc := clients.NewLayoutDetectorClient(cfg.DetectorURL, cfg.DetectorThreshold)
		if err := dc.HealthCheck(ctx); err != nil {
			log.Printf("WARNING: Layout detector health check failed: %v. Pipelines will run on OCR boxes only until it recovers.", err)
		} else {
			log.Printf("Layout detector connection verified: %s", cfg.DetectorURL)
		}
		detectorClient = dc
	} else {
		log.Printf("WARNING: Layout detector not configured. Figures come from OCR self-reporting only.")
	}

	var embedder *clients.EmbeddingClient
	if cfg.VoyageAPIKey != "" {
		var err error
		embedder, err = clients.NewEmbeddingClient(cfg.VoyageAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
	} else {
		log.Printf("WARNING: VoyageAI API key not configured. Documents will not be embedded.")
	}

	var local *figure.LocalChecker
	if cfg.LocalVerifyEnabled {
		local = figure.NewLocalChecker()
	}

	h := cfg.Heuristics
	return &DocumentProcessor{
		cfg:        cfg,
		engine:     engine,
		embedder:   embedder,
		renderer:   render.NewRenderer(),
		detector:   figure.NewRegionDetector(detectorClient, h),
		repairer:   figure.NewRepairer(h),
		reconciler: figure.NewReconciler(h),
		extractor:  figure.NewExtractor(h),
		verifier:   figure.NewVerifier(engine, local, h),
		storage:    store,
		reporter:   reporter,
	}, nil
}

// ProcessDocument runs the pipeline for one document.
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log.Printf("[Job %s] Starting document pipeline (%s, %d bytes)", req.JobID, req.FileName, len(req.PDF))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.ProcessingTimeout)*time.Millisecond)
	defer cancel()

	if int64(len(req.PDF)) > p.cfg.MaxFileSize {
		return nil, errors.NewResourceError(req.JobID, 0,
			fmt.Sprintf("document too large: %d bytes (limit %d)", len(req.PDF), p.cfg.MaxFileSize))
	}

	// Step 1: Validate PDF structure and count pages
	log.Printf("[Job %s] Step 1: Validating PDF", req.JobID)
	if err := p.renderer.Validate(req.PDF); err != nil {
		return nil, errors.NewResourceError(req.JobID, 0, fmt.Sprintf("invalid PDF: %v", err))
	}
	pageCount, err := p.renderer.PageCount(req.PDF)
	if err != nil {
		return nil, errors.NewResourceError(req.JobID, 0, fmt.Sprintf("unreadable PDF: %v", err))
	}
	log.Printf("[Job %s] PDF validated: %d pages", req.JobID, pageCount)

	p.setStatus(ctx, req.JobID, StatusExtracting, map[string]interface{}{"pages": pageCount})
	if err := p.storage.UpdateDocumentStatus(ctx, &storage.DocumentUpdate{
		JobID:     req.JobID,
		Status:    "processing",
		PageCount: pageCount,
		Metadata:  map[string]interface{}{"filename": req.FileName},
	}); err != nil {
		log.Printf("[Job %s] WARNING: failed to record processing status: %v", req.JobID, err)
	}

	// Step 2: OCR extraction (document-fatal on failure)
	log.Printf("[Job %s] Step 2: Extracting structured content", req.JobID)
	pages, err := p.engine.ExtractDocument(ctx, req.JobID, req.PDF)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pages, func(a, b int) bool {
		return pages[a].PageNumber < pages[b].PageNumber
	})
	log.Printf("[Job %s] Extraction complete: %d page results", req.JobID, len(pages))

	// Step 3: Page rasters. Missing rasters degrade pages to text-only.
	log.Printf("[Job %s] Step 3: Extracting page rasters", req.JobID)
	rasters, err := p.renderer.ExtractPageRasters(req.PDF)
	if err != nil {
		log.Printf("[Job %s] WARNING: raster extraction failed: %v. Figures will be dropped.", req.JobID, err)
		rasters = map[int]render.PageRaster{}
	}

	// Step 4: Layout detection over a bounded worker pool
	var detections map[int][]figure.DetectedRegion
	if p.detector.Enabled() && len(rasters) > 0 {
		p.setStatus(ctx, req.JobID, StatusDetecting, nil)
		log.Printf("[Job %s] Step 4: Running layout detection (%d pages, concurrency %d)",
			req.JobID, len(rasters), p.cfg.DetectorConcurrency)
		images := make([]figure.PageImage, 0, len(rasters))
		for _, r := range rasters {
			images = append(images, figure.PageImage{
				Page: r.Page, PNG: r.PNG, Width: r.Width, Height: r.Height,
			})
		}
		detections = p.detector.DetectAll(ctx, images, p.cfg.DetectorConcurrency)
	} else {
		log.Printf("[Job %s] Step 4: Layout detection skipped", req.JobID)
		detections = map[int][]figure.DetectedRegion{}
	}

	// Step 5: repair and reconcile page by page
	p.setStatus(ctx, req.JobID, StatusReconciling, nil)
	log.Printf("[Job %s] Step 5: Repairing and reconciling figure candidates", req.JobID)
	work := make([]pageWork, 0, len(pages))
	for _, page := range pages {
		w := pageWork{page: page}
		w.raster, w.hasRaster = rasters[page.PageNumber]
		if !w.hasRaster {
			if len(page.Figures) > 0 {
				log.Printf("[Job %s] Page %d has no raster; dropping %d figure(s)",
					req.JobID, page.PageNumber, len(page.Figures))
			}
			work = append(work, w)
			continue
		}
		w.integrated = p.reconcilePage(page, w.raster, detections[page.PageNumber])
		work = append(work, w)
	}

	// Step 6: crop extraction; failures are page-scoped
	p.setStatus(ctx, req.JobID, StatusExtractingImages, nil)
	log.Printf("[Job %s] Step 6: Extracting figure crops", req.JobID)
	for i := range work {
		w := &work[i]
		if len(w.integrated) == 0 {
			continue
		}
		pageImage, err := render.DecodePNG(w.raster.PNG)
		if err != nil {
			log.Printf("[Job %s] Page %d raster undecodable: %v. Dropping %d figure(s).",
				req.JobID, w.page.PageNumber, err, len(w.integrated))
			continue
		}
		w.crops = p.extractor.ExtractPage(pageImage, w.integrated)
	}

	// Step 7: verification; rejected crops never reach storage
	p.setStatus(ctx, req.JobID, StatusVerifying, nil)
	log.Printf("[Job %s] Step 7: Verifying figure crops", req.JobID)
	mergePages := make([]MergePage, 0, len(work))
	var verifiedCrops []figure.Crop
	var files []figure.ExtractedFile
	for i := range work {
		w := &work[i]
		mp := MergePage{
			Page:        w.page.PageNumber,
			Markdown:    w.page.MarkdownText,
			WritingMode: w.page.DetectedWritingMode,
		}
		kept := p.verifier.VerifyAll(ctx, w.crops)
		for _, crop := range kept {
			mp.Figures = append(mp.Figures, crop.Figure)
			files = append(files, figure.ExtractedFile{
				FigureID:      crop.Figure.ID,
				Page:          crop.Figure.Page,
				BBox:          [4]int{crop.Figure.Box.X, crop.Figure.Box.Y, crop.Figure.Box.Width, crop.Figure.Box.Height},
				NormalizedBox: crop.NormalizedBox,
				Type:          crop.Figure.Type,
				Caption:       FigureCaption(crop.Figure),
				FilePath:      "figures/" + crop.Figure.FileName(),
			})
		}
		verifiedCrops = append(verifiedCrops, kept...)
		mergePages = append(mergePages, mp)
	}

	// Step 8: Merge markdown
	p.setStatus(ctx, req.JobID, StatusMerging, map[string]interface{}{"figures": len(files)})
	log.Printf("[Job %s] Step 8: Assembling markdown (%d pages, %d verified figures)",
		req.JobID, len(mergePages), len(files))
	markdown := AssembleMarkdown(mergePages)

	// Step 9: Optional document embedding
	var embedding []float32
	if p.embedder != nil {
		log.Printf("[Job %s] Step 9: Generating semantic embedding", req.JobID)
		embedding, err = p.embedder.GenerateEmbedding(ctx, markdown)
		if err != nil {
			log.Printf("[Job %s] WARNING: embedding failed: %v. Document will not be searchable.", req.JobID, err)
			embedding = nil
		}
	}

	// Step 10: Persist output, verified crops only
	log.Printf("[Job %s] Step 10: Persisting document output", req.JobID)
	outputPath, err := p.storage.PersistDocument(ctx, &storage.DocumentOutput{
		JobID:            req.JobID,
		Markdown:         markdown,
		Crops:            verifiedCrops,
		Files:            files,
		PageCount:        pageCount,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		Embedding:        embedding,
		Metadata: map[string]interface{}{
			"filename":     req.FileName,
			"writing_mode": dominantWritingMode(pages),
			"pages":        pageLayoutMetadata(pages),
		},
	})
	if err != nil {
		return nil, errors.NewStorageFailedError(req.JobID, err)
	}

	p.setStatus(ctx, req.JobID, StatusCompleted, map[string]interface{}{
		"figures": len(files),
		"path":    outputPath,
	})
	log.Printf("[Job %s] Pipeline complete in %v: %d figures", req.JobID, time.Since(startTime), len(files))

	return &ProcessResult{
		JobID:          req.JobID,
		OutputPath:     outputPath,
		PageCount:      pageCount,
		FigureCount:    len(files),
		ProcessingTime: time.Since(startTime),
	}, nil
}

// pageWork carries one page's intermediate state between pipeline stages.
type pageWork struct {
	page       clients.PageResult
	raster     render.PageRaster
	hasRaster  bool
	integrated []figure.Integrated
	crops      []figure.Crop
}

// reconcilePage repairs one page's OCR candidates and fuses them with its
// detector regions into the authoritative figure list.
func (p *DocumentProcessor) reconcilePage(page clients.PageResult, raster render.PageRaster, regions []figure.DetectedRegion) []figure.Integrated {
	cands := make([]figure.Candidate, 0, len(page.Figures))
	for _, f := range page.Figures {
		cands = append(cands, figure.Candidate{
			ID:            f.ID,
			Box:           geometryBox(f.Position),
			Type:          figure.Type(f.Type),
			Description:   f.Description,
			ExtractedText: f.ExtractedText,
		})
	}
	p.repairer.RepairAll(cands, raster.Width, raster.Height)
	return p.reconciler.Reconcile(page.PageNumber, cands, regions)
}

// setStatus publishes a stage transition when a reporter is configured.
func (p *DocumentProcessor) setStatus(ctx context.Context, jobID string, status Status, fields map[string]interface{}) {
	if p.reporter == nil {
		return
	}
	p.reporter.ReportStatus(ctx, jobID, status, fields)
}

func geometryBox(p clients.EnginePosition) geometry.Box {
	return geometry.Box{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// pageLayoutMetadata flattens per-page layout details for the job record.
func pageLayoutMetadata(pages []clients.PageResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(pages))
	for _, p := range pages {
		out = append(out, map[string]interface{}{
			"page_number":           p.PageNumber,
			"detected_writing_mode": p.DetectedWritingMode,
			"layout_info":           p.LayoutInfo,
		})
	}
	return out
}

// dominantWritingMode returns the writing mode most pages agree on.
func dominantWritingMode(pages []clients.PageResult) string {
	counts := map[string]int{}
	for _, p := range pages {
		if p.DetectedWritingMode != "" {
			counts[p.DetectedWritingMode]++
		}
	}
	best, bestCount := "horizontal", 0
	for mode, count := range counts {
		if count > bestCount {
			best, bestCount = mode, count
		}
	}
	return best
}
