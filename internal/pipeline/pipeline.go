// Package pipeline runs a statement document through the processing
// phases: read, detect, extract, normalize and aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/insightdelivered/spendsense/internal/aggregate"
	"github.com/insightdelivered/spendsense/internal/category"
	"github.com/insightdelivered/spendsense/internal/extractor"
	"github.com/insightdelivered/spendsense/internal/logger"
	"github.com/insightdelivered/spendsense/internal/models"
	"github.com/insightdelivered/spendsense/internal/normalizer"
	"github.com/insightdelivered/spendsense/internal/parser"
)

const module = "pipeline"

// Config bounds a single processing run.
type Config struct {
	// MaxDocumentBytes rejects larger documents before any work. Zero
	// means no limit.
	MaxDocumentBytes int64
	// Timeout aborts a run that takes longer. Zero means no limit.
	Timeout         time.Duration
	CardmemberHints []string
}

// Observer is told when each phase starts.
type Observer func(models.Phase)

// Pipeline is safe for concurrent use; runs share no mutable state.
type Pipeline struct {
	cfg        Config
	classifier category.Classifier
	detector   *parser.Detector
	log        logger.Logger
	metrics    *Metrics
	now        func() time.Time
	readPages  func([]byte) ([]string, error)
}

// New builds a pipeline. A nil classifier uses the default category rules;
// metrics may be nil.
func New(cfg Config, classifier category.Classifier, log logger.Logger, metrics *Metrics) *Pipeline {
	if classifier == nil {
		classifier = category.NewDefault()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		detector:   parser.NewDetector(parser.Options{CardmemberHints: cfg.CardmemberHints}),
		log:        log,
		metrics:    metrics,
		now:        time.Now,
		readPages:  extractor.ExtractPages,
	}
}

// Process detects the layout of doc and runs every phase.
func (p *Pipeline) Process(ctx context.Context, doc []byte, observe Observer) (*models.ProcessingResult, error) {
	return p.ProcessAs(ctx, doc, models.FormatUnknown, observe)
}

// ProcessAs runs every phase with a known layout; models.FormatUnknown
// detects it. The run is abandoned with models.ErrProcessingTimeout once
// the configured timeout passes, and a panic becomes models.ErrInternal.
func (p *Pipeline) ProcessAs(ctx context.Context, doc []byte, format models.FormatType, observe Observer) (*models.ProcessingResult, error) {
	if observe == nil {
		observe = func(models.Phase) {}
	}
	if p.cfg.MaxDocumentBytes > 0 && int64(len(doc)) > p.cfg.MaxDocumentBytes {
		return nil, fmt.Errorf("%d bytes, limit %d: %w", len(doc), p.cfg.MaxDocumentBytes, models.ErrDocumentTooLarge)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	type outcome struct {
		result *models.ProcessingResult
		format models.FormatType
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error(module, "pipeline panic", map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				})
				done <- outcome{format: format, err: models.ErrInternal}
			}
		}()
		result, detected, err := p.run(ctx, doc, format, observe)
		done <- outcome{result: result, format: detected, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			p.metrics.observe(o.format, "failed", time.Since(start))
			return nil, o.err
		}
		p.metrics.observe(o.format, "completed", time.Since(start))
		return o.result, nil
	case <-ctx.Done():
		p.metrics.observe(format, "timeout", time.Since(start))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.log.Warn(module, "processing timed out", map[string]interface{}{"timeout": p.cfg.Timeout.String()})
			return nil, fmt.Errorf("after %s: %w", p.cfg.Timeout, models.ErrProcessingTimeout)
		}
		return nil, ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, doc []byte, format models.FormatType, observe Observer) (*models.ProcessingResult, models.FormatType, error) {
	observe(models.PhaseRead)
	pages, err := p.readPages(doc)
	if err != nil {
		return nil, format, fmt.Errorf("reading document: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, format, err
	}
	if format == models.FormatUnknown {
		observe(models.PhaseDetect)
		format, err = p.detector.Detect(pages)
		if err != nil {
			return nil, format, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, format, err
	}
	observe(models.PhaseExtract)
	ex, err := parser.New(format, parser.Options{CardmemberHints: p.cfg.CardmemberHints, Now: p.now})
	if err != nil {
		return nil, format, err
	}
	extraction, err := ex.Extract(pages)
	if err != nil {
		return nil, format, err
	}

	if err := ctx.Err(); err != nil {
		return nil, format, err
	}
	observe(models.PhaseNormalize)
	norm, err := normalizer.New(format, p.classifier)
	if err != nil {
		return nil, format, err
	}
	txns, rejected := norm.NormalizeAll(extraction.Rows)

	warnings := append(append([]models.SkippedRow{}, extraction.Skipped...), rejected...)
	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Page != warnings[j].Page {
			return warnings[i].Page < warnings[j].Page
		}
		return warnings[i].Line < warnings[j].Line
	})
	for _, w := range warnings {
		p.log.Warn(module, "row skipped", map[string]interface{}{
			"format": string(format),
			"page":   w.Page,
			"line":   w.Line,
			"reason": w.Reason,
		})
	}
	p.metrics.rowsSeen(format, len(txns), len(warnings))

	if err := ctx.Err(); err != nil {
		return nil, format, err
	}
	observe(models.PhaseAggregate)
	result := aggregate.Summarize(format, txns, warnings)
	result.ProcessedAt = p.now().UTC()

	p.log.Info(module, "document processed", map[string]interface{}{
		"format":       string(format),
		"transactions": result.TransactionCount,
		"skipped":      len(warnings),
		"total":        result.TotalAmount.StringFixed(2),
	})
	return result, format, nil
}
