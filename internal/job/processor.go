package job

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oho/chunking-daemon/internal/chunk"
	"github.com/oho/chunking-daemon/internal/chunkers"
	"github.com/oho/chunking-daemon/internal/router"
	"github.com/oho/chunking-daemon/internal/sink"
)

const defaultMaxContentSize = 10 * 1024 * 1024
const defaultSinkBatchSize = 50
const defaultParseTimeout = 60 * time.Second

// Processor owns the worker pool that drains submitted jobs: a buffered
// channel of size MAX_CONCURRENT_JOBS acts as the concurrency semaphore
// (§4.4 "Worker pool", §5 "Suspension points").
type Processor struct {
	registry   *Registry
	router     *router.Registry
	sink       *sink.Client
	permits    chan struct{}
	maxContent int64
	batchSize  int
}

func NewProcessor(registry *Registry, rtr *router.Registry, sinkClient *sink.Client, maxConcurrentJobs int) *Processor {
	if maxConcurrentJobs < 1 {
		maxConcurrentJobs = 1
	}
	return &Processor{
		registry:   registry,
		router:     rtr,
		sink:       sinkClient,
		permits:    make(chan struct{}, maxConcurrentJobs),
		maxContent: defaultMaxContentSize,
		batchSize:  defaultSinkBatchSize,
	}
}

// Submit accepts a batch of items for a source, creating a pending record
// and queuing a worker task for it. items must be non-empty (§4.4
// "Submission").
func (p *Processor) Submit(ctx context.Context, sourceID string, sourceKind chunk.SourceKind, items []chunk.SourceItem, cfg chunk.Config) (*Record, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("items must not be empty")
	}
	r := p.registry.create(sourceID, sourceKind, len(items))
	go p.run(r, items, cfg)
	return r, nil
}

func (p *Processor) run(r *Record, items []chunk.SourceItem, cfg chunk.Config) {
	p.permits <- struct{}{}
	defer func() { <-p.permits }()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("job panicked", "job_id", r.ID, "recovered", rec, "stack", string(debug.Stack()))
			r.markFailed("internal error during job execution")
			r.logActivity("failed", "internal error during job execution")
		}
	}()

	r.markRunning()
	r.logActivity("started", fmt.Sprintf("%d items queued", len(items)))

	for _, item := range items {
		p.processItem(r, item, cfg)
	}

	r.markCompleted()
	snap := r.snapshot()
	r.logActivity("completed", fmt.Sprintf("%d items processed, %d chunks created", snap.ProcessedItems, snap.ChunksCreated))
}

// processItem pre-splits oversize items, routes the (sub-)item to a
// chunker, and streams the produced chunks to the sink in batches (§4.4
// step 2).
func (p *Processor) processItem(r *Record, item chunk.SourceItem, cfg chunk.Config) {
	subItems := preSplitOversize(item, p.maxContent)

	totalChunks := 0
	for _, sub := range subItems {
		c := router.Route(p.router, sub, cfg)

		chunks, err := p.chunkWithTimeout(c, sub, cfg)
		if err != nil {
			slog.Error("chunker failed", "job_id", r.ID, "source_item_id", sub.ID, "chunker", c.Name(), "error", err)
			continue
		}
		if off, ok := sub.Metadata["byte_offset"].(int); ok {
			for i := range chunks {
				chunks[i].StartIndex += off
				chunks[i].EndIndex += off
			}
		}
		totalChunks += len(chunks)
		p.deliver(r, chunks)
	}

	r.bumpProcessed(totalChunks)
	r.logActivity("chunked", fmt.Sprintf("%s: %d chunks", item.ID, totalChunks))
}

func (p *Processor) chunkWithTimeout(c chunkers.Chunker, item chunk.SourceItem, cfg chunk.Config) ([]chunk.Chunk, error) {
	type result struct {
		chunks []chunk.Chunk
		err    error
	}
	done := make(chan result, 1)
	go func() {
		chunks, err := c.Chunk(item, cfg)
		done <- result{chunks: chunks, err: err}
	}()
	select {
	case res := <-done:
		return res.chunks, res.err
	case <-time.After(defaultParseTimeout):
		return nil, fmt.Errorf("parse_timeout=true: chunker %s exceeded %s", c.Name(), defaultParseTimeout)
	}
}

// deliver streams chunks to the sink in batches of p.batchSize, counting
// batch-level failures into the job's sink_errors field without failing
// the job (§4.5).
func (p *Processor) deliver(r *Record, chunks []chunk.Chunk) {
	if p.sink == nil || len(chunks) == 0 {
		return
	}
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := p.sink.Send(ctx, batch)
		cancel()
		if err != nil {
			slog.Warn("sink batch failed permanently", "job_id", r.ID, "error", err)
			r.bumpSinkError()
		}
	}
}

// preSplitOversize splits an item exceeding maxContent on double-newline
// boundaries into sub-items, preserving cumulative byte offsets via each
// sub-item's metadata (§4.4 step 2).
func preSplitOversize(item chunk.SourceItem, maxContent int64) []chunk.SourceItem {
	if int64(len(item.Content)) <= maxContent {
		return []chunk.SourceItem{item}
	}

	parts := strings.Split(item.Content, "\n\n")
	var subItems []chunk.SourceItem
	offset := 0
	for i, part := range parts {
		meta := make(map[string]any, len(item.Metadata)+1)
		for k, v := range item.Metadata {
			meta[k] = v
		}
		meta["byte_offset"] = offset
		sub := item
		sub.ID = fmt.Sprintf("%s#%d", item.ID, i)
		sub.Content = part
		sub.Metadata = meta
		subItems = append(subItems, sub)
		offset += len(part) + 2
	}
	return subItems
}
