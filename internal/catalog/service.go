package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gridfeed/gridfeed/internal/config"
	"github.com/gridfeed/gridfeed/internal/discover"
	"github.com/gridfeed/gridfeed/internal/engine"
)

// ErrUnknownSource reports a request naming a source that is not registered.
var ErrUnknownSource = errors.New("unknown source")

// ErrInvalidRequest reports a structurally invalid read request.
var ErrInvalidRequest = errors.New("invalid request")

// Service orchestrates catalog builds and read operations over the
// registered file sources.
type Service struct {
	store  *Store
	engine *engine.Engine
	cfg    *config.Config
	logger *slog.Logger
}

// NewService wires the catalog service.
func NewService(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  NewStore(pool),
		engine: engine.NewEngine(logger, nil),
		cfg:    cfg,
		logger: logger,
	}
}

// Store exposes the catalog store, mainly for health checks.
func (s *Service) Store() *Store { return s.store }

// BuildResult summarizes one source's contribution to a catalog build.
type BuildResult struct {
	Source    string `json:"source"`
	BuildID   string `json:"buildId,omitempty"`
	Resources int    `json:"resources"`
	Dropped   int    `json:"dropped"`
	Error     string `json:"error,omitempty"`
}

// RefreshCatalog rebuilds the stored catalog from one sample file per
// source. An empty sourceName rebuilds every registered source. A failing
// source contributes an error entry without stopping the other sources.
func (s *Service) RefreshCatalog(ctx context.Context, sourceName string) ([]BuildResult, error) {
	var defs []SourceDefinition
	if sourceName != "" {
		def, ok := Get(sourceName)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownSource, sourceName)
		}
		defs = []SourceDefinition{def}
	} else {
		defs = All()
	}

	results := make([]BuildResult, 0, len(defs))
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.buildSource(ctx, def))
	}
	return results, nil
}

// buildSource resolves one source's sample file into stored resources.
func (s *Service) buildSource(ctx context.Context, def SourceDefinition) BuildResult {
	result := BuildResult{Source: def.Name}
	logger := s.logger.With("source", def.Name)

	fail := func(err error) BuildResult {
		logger.Warn("catalog build failed", "error", err)
		result.Error = err.Error()
		return result
	}

	compiled, err := def.Settings.Compile()
	if err != nil {
		return fail(err)
	}

	samplePath, err := discover.Sample(&def.Settings)
	if err != nil {
		return fail(err)
	}
	logger = logger.With("path", samplePath)

	f, err := os.Open(samplePath)
	if err != nil {
		return fail(fmt.Errorf("open sample file: %w", err))
	}
	defer f.Close()

	stream, err := engine.DecodeStream(f, def.Settings.CodePage)
	if err != nil {
		return fail(err)
	}

	resources, err := compiled.ResolveStream(stream)
	if err != nil {
		return fail(err)
	}

	// Default-group fallback: per-source first, then the service default.
	fallback := def.Settings.DefaultGroup
	if fallback == "" {
		fallback = s.cfg.Catalog.DefaultGroup
	}
	kept := 0
	for _, res := range resources {
		if res == nil {
			continue
		}
		if res.Group == "" {
			res.Group = fallback
		}
		kept++
	}

	buildID := uuid.New()
	if err := s.store.ReplaceResources(ctx, def.Name, buildID, resources); err != nil {
		return fail(err)
	}

	result.BuildID = buildID.String()
	result.Resources = kept
	result.Dropped = len(resources) - kept
	logger.Info("catalog build complete", "resources", kept, "dropped", result.Dropped)
	return result
}

// ListResources returns the stored catalog entries for a source.
func (s *Service) ListResources(ctx context.Context, source string) ([]StoredResource, error) {
	if _, ok := Get(source); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, source)
	}
	return s.store.ListResources(ctx, source)
}

// FileSegment names one file's already-resolved contribution to a read
// window: which part of the file maps onto which part of the window. The
// outer scheduling that computes segments is the caller's concern.
type FileSegment struct {
	// Path is the file to decode.
	Path string `json:"path"`

	// Begin is the beginning instant of the grid covered by the file.
	Begin time.Time `json:"begin"`

	// SlotOffset is where the file's block starts within the window.
	SlotOffset int `json:"slotOffset"`

	// FileOffset is the number of grid slots skipped inside the file.
	FileOffset int `json:"fileOffset,omitempty"`

	// Block is the number of grid slots this file fills.
	Block int `json:"block"`
}

// WindowRequest describes one read operation.
type WindowRequest struct {
	Source    string        `json:"source"`
	Resources []string      `json:"resources"`
	Slots     int           `json:"slots"`
	Segments  []FileSegment `json:"segments"`
}

// Series is one resource's decoded window. Values holds null for slots
// without a representable number so the result survives JSON encoding.
type Series struct {
	Resource string     `json:"resource"`
	Values   []*float64 `json:"values"`
	Status   []byte     `json:"status"`
}

// WindowResult is the outcome of one read operation.
type WindowResult struct {
	OperationID string        `json:"operationId"`
	Source      string        `json:"source"`
	Slots       int           `json:"slots"`
	Series      []Series      `json:"series"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
}

// ReadWindow runs one read operation: every segment decodes concurrently
// into its own disjoint region of the shared buffers, one worker per file.
func (s *Service) ReadWindow(ctx context.Context, req WindowRequest) (*WindowResult, error) {
	def, ok := Get(req.Source)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, req.Source)
	}
	if len(req.Resources) == 0 {
		return nil, fmt.Errorf("%w: no resources requested", ErrInvalidRequest)
	}
	if req.Slots <= 0 || req.Slots > s.cfg.Read.MaxSlots {
		return nil, fmt.Errorf("%w: slots must be in [1, %d], got %d", ErrInvalidRequest, s.cfg.Read.MaxSlots, req.Slots)
	}
	for i, seg := range req.Segments {
		if seg.Block <= 0 || seg.SlotOffset < 0 || seg.SlotOffset+seg.Block > req.Slots {
			return nil, fmt.Errorf("%w: segment %d: block [%d, %d) outside window of %d slots",
				ErrInvalidRequest, i, seg.SlotOffset, seg.SlotOffset+seg.Block, req.Slots)
		}
		if seg.FileOffset < 0 {
			return nil, fmt.Errorf("%w: segment %d: negative file offset", ErrInvalidRequest, i)
		}
	}

	start := time.Now()
	operationID := uuid.New()
	logger := s.logger.With("operation_id", operationID.String(), "source", req.Source)

	values := make([][]float64, len(req.Resources))
	status := make([][]byte, len(req.Resources))
	for i := range req.Resources {
		values[i] = make([]float64, req.Slots)
		status[i] = make([]byte, req.Slots)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Read.MaxConcurrentFiles)

	for _, seg := range req.Segments {
		seg := seg
		g.Go(func() error {
			requests := make([]engine.ReadRequest, len(req.Resources))
			for i, name := range req.Resources {
				requests[i] = engine.ReadRequest{
					OriginalName: name,
					Values:       values[i][seg.SlotOffset : seg.SlotOffset+seg.Block],
					Status:       status[i][seg.SlotOffset : seg.SlotOffset+seg.Block],
				}
			}
			info := engine.ReadInfo{
				Path:       seg.Path,
				FileOffset: seg.FileOffset,
				FileBlock:  seg.Block,
				FileBegin:  seg.Begin,
				Settings:   &def.Settings,
			}
			return s.engine.Read(gctx, info, requests)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &WindowResult{
		OperationID: operationID.String(),
		Source:      req.Source,
		Slots:       req.Slots,
		Series:      make([]Series, len(req.Resources)),
		Duration:    time.Since(start),
	}
	result.DurationMS = result.Duration.Milliseconds()

	for i, name := range req.Resources {
		result.Series[i] = Series{
			Resource: name,
			Values:   nullableValues(values[i]),
			Status:   status[i],
		}
	}

	audit := ReadAudit{
		ID:        operationID,
		Source:    req.Source,
		Resources: len(req.Resources),
		Slots:     req.Slots,
		Files:     len(req.Segments),
		Duration:  result.Duration,
	}
	if err := s.store.RecordRead(ctx, audit); err != nil {
		// Auditing never blocks a read result.
		logger.Warn("failed to record read operation", "error", err)
	}

	logger.Info("read window complete",
		"resources", len(req.Resources), "slots", req.Slots,
		"files", len(req.Segments), "duration_ms", result.DurationMS)
	return result, nil
}

// nullableValues converts a value buffer for JSON encoding: NaN has no JSON
// representation and becomes null.
func nullableValues(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			out[i] = &values[i]
		}
	}
	return out
}
