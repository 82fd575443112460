package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outbrain/memoryd/internal/embedder"
	"github.com/outbrain/memoryd/internal/graphstore"
	"github.com/outbrain/memoryd/internal/memory"
	"github.com/outbrain/memoryd/internal/reranker"
	"github.com/outbrain/memoryd/internal/retrieval"
	"github.com/outbrain/memoryd/internal/vectorstore"
)

// QuestionRequest is a question posed against a user's memory records.
type QuestionRequest struct {
	UserID          string
	Text            string
	SearchSessionID string
}

// GraphSnapshot summarises the subgraph that grounded an answer.
type GraphSnapshot struct {
	NodeCount int
	EdgeCount int
}

// ReasoningPath records how an answer was derived: which stored records
// contributed and how much graph context was pulled in.
type ReasoningPath struct {
	Summary       string
	Records       []string
	GraphSnapshot GraphSnapshot
}

// Answer is the reasoning pipeline's final output.
type Answer struct {
	Answer        string
	Confidence    float32
	ReasoningPath ReasoningPath
}

// TextSearcher is the lexical search leg of hybrid retrieval.
type TextSearcher interface {
	TextSearch(ctx context.Context, userID, query string, topK int) ([]retrieval.Candidate, error)
}

// Options tune the retrieval pipeline. The zero value is not usable; use
// DefaultOptions as a base.
type Options struct {
	TopK            int
	VectorWeight    float64
	TextWeight      float64
	TimeDecayWeight float64
	RRFK            int     // 0 means the package default
	HalfLifeDays    float64 // 0 means the package default
	HopDistance     int
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	DisableRecency  bool
}

// DefaultOptions returns the standard pipeline tuning.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		VectorWeight:    0.5,
		TextWeight:      0.5,
		TimeDecayWeight: 0.3,
		HopDistance:     1,
		SearchTimeout:   10 * time.Second,
		GenerateTimeout: 30 * time.Second,
	}
}

// Service runs the full question-answering pipeline: embed, hybrid search,
// fuse, recency reweight, rerank, graph expansion, synthesis.
type Service struct {
	embedder    embedder.Embedder
	vectors     vectorstore.VectorStore
	texts       TextSearcher // optional
	fuser       *retrieval.Fuser
	reweighter  *retrieval.Reweighter
	reranker    reranker.Reranker
	graph       graphstore.GraphStore // optional
	synthesizer *Synthesizer
	sessions    *memory.Store
	opts        Options
	logger      *slog.Logger
}

// NewService wires the reasoning pipeline. texts and graph may be nil, which
// degrades retrieval to vector-only and skips graph expansion respectively.
func NewService(
	emb embedder.Embedder,
	vectors vectorstore.VectorStore,
	texts TextSearcher,
	rr reranker.Reranker,
	graph graphstore.GraphStore,
	synth *Synthesizer,
	sessions *memory.Store,
	opts Options,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if sessions == nil {
		sessions = memory.DefaultStore()
	}
	fuser := retrieval.NewFuser()
	if opts.RRFK > 0 {
		fuser.K = opts.RRFK
	}
	reweighter := retrieval.NewReweighter()
	if opts.HalfLifeDays > 0 {
		reweighter.HalfLifeDays = opts.HalfLifeDays
	}
	return &Service{
		embedder:    emb,
		vectors:     vectors,
		texts:       texts,
		fuser:       fuser,
		reweighter:  reweighter,
		reranker:    rr,
		graph:       graph,
		synthesizer: synth,
		sessions:    sessions,
		opts:        opts,
		logger:      logger,
	}
}

// AnswerQuestion runs the pipeline end to end. Only an embedding failure or
// an unreachable vector store is fatal; every later stage degrades and the
// pipeline carries on with what it has.
func (s *Service) AnswerQuestion(ctx context.Context, req QuestionRequest) (*Answer, error) {
	if req.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if req.Text == "" {
		return nil, errors.New("question text is required")
	}

	start := time.Now()

	queryVector, err := s.embedder.Embed(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	s.logger.Debug("question embedded",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("dimension", len(queryVector)))

	fused, err := s.hybridSearch(ctx, req.UserID, req.Text, queryVector)
	if err != nil {
		return nil, err
	}

	// Overfetched candidates get trimmed after recency and rerank so both
	// stages see the full pool.
	var pool []retrieval.Candidate
	if s.opts.DisableRecency {
		for _, fc := range fused {
			pool = append(pool, fc.Candidate)
		}
	} else {
		reweighted := s.reweighter.Reweight(flattenFused(fused), s.opts.TimeDecayWeight)
		for _, rc := range reweighted {
			pool = append(pool, rc.Candidate)
		}
	}

	var ranked []reranker.ScoredCandidate
	if s.reranker != nil {
		ranked = s.reranker.Rerank(ctx, req.Text, pool, s.opts.TopK)
	} else {
		for i, c := range pool {
			if i >= s.opts.TopK {
				break
			}
			ranked = append(ranked, reranker.ScoredCandidate{Candidate: c})
		}
	}
	s.logger.Debug("candidates ranked",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("count", len(ranked)))

	subgraph := s.expandGraph(ctx, req.UserID, ranked)

	history := s.sessions.RecentHistory(req.SearchSessionID, 0)

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()
	result := s.synthesizer.Synthesize(genCtx, req.Text, ranked, subgraph, history)

	s.sessions.AddUserMessage(req.SearchSessionID, req.Text)
	s.sessions.AddAssistantMessage(req.SearchSessionID, result.Answer)

	recordIDs := make([]string, 0, len(ranked))
	for _, rec := range ranked {
		recordIDs = append(recordIDs, rec.ID)
	}

	s.logger.Info("question answered",
		slog.String("user_id", req.UserID),
		slog.Int("records", len(recordIDs)),
		slog.Int("graph_nodes", len(subgraph.Nodes)),
		slog.Duration("total", time.Since(start)))

	return &Answer{
		Answer:     result.Answer,
		Confidence: result.Confidence,
		ReasoningPath: ReasoningPath{
			Summary: result.ReasoningSummary,
			Records: recordIDs,
			GraphSnapshot: GraphSnapshot{
				NodeCount: len(subgraph.Nodes),
				EdgeCount: len(subgraph.Edges),
			},
		},
	}, nil
}

// hybridSearch runs the vector and lexical legs concurrently and fuses the
// results. Vector failures are fatal; a missing or broken text index only
// degrades retrieval to vector-only.
func (s *Service) hybridSearch(ctx context.Context, userID, query string, vector []float32) ([]retrieval.FusedCandidate, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	// Overfetch so fusion and reranking have a pool to work with.
	fetchK := s.opts.TopK * 2

	var vecResults, textResults []retrieval.Candidate

	g, gctx := errgroup.WithContext(searchCtx)
	g.Go(func() error {
		results, err := s.vectors.Search(gctx, userID, vector, fetchK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vecResults = results
		return nil
	})
	if s.texts != nil {
		g.Go(func() error {
			results, err := s.texts.TextSearch(gctx, userID, query, fetchK)
			if err != nil {
				s.logger.Warn("text search unavailable, using vector results only",
					slog.String("error", err.Error()))
				return nil
			}
			textResults = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := s.fuser.Fuse(vecResults, textResults, s.opts.VectorWeight, s.opts.TextWeight)
	s.logger.Debug("hybrid search fused",
		slog.Int("vector_hits", len(vecResults)),
		slog.Int("text_hits", len(textResults)),
		slog.Int("fused", len(fused)))
	return fused, nil
}

// expandGraph pulls neighbourhood context for the ranked records. Any graph
// failure produces an empty subgraph, never an error.
func (s *Service) expandGraph(ctx context.Context, userID string, ranked []reranker.ScoredCandidate) *graphstore.Subgraph {
	if s.graph == nil || len(ranked) == 0 {
		return &graphstore.Subgraph{}
	}

	seeds := make([]string, 0, len(ranked))
	for _, rec := range ranked {
		if rec.RecordID != "" {
			seeds = append(seeds, rec.RecordID)
		}
	}

	subgraph, err := s.graph.ExpandContext(ctx, userID, seeds, s.opts.HopDistance)
	if err != nil {
		s.logger.Warn("graph expansion failed, continuing without graph context",
			slog.String("error", err.Error()))
		return &graphstore.Subgraph{}
	}
	return subgraph
}

func flattenFused(fused []retrieval.FusedCandidate) []retrieval.Candidate {
	out := make([]retrieval.Candidate, len(fused))
	for i, fc := range fused {
		out[i] = fc.Candidate
	}
	return out
}
