// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package engine owns the trained artifacts and serves requests against them.
//
// A training run produces an immutable Snapshot (dataset, matrix, fitted
// similarity model, and the wired scorers). Requests read whichever snapshot
// is current via an atomic pointer, so a background refresh never blocks or
// corrupts an in-flight request; the old snapshot simply stays referenced
// until its readers finish.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TrevanC/MTGrec/internal/config"
	"github.com/TrevanC/MTGrec/internal/constraint"
	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/deck"
	"github.com/TrevanC/MTGrec/internal/eval"
	"github.com/TrevanC/MTGrec/internal/logging"
	"github.com/TrevanC/MTGrec/internal/matrix"
	"github.com/TrevanC/MTGrec/internal/metrics"
	"github.com/TrevanC/MTGrec/internal/prior"
	"github.com/TrevanC/MTGrec/internal/scoring"
	"github.com/TrevanC/MTGrec/internal/similarity"
)

// Engine errors.
var (
	// ErrNotReady is returned when no snapshot has been trained yet.
	ErrNotReady = errors.New("engine not ready: no trained snapshot")

	// ErrEmptySeed is returned when a request resolves to zero seed cards.
	ErrEmptySeed = errors.New("seed resolves to no cards")

	// ErrUnresolved is returned when inputs cannot be resolved and the
	// request did not opt into partial resolution.
	ErrUnresolved = errors.New("unresolved card identifiers")
)

// Snapshot bundles everything a request needs, built in one training run.
// Immutable after construction.
type Snapshot struct {
	Dataset   *dataset.Dataset
	Bundle    *matrix.Bundle
	Model     *similarity.Model
	Resolver  *dataset.Resolver
	Checker   *constraint.Checker
	Shape     *constraint.ShapeEvaluator
	Priors    *prior.Store
	Scorer    *scoring.Scorer
	Assembler *deck.Assembler

	BuiltAt time.Time
	Version int64
}

// Engine loads the dataset, trains the models, and serves requests.
type Engine struct {
	cfg   *config.Config
	cache *similarity.Store
	log   zerolog.Logger

	version  atomic.Int64
	snapshot atomic.Pointer[Snapshot]
}

// New creates an engine. No snapshot exists until LoadAndTrain succeeds.
func New(cfg *config.Config) (*Engine, error) {
	cache, err := similarity.NewStore(cfg.Data.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("similarity cache: %w", err)
	}
	return &Engine{
		cfg:   cfg,
		cache: cache,
		log:   logging.With("engine"),
	}, nil
}

// Snapshot returns the current snapshot, or nil before the first training.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Ready reports whether a snapshot is available.
func (e *Engine) Ready() bool {
	return e.snapshot.Load() != nil
}

// LoadAndTrain builds a fresh snapshot from the dataset document and swaps it
// in. refresh forces a similarity refit even when a cached model matches the
// matrix fingerprint.
func (e *Engine) LoadAndTrain(ctx context.Context, refresh bool) error {
	totalStart := time.Now()

	err := e.loadAndTrain(ctx, refresh)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("failure").Inc()
		return err
	}

	metrics.TrainingRuns.WithLabelValues("success").Inc()
	metrics.ObserveTrainingStage("total", totalStart)
	return nil
}

func (e *Engine) loadAndTrain(ctx context.Context, refresh bool) error {
	stageStart := time.Now()
	builder := dataset.NewBuilder(dataset.BuilderConfig{
		SmoothingAlpha: e.cfg.Dataset.SmoothingAlpha,
		MaxFailureRate: e.cfg.Dataset.MaxFailureRate,
	})
	ds, err := builder.Load(e.cfg.Data.DatasetPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	metrics.SkippedRecords.Add(float64(ds.SkippedRecords))
	metrics.ObserveTrainingStage("dataset", stageStart)

	stageStart = time.Now()
	bundle, err := matrix.Build(ds, matrix.Config{
		MinCardFrequency: e.cfg.Matrix.MinCardFrequency,
	})
	if err != nil {
		return fmt.Errorf("build matrix: %w", err)
	}
	metrics.ObserveTrainingStage("matrix", stageStart)

	stageStart = time.Now()
	model, err := e.similarityModel(ctx, bundle, refresh)
	if err != nil {
		return err
	}
	metrics.ObserveTrainingStage("similarity", stageStart)

	snap := e.assemble(ds, bundle, model)
	e.snapshot.Store(snap)

	metrics.SnapshotVersion.Set(float64(snap.Version))
	metrics.SnapshotBuiltAt.Set(float64(snap.BuiltAt.Unix()))
	metrics.SnapshotDecks.Set(float64(len(ds.Decks)))
	metrics.SnapshotCards.Set(float64(len(ds.Cards)))

	e.log.Info().
		Int64("version", snap.Version).
		Int("decks", len(ds.Decks)).
		Int("cards", len(ds.Cards)).
		Int("skipped", ds.SkippedRecords).
		Msg("snapshot trained and published")

	return nil
}

// similarityModel loads a cached model for the bundle fingerprint, or fits a
// fresh one and caches it. A cache entry fitted with different
// hyperparameters counts as a miss.
func (e *Engine) similarityModel(ctx context.Context, bundle *matrix.Bundle, refresh bool) (*similarity.Model, error) {
	simCfg := similarity.Config{
		TopK:       e.cfg.Similarity.TopK,
		MinOverlap: e.cfg.Similarity.MinOverlap,
		Shrinkage:  e.cfg.Similarity.Shrinkage,
		NumWorkers: e.cfg.Similarity.NumWorkers,
	}

	if !refresh {
		cached, err := e.cache.Load(bundle.Fingerprint)
		switch {
		case err == nil && cached.Config() == simCfg:
			metrics.CacheHits.Inc()
			e.log.Info().Msg("similarity model loaded from cache")
			return cached, nil
		case err == nil:
			metrics.CacheMisses.Inc()
			e.log.Info().Msg("cached similarity model has stale hyperparameters, refitting")
		case errors.Is(err, similarity.ErrCacheMiss):
			metrics.CacheMisses.Inc()
		default:
			metrics.CacheMisses.Inc()
			e.log.Warn().Err(err).
				Str("kind", string(dataset.IssueStaleCache)).
				Msg("similarity cache unreadable, refitting")
		}
	}

	model := similarity.New(simCfg)
	if err := model.Fit(ctx, bundle); err != nil {
		return nil, fmt.Errorf("fit similarity: %w", err)
	}
	if err := e.cache.Save(model); err != nil {
		e.log.Warn().Err(err).Msg("similarity cache save failed")
	}
	return model, nil
}

// assemble wires the request-serving components around the trained models.
func (e *Engine) assemble(ds *dataset.Dataset, bundle *matrix.Bundle, model *similarity.Model) *Snapshot {
	checker := constraint.NewChecker(ds.Cards, ds.BanList)
	shape := constraint.NewShapeEvaluator(constraint.ShapeTarget{
		Lands:   e.cfg.Shape.Lands,
		Ramp:    e.cfg.Shape.Ramp,
		Draw:    e.cfg.Shape.Draw,
		Removal: e.cfg.Shape.Removal,
		Curve:   e.cfg.Shape.Curve,
	})
	priors := prior.NewStore(ds.CommanderProfiles, prior.Config{
		MaxCommanders: e.cfg.Prior.MaxCommanders,
	})
	scoringCfg := scoring.Config{
		SimilarityWeight: e.cfg.Scoring.SimilarityWeight,
		CommanderWeight:  e.cfg.Scoring.CommanderWeight,
		FrequencyWeight:  e.cfg.Scoring.FrequencyWeight,
		ShapeWeight:      e.cfg.Scoring.ShapeWeight,
		MaxCandidates:    e.cfg.Scoring.MaxCandidates,
	}
	scorer := scoring.NewScorer(model, priors, shape, checker, ds.Cards, bundle.GlobalFrequency, scoringCfg)
	assembler := deck.NewAssembler(scorer, checker, shape, ds.Cards, bundle.GlobalFrequency, scoringCfg, deck.Config{
		TargetSize:     e.cfg.Deck.TargetSize,
		RankedListSize: e.cfg.Deck.RankedListSize,
		MaxSwaps:       e.cfg.Deck.MaxSwaps,
	})

	return &Snapshot{
		Dataset:   ds,
		Bundle:    bundle,
		Model:     model,
		Resolver:  dataset.NewResolver(ds.Cards),
		Checker:   checker,
		Shape:     shape,
		Priors:    priors,
		Scorer:    scorer,
		Assembler: assembler,
		BuiltAt:   time.Now().UTC(),
		Version:   e.version.Add(1),
	}
}

// seedResolution is the outcome of turning request identifiers into a deck.
type seedResolution struct {
	deck       *dataset.Deck
	commanders []ResolvedCard
	unresolved []UnresolvedCard
	issues     []dataset.Issue
}

// resolveSeed builds the working seed deck from request identifiers.
func (e *Engine) resolveSeed(snap *Snapshot, req *RecommendRequest) (*seedResolution, error) {
	res := &seedResolution{}

	counts := make(map[string]int, len(req.Seed))
	var seedOrder []string
	for _, input := range req.Seed {
		card, ok := snap.Resolver.Resolve(input)
		if !ok {
			res.unresolved = append(res.unresolved, UnresolvedCard{
				Input:       input,
				Suggestions: snap.Resolver.Suggest(input, 3),
			})
			res.issues = append(res.issues, dataset.Issue{
				Kind:   dataset.IssueUnknownCard,
				Detail: fmt.Sprintf("unknown card %q", input),
			})
			continue
		}
		if counts[card.OracleID] == 0 {
			seedOrder = append(seedOrder, card.OracleID)
		}
		counts[card.OracleID]++
	}

	var commanders []string
	for _, input := range req.Commanders {
		card, ok := snap.Resolver.Resolve(input)
		if !ok {
			res.unresolved = append(res.unresolved, UnresolvedCard{
				Input:       input,
				Suggestions: snap.Resolver.Suggest(input, 3),
			})
			res.issues = append(res.issues, dataset.Issue{
				Kind:   dataset.IssueUnknownCard,
				Detail: fmt.Sprintf("unknown commander %q", input),
			})
			continue
		}
		commanders = append(commanders, card.OracleID)
		res.commanders = append(res.commanders, ResolvedCard{
			Input:    input,
			OracleID: card.OracleID,
			Name:     card.Name,
		})
	}

	if len(res.unresolved) > 0 && !req.AllowUnresolved {
		return nil, fmt.Errorf("%w: %d of %d inputs", ErrUnresolved,
			len(res.unresolved), len(req.Seed)+len(req.Commanders))
	}
	if len(counts) == 0 && len(commanders) == 0 {
		return nil, ErrEmptySeed
	}

	// No explicit commanders: the legendary creatures among the seed, in
	// input order, up to the configured cap.
	if len(commanders) == 0 {
		for _, id := range seedOrder {
			card := snap.Dataset.Cards[id]
			if !card.IsLegendaryCreature() {
				continue
			}
			commanders = append(commanders, id)
			res.commanders = append(res.commanders, ResolvedCard{
				Input:    card.Name,
				OracleID: id,
				Name:     card.Name,
			})
			if len(commanders) >= e.cfg.Prior.MaxCommanders {
				break
			}
		}
	}
	if len(commanders) == 0 {
		res.issues = append(res.issues, dataset.Issue{
			Kind:   dataset.IssueMissingCommander,
			Detail: "no commander given or detected; ranking without a commander prior",
		})
	}

	for _, id := range commanders {
		if counts[id] == 0 {
			counts[id] = 1
		}
	}

	res.deck = &dataset.Deck{
		DeckID:        "request",
		Commanders:    commanders,
		CardCounts:    counts,
		ColorIdentity: seedColorIdentity(snap.Dataset.Cards, commanders, counts),
		RoleCounts:    dataset.DeriveRoleCounts(counts, snap.Dataset.Cards),
	}
	return res, nil
}

// seedColorIdentity is the union of the commanders' color identities, or of
// every seed card when no commander is known.
func seedColorIdentity(cards map[string]dataset.Card, commanders []string, counts map[string]int) []string {
	union := make(map[string]struct{})
	add := func(id string) {
		for _, symbol := range cards[id].ColorIdentity {
			union[symbol] = struct{}{}
		}
	}

	if len(commanders) > 0 {
		for _, id := range commanders {
			add(id)
		}
	} else {
		for id := range counts {
			add(id)
		}
	}

	identity := make([]string, 0, len(union))
	for _, symbol := range []string{"B", "G", "R", "U", "W"} {
		if _, ok := union[symbol]; ok {
			identity = append(identity, symbol)
		}
	}
	return identity
}

// Recommend returns a ranked suggestion list for the request's seed.
func (e *Engine) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	snap := e.snapshot.Load()
	if snap == nil {
		metrics.ObserveRequest("recommend", "error", start)
		return nil, ErrNotReady
	}

	res, err := e.resolveSeed(snap, req)
	if err != nil {
		metrics.ObserveRequest("recommend", "error", start)
		return nil, err
	}

	scored, issues := snap.Scorer.Score(res.deck)
	topN := req.TopN
	if topN <= 0 {
		topN = e.cfg.Deck.RankedListSize
	}
	if len(scored) > topN {
		scored = scored[:topN]
	}

	metrics.ObserveRequest("recommend", "success", start)
	e.log.Debug().
		Str("request_id", requestID).
		Int("seed", len(req.Seed)).
		Int("suggestions", len(scored)).
		Dur("elapsed", time.Since(start)).
		Msg("recommend request served")

	return &RecommendResponse{
		RequestID:   requestID,
		Commanders:  res.commanders,
		Suggestions: scored,
		Unresolved:  res.unresolved,
		Issues:      append(res.issues, issues...),
	}, nil
}

// CompleteDeck fills the request's seed up to the configured deck size.
func (e *Engine) CompleteDeck(ctx context.Context, req *RecommendRequest) (*CompleteResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	snap := e.snapshot.Load()
	if snap == nil {
		metrics.ObserveRequest("complete", "error", start)
		return nil, ErrNotReady
	}

	res, err := e.resolveSeed(snap, req)
	if err != nil {
		metrics.ObserveRequest("complete", "error", start)
		return nil, err
	}

	completion, issues := snap.Assembler.Complete(res.deck)

	metrics.ObserveRequest("complete", "success", start)
	e.log.Debug().
		Str("request_id", requestID).
		Int("added", len(completion.Added)).
		Dur("elapsed", time.Since(start)).
		Msg("complete request served")

	return &CompleteResponse{
		RequestID:  requestID,
		Commanders: res.commanders,
		Added:      completion.Added,
		CardCounts: completion.CardCounts,
		Unresolved: res.unresolved,
		Issues:     append(res.issues, issues...),
	}, nil
}

// SuggestSwaps proposes cut-and-replace pairs for the request's deck.
func (e *Engine) SuggestSwaps(ctx context.Context, req *RecommendRequest) (*SwapsResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	snap := e.snapshot.Load()
	if snap == nil {
		metrics.ObserveRequest("swaps", "error", start)
		return nil, ErrNotReady
	}

	res, err := e.resolveSeed(snap, req)
	if err != nil {
		metrics.ObserveRequest("swaps", "error", start)
		return nil, err
	}

	swaps, issues := snap.Assembler.SuggestSwaps(res.deck)

	metrics.ObserveRequest("swaps", "success", start)

	return &SwapsResponse{
		RequestID:  requestID,
		Commanders: res.commanders,
		Swaps:      swaps,
		Unresolved: res.unresolved,
		Issues:     append(res.issues, issues...),
	}, nil
}

// ValidateDecklist parses a raw decklist and resolves every entry.
func (e *Engine) ValidateDecklist(ctx context.Context, text string) (*ValidateResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	snap := e.snapshot.Load()
	if snap == nil {
		metrics.ObserveRequest("validate", "error", start)
		return nil, ErrNotReady
	}

	entries, issues := dataset.ParseDecklist(text)

	resp := &ValidateResponse{RequestID: requestID, Issues: issues}
	for _, entry := range entries {
		card, ok := snap.Resolver.Resolve(entry.Name)
		if !ok {
			resp.Unresolved = append(resp.Unresolved, UnresolvedCard{
				Input:       entry.Name,
				Suggestions: snap.Resolver.Suggest(entry.Name, 3),
			})
			resp.Issues = append(resp.Issues, dataset.Issue{
				Kind:   dataset.IssueUnknownCard,
				Detail: fmt.Sprintf("unknown card %q", entry.Name),
			})
			continue
		}
		resp.Entries = append(resp.Entries, ResolvedEntry{
			OracleID: card.OracleID,
			Name:     card.Name,
			Quantity: entry.Quantity,
		})
	}

	// Composition diagnostics against the configured deck size.
	total := 0
	for _, entry := range entries {
		total += entry.Quantity
	}
	if total != e.cfg.Deck.TargetSize {
		resp.Issues = append(resp.Issues, dataset.Issue{
			Kind:   dataset.IssueDeckSize,
			Detail: fmt.Sprintf("decklist has %d cards, format expects %d", total, e.cfg.Deck.TargetSize),
		})
	}

	metrics.ObserveRequest("validate", "success", start)
	return resp, nil
}

// Evaluate runs the holdout harness against the current snapshot.
func (e *Engine) Evaluate(ctx context.Context) (*EvalResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	snap := e.snapshot.Load()
	if snap == nil {
		metrics.ObserveRequest("evaluate", "error", start)
		return nil, ErrNotReady
	}

	evaluator := eval.NewEvaluator(snap.Scorer, eval.Config{
		HoldoutFraction: e.cfg.Eval.HoldoutFraction,
		SeedSize:        e.cfg.Eval.SeedSize,
		PrecisionK:      e.cfg.Eval.PrecisionK,
		RandomSeed:      e.cfg.Eval.RandomSeed,
	})
	result, err := evaluator.Evaluate(snap.Dataset)
	if err != nil {
		metrics.ObserveRequest("evaluate", "error", start)
		return nil, err
	}

	metrics.ObserveRequest("evaluate", "success", start)
	return &EvalResponse{RequestID: requestID, Result: result}, nil
}
