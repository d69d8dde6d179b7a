// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package engine wires the interest-and-key-phrase engine's nine core
// components (C1-C9) to a docstore.Storage backend and an embedding
// client, implementing the data flow of spec §3: ingest updates a
// user's Centers of Interest and key-phrase table on interaction,
// and queries blend CoI-driven scoring with exploration and a
// multi-armed-bandit stack selector.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/interestengine/internal/docstore"
	"github.com/tomtom215/interestengine/internal/engineconfig"
	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/coistore"
	"github.com/tomtom215/interestengine/internal/interest/coiupdate"
	"github.com/tomtom215/interestengine/internal/interest/docscore"
	"github.com/tomtom215/interestengine/internal/interest/embedclient"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
	"github.com/tomtom215/interestengine/internal/interest/exploration"
	"github.com/tomtom215/interestengine/internal/interest/keyphrase"
	"github.com/tomtom215/interestengine/internal/interest/keyphrasetake"
	"github.com/tomtom215/interestengine/internal/interest/mab"
	"github.com/tomtom215/interestengine/internal/interest/pipeline"
	"github.com/tomtom215/interestengine/internal/interest/relevance"
	"github.com/tomtom215/interestengine/internal/obsmetrics"
)

// Config aggregates every component's tuning, built from engineconfig.
type Config struct {
	CoiUpdate   coiupdate.Config
	Relevance   relevance.Config
	Docscore    docscore.Config
	Mab         mab.Config
	Exploration exploration.Config
	MaxKeyPhrases int
	Gamma         float32
	Penalty       []float64
}

// FromEngineConfig builds a Config from the loaded engineconfig.Config,
// the single source of truth for the named defaults of spec §6.
func FromEngineConfig(c *engineconfig.Config) Config {
	ds := docscore.DefaultConfig()
	ds.MaxNegativeSimilarity = float32(c.Stack.MaxNegativeSimilarity)
	return Config{
		CoiUpdate: coiupdate.Config{
			Threshold:                 float32(c.Coi.Threshold),
			ShiftFactor:               float32(c.Coi.ShiftFactor),
			Horizon:                   time.Duration(c.Coi.HorizonDays) * 24 * time.Hour,
			MaxViewTimePerInteraction: 10 * time.Minute,
		},
		Relevance: relevance.Config{Horizon: time.Duration(c.Coi.HorizonDays) * 24 * time.Hour},
		Docscore:  ds,
		Mab: mab.Config{
			Epsilon:       c.Core.Epsilon,
			MaxReactions:  float64(c.Core.MaxReactions),
			IncrReactions: c.Core.IncrReactions,
		},
		Exploration: exploration.Config{
			NumberOfCandidates: c.Exploration.NumberOfCandidates,
			MaxSelectedDocs:    c.Exploration.MaxSelectedDocs,
			MaxSimilarity:      float32(c.Exploration.MaxSimilarity),
		},
		MaxKeyPhrases: c.KeyPhrase.MaxKeyPhrases,
		Gamma:         float32(c.KeyPhrase.Gamma),
		Penalty:       c.KeyPhrase.Penalty,
	}
}

// userState is the in-process, per-user working set that sits above the
// durable CoI store: the key-phrase table and taker (C5/C6) and the
// stack MAB arms (C8). Unlike coistore's Badger-backed CoI sets, this
// state lives only in memory and starts empty again after a process
// restart.
type userState struct {
	table *keyphrase.Table
	taker *keyphrasetake.Taker
	arms  map[string]mab.Arm
	// lastStack remembers which stack served a document most recently,
	// so a later like/dislike on that document can credit the right arm.
	lastStack map[string]string
}

func newUserState() *userState {
	table := keyphrase.NewTable()
	return &userState{
		table:     table,
		taker:     keyphrasetake.NewTaker(table),
		arms:      make(map[string]mab.Arm),
		lastStack: make(map[string]string),
	}
}

func (u *userState) armOrNew(stack string) mab.Arm {
	if a, ok := u.arms[stack]; ok {
		return a
	}
	return mab.NewArm(stack)
}

// Engine is the process-wide orchestrator for one tenant's interest
// engine state. The storage backend and embedding client are shared,
// immutable handles; per-user state is guarded by the CoI store's
// per-user lock, per spec §5's "no global interpreter lock" requirement.
type Engine struct {
	cfg      Config
	storage  docstore.Storage
	cois     *coistore.Store
	embedder *embedclient.Client
	bus      *pipeline.Bus

	mu    sync.Mutex
	users map[string]*userState
}

// New builds an Engine over the given storage, CoI store, embedding
// client and event bus.
func New(cfg Config, storage docstore.Storage, cois *coistore.Store, embedder *embedclient.Client, bus *pipeline.Bus) *Engine {
	return &Engine{
		cfg:      cfg,
		storage:  storage,
		cois:     cois,
		embedder: embedder,
		bus:      bus,
		users:    make(map[string]*userState),
	}
}

// Storage exposes the tenant's storage backend, for HTTP handlers that
// need document/property CRUD outside the CoI-driven query/update paths.
func (e *Engine) Storage() docstore.Storage {
	return e.storage
}

// Embedder exposes the tenant's embedding-model client, for HTTP
// handlers that need to embed raw text (e.g. document ingestion).
func (e *Engine) Embedder() *embedclient.Client {
	return e.embedder
}

// DeleteUser removes user's entire CoI state, per spec §3's lifecycle
// ("CoIs are... never deleted except when the user is deleted") and
// drops the in-process key-phrase table and MAB arms alongside it.
func (e *Engine) DeleteUser(user string) error {
	e.mu.Lock()
	delete(e.users, user)
	e.mu.Unlock()
	return e.cois.RemoveForUser(user)
}

func (e *Engine) stateFor(user string) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.users[user]
	if !ok {
		s = newUserState()
		e.users[user] = s
	}
	return s
}

// RecordInteraction applies an interaction to user's CoI state under the
// user's CoI-store lock (for a positive interaction also refreshing that
// CoI's key phrases from the document's "tags" property), appends it to
// the storage interaction log, credits the stack that served the
// document (C8), and publishes it on the event bus, whose consumer
// records metrics. These steps are not atomic: each updated CoI is
// written separately, a failure in a later step leaves the earlier
// writes in place, and an error from the key-phrase update is ignored.
func (e *Engine) RecordInteraction(ctx context.Context, tenant, user, docID string, sentiment docstore.Sentiment, viewTime time.Duration, market interest.Market) error {
	emb, ok, err := e.storage.GetEmbedding(ctx, docID)
	if err != nil {
		return fmt.Errorf("engine: get embedding for %s: %w", docID, err)
	}
	if !ok {
		return docstore.ErrDocumentNotFound
	}

	props, err := e.storage.GetProperties(ctx, docID)
	if err != nil && err != docstore.ErrDocumentNotFound {
		return err
	}
	candidates := stringSliceProperty(props, "tags")

	now := time.Now().UTC()
	state := e.stateFor(user)

	var coiID interest.CoiID
	err = e.cois.WithUserLock(ctx, user, func(ctx context.Context) error {
		switch sentiment {
		case docstore.SentimentDisliked:
			negatives, err := e.cois.Negative(user)
			if err != nil {
				return err
			}
			updated, id, err := coiupdate.UpdateNegative(e.cfg.CoiUpdate, negatives, emb, now)
			if err != nil {
				return err
			}
			coiID = id
			return e.upsertNegativeSet(user, updated)
		default:
			positives, err := e.cois.Positive(user)
			if err != nil {
				return err
			}
			updated, id, err := coiupdate.UpdatePositive(e.cfg.CoiUpdate, positives, coiupdate.Interaction{
				Point: emb, ViewTime: viewTime, Timestamp: now,
			})
			if err != nil {
				return err
			}
			coiID = id
			if err := e.upsertPositiveSet(user, updated); err != nil {
				return err
			}
			if len(candidates) > 0 {
				var coiPoint embedding.Embedding
				for _, c := range updated {
					if c.ID == coiID {
						coiPoint = c.Point
						break
					}
				}
				if !coiPoint.IsZero() {
					embedFn := func(words string) (embedding.Embedding, error) {
						return e.embedder.Embed(ctx, words)
					}
					_ = state.table.Update(coiID, market, coiPoint, candidates, embedFn, e.cfg.MaxKeyPhrases, e.cfg.Gamma)
				}
			}
			return nil
		}
	})
	if err != nil {
		return err
	}

	if err := e.storage.AppendInteraction(ctx, docstore.Interaction{
		User: user, DocID: docID, Sentiment: sentiment, ViewTime: viewTime, Timestamp: now,
	}); err != nil {
		return err
	}

	e.creditStack(state, docID, sentiment)

	if e.bus != nil {
		ev := pipeline.Event{
			Tenant:    tenant,
			User:      user,
			Point:     emb.Values(),
			ViewTime:  int64(viewTime),
			Timestamp: now,
		}
		if sentiment == docstore.SentimentDisliked {
			ev.Sentiment = pipeline.SentimentNegative
		} else {
			ev.Sentiment = pipeline.SentimentPositive
		}
		if err := e.bus.Publish(ev); err != nil {
			return fmt.Errorf("engine: publish interaction event: %w", err)
		}
	}
	return nil
}

func (e *Engine) creditStack(state *userState, docID string, sentiment docstore.Sentiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stack, ok := state.lastStack[docID]
	if !ok {
		return
	}
	arm := state.armOrNew(stack)
	next := arm
	if sentiment == docstore.SentimentDisliked {
		next.Beta += e.cfg.Mab.IncrReactions
		state.arms[stack] = e.cfg.Mab.Dislike(arm)
	} else if sentiment == docstore.SentimentLiked {
		next.Alpha += e.cfg.Mab.IncrReactions
		state.arms[stack] = e.cfg.Mab.Like(arm)
	} else {
		return
	}
	if state.arms[stack] != next {
		obsmetrics.ObserveMABRescale(stack)
	}
}

func (e *Engine) upsertPositiveSet(user string, cois []interest.PositiveCoi) error {
	for _, c := range cois {
		if err := e.cois.UpsertPositive(user, c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) upsertNegativeSet(user string, cois []interest.NegativeCoi) error {
	for _, c := range cois {
		if err := e.cois.UpsertNegative(user, c); err != nil {
			return err
		}
	}
	return nil
}

// Recommend returns up to count personalized documents for user, per
// spec §4's data flow: C6 selects driving key phrases, each seeds a KNN
// "stack" of candidates, a further exploration stack is drawn from C9,
// and C8's MAB selects which stack each returned slot comes from.
func (e *Engine) Recommend(ctx context.Context, tenant, user string, count int, market interest.Market) ([]docstore.ScoredDocument, error) {
	positives, err := e.cois.Positive(user)
	if err != nil {
		return nil, err
	}
	negatives, err := e.cois.Negative(user)
	if err != nil {
		return nil, err
	}
	if len(positives) == 0 {
		return nil, nil
	}

	state := e.stateFor(user)
	now := time.Now().UTC()
	taken := state.taker.Take(positives, market, count, e.cfg.Relevance, e.cfg.Penalty, e.cfg.Gamma, now)

	stacks := make(map[string][]docstore.ScoredDocument)
	order := make([]string, 0, len(taken)+1)
	for _, kp := range taken {
		candidates, err := e.storage.KNN(ctx, kp.Point(), count, nil, nil)
		if err != nil {
			return nil, err
		}
		stacks[kp.Words()] = candidates
		order = append(order, kp.Words())
	}

	if explorationStack, err := e.explorationStack(ctx, positives, negatives, count); err == nil && len(explorationStack) > 0 {
		stacks["exploration"] = explorationStack
		order = append(order, "exploration")
	}

	if len(order) == 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(now.UnixNano()))
	var result []docstore.ScoredDocument
	seen := make(map[string]bool)

	for len(result) < count {
		arms := make([]mab.Arm, len(order))
		for i, name := range order {
			arms[i] = state.armOrNew(name)
		}
		pick := e.cfg.Mab.Select(arms, rng)
		stackName := order[pick]

		doc, ok := popUnseen(stacks[stackName], seen)
		if !ok {
			order = append(order[:pick], order[pick+1:]...)
			if len(order) == 0 {
				break
			}
			continue
		}
		seen[doc.ID] = true
		result = append(result, doc)

		e.mu.Lock()
		state.lastStack[doc.ID] = stackName
		e.mu.Unlock()
	}

	deduped, err := e.dedupScored(ctx, result)
	if err != nil {
		return nil, err
	}
	return deduped, nil
}

// dedupScored runs C7's semantic dedup (average-linkage clustering over
// blended cosine/recency distance) over a ranked result set, dropping
// near-duplicates while preserving the caller's ordering and scores.
// Documents whose embedding can no longer be resolved are left out of
// the clustering pass but are not themselves removed from the result.
func (e *Engine) dedupScored(ctx context.Context, scored []docstore.ScoredDocument) ([]docstore.ScoredDocument, error) {
	if len(scored) < 2 {
		return scored, nil
	}

	docs := make([]interest.Document, 0, len(scored))
	unresolved := make(map[string]bool)
	for _, s := range scored {
		emb, ok, err := e.storage.GetEmbedding(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			unresolved[s.ID] = true
			continue
		}
		props, err := e.storage.GetProperties(ctx, s.ID)
		if err != nil && err != docstore.ErrDocumentNotFound {
			return nil, err
		}
		docs = append(docs, documentFromProperties(s.ID, emb, props))
	}

	deduped, err := docscore.SemanticDedup(e.cfg.Docscore, docs)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(deduped))
	for _, d := range deduped {
		keep[d.ID] = true
	}

	out := make([]docstore.ScoredDocument, 0, len(scored))
	for _, s := range scored {
		if unresolved[s.ID] || keep[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

// documentFromProperties reconstructs the interest.Document fields
// SemanticDedup needs (publish time, source weight) from a stored
// property bag, defaulting to "now" and unit weight when absent so
// documents without either property still participate in clustering.
func documentFromProperties(id string, emb embedding.Embedding, props map[string]interface{}) interest.Document {
	doc := interest.Document{ID: id, Point: emb, PublishedAt: time.Now().UTC(), SourceWeight: 1.0}
	if raw, ok := props["published_at"]; ok {
		if s, ok := raw.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				doc.PublishedAt = t
			}
		}
	}
	if raw, ok := props["source_weight"]; ok {
		if f, ok := raw.(float64); ok {
			doc.SourceWeight = f
		}
	}
	return doc
}

func popUnseen(candidates []docstore.ScoredDocument, seen map[string]bool) (docstore.ScoredDocument, bool) {
	for i, c := range candidates {
		if !seen[c.ID] {
			return c, true
		}
		_ = i
	}
	return docstore.ScoredDocument{}, false
}

func (e *Engine) explorationStack(ctx context.Context, positives []interest.PositiveCoi, negatives []interest.NegativeCoi, count int) ([]docstore.ScoredDocument, error) {
	if len(positives) == 0 {
		return nil, exploration.ErrNotEnoughCois
	}
	centroid := positives[0].Point
	pool, err := e.storage.KNN(ctx, centroid, e.cfg.Exploration.NumberOfCandidates, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	docEmbeddings := make([]embedding.Embedding, 0, len(pool))
	ids := make([]string, 0, len(pool))
	for _, c := range pool {
		emb, ok, err := e.storage.GetEmbedding(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		docEmbeddings = append(docEmbeddings, emb)
		ids = append(ids, c.ID)
	}

	coiPoints := make([]embedding.Embedding, 0, len(positives)+len(negatives))
	for _, c := range positives {
		coiPoints = append(coiPoints, c.Point)
	}
	for _, c := range negatives {
		coiPoints = append(coiPoints, c.Point)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	idxs, err := exploration.Select(e.cfg.Exploration, docEmbeddings, coiPoints, rng)
	if err != nil {
		return nil, err
	}

	out := make([]docstore.ScoredDocument, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, docstore.ScoredDocument{ID: ids[i], Score: 0})
	}
	return out, nil
}

// SemanticSearch resolves a query (free text or a reference document)
// to an embedding, runs KNN against the vector index, optionally folds
// in a personalized re-rank, and deduplicates near-identical results
// via C7's semantic dedup, per spec §6.
func (e *Engine) SemanticSearch(ctx context.Context, tenant, user, query, refDocID string, count int, filter docstore.Filter, personalize, hybrid bool) ([]docstore.ScoredDocument, error) {
	var queryEmb embedding.Embedding
	if refDocID != "" {
		emb, ok, err := e.storage.GetEmbedding(ctx, refDocID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, docstore.ErrDocumentNotFound
		}
		queryEmb = emb
	} else {
		emb, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		queryEmb = emb
	}

	excluded := []string{}
	if refDocID != "" {
		excluded = append(excluded, refDocID)
	}

	results, err := e.storage.KNN(ctx, queryEmb, count, filter, excluded)
	if err != nil {
		return nil, err
	}

	if hybrid {
		lexQuery := query
		if lexQuery == "" && refDocID != "" {
			if snippet, ok, err := e.storage.GetSnippet(ctx, refDocID); err == nil && ok {
				lexQuery = snippet
			}
		}
		if lexQuery != "" {
			bm25Results, err := e.storage.LexicalSearch(ctx, lexQuery, count, filter, excluded)
			if err != nil {
				return nil, err
			}
			results = mergeHybrid(results, bm25Results, count)
		}
	}

	results, err = e.dedupScored(ctx, results)
	if err != nil {
		return nil, err
	}

	if !personalize || user == "" {
		return results, nil
	}

	positives, err := e.cois.Positive(user)
	if err != nil || len(positives) == 0 {
		return results, nil
	}
	negatives, _ := e.cois.Negative(user)

	now := time.Now().UTC()
	reranked := make([]docstore.ScoredDocument, 0, len(results))
	for _, r := range results {
		emb, ok, err := e.storage.GetEmbedding(ctx, r.ID)
		if err != nil || !ok {
			continue
		}
		props, err := e.storage.GetProperties(ctx, r.ID)
		if err != nil && err != docstore.ErrDocumentNotFound {
			return nil, err
		}
		doc := documentFromProperties(r.ID, emb, props)
		score, rejected := docscore.Score(e.cfg.Docscore, e.cfg.Relevance, doc, positives, negatives, now)
		if rejected {
			continue
		}
		reranked = append(reranked, docstore.ScoredDocument{ID: r.ID, Score: float32(score)})
	}
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	if len(reranked) > count {
		reranked = reranked[:count]
	}
	return reranked, nil
}

// mergeHybrid fuses the vector (KNN) and lexical (BM25) rankings via C7's
// reciprocal-rank-fusion merge, per spec §6's enable_hybrid_search option
// and the hybrid-score-normalization Open Question decision (RRF needs
// no cross-metric scale assumptions between cosine similarity and BM25).
func mergeHybrid(knn, bm25 []docstore.ScoredDocument, count int) []docstore.ScoredDocument {
	merged := docscore.HybridMerge(docscore.ReciprocalRankFusion, toRankedScores(knn), toRankedScores(bm25))
	out := make([]docstore.ScoredDocument, 0, len(merged))
	for _, m := range merged {
		out = append(out, docstore.ScoredDocument{ID: m.ID, Score: float32(m.Score)})
	}
	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

func toRankedScores(docs []docstore.ScoredDocument) []docscore.RankedScore {
	out := make([]docscore.RankedScore, len(docs))
	for i, d := range docs {
		out[i] = docscore.RankedScore{ID: d.ID, Score: float64(d.Score)}
	}
	return out
}

func stringSliceProperty(props map[string]interface{}, key string) []string {
	raw, ok := props[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
