// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package keyphrase implements the diversity-constrained key-phrase
// selector (C5): candidate key phrases for a CoI are unified with the
// CoI's existing selection, scored by a normalized similarity matrix,
// and greedily chosen to trade off relevance to the CoI against
// redundancy with phrases already picked, per spec §4.5.
package keyphrase

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// EmbedFunc embeds a cleaned key-phrase string into the shared embedding
// space. Returning an error for a given candidate drops that candidate
// rather than failing the whole selection.
type EmbedFunc func(words string) (embedding.Embedding, error)

var (
	symbolRun    = regexp.MustCompile(`[\p{S}\p{P}]+\p{Z}*`)
	separatorRun = regexp.MustCompile(`\p{Z}+`)
)

// Clean strips symbols and punctuation (collapsing any trailing
// whitespace with them) and collapses runs of separator characters to a
// single space, mirroring the candidate-normalization step that runs
// before a key phrase is embedded.
func Clean(keyPhrase string) string {
	noSymbols := symbolRun.ReplaceAllString(keyPhrase, " ")
	collapsed := separatorRun.ReplaceAllString(noSymbols, " ")
	return strings.TrimSpace(collapsed)
}

// Unify merges existing key phrases with newly observed candidate
// strings. A candidate whose raw text already matches an existing key
// phrase's words is dropped before cleaning; survivors are cleaned,
// de-duplicated, embedded via embed, and appended. Candidates that fail
// to embed are silently dropped rather than failing the whole update.
func Unify(existing []interest.KeyPhrase, candidates []string, embed EmbedFunc) []interest.KeyPhrase {
	if len(candidates) == 0 {
		return existing
	}

	seenRaw := make(map[string]bool, len(existing))
	for _, kp := range existing {
		seenRaw[kp.Words()] = true
	}

	cleaned := make(map[string]struct{})
	for _, candidate := range candidates {
		if seenRaw[candidate] {
			continue
		}
		c := Clean(candidate)
		if c == "" {
			continue
		}
		cleaned[c] = struct{}{}
	}

	out := append([]interest.KeyPhrase(nil), existing...)
	for words := range cleaned {
		point, err := embed(words)
		if err != nil {
			continue
		}
		kp, err := interest.NewKeyPhrase(words, point)
		if err != nil {
			continue
		}
		out = append(out, kp)
	}
	return out
}

// Similarities computes the n x (n+1) normalized similarity matrix of the
// given key-phrase points against each other and against coiPoint (the
// final column). Column j's values are z-score normalized (after a
// min-max pass) over the other n-1 (or n, for the coi column) rows,
// shifted by 0.5; any non-finite result (e.g. a column with zero
// variance) falls back to 0.5, matching a neutral "no signal" value.
func Similarities(points []embedding.Embedding, coiPoint embedding.Embedding) ([][]float32, error) {
	n := len(points)
	all := make([]embedding.Embedding, 0, n+1)
	all = append(all, points...)
	all = append(all, coiPoint)

	full, err := embedding.PairwiseSimilarity(all)
	if err != nil {
		return nil, err
	}

	ncols := n + 1
	sim := make([][]float32, n)
	for i := 0; i < n; i++ {
		sim[i] = append([]float32(nil), full[i][:ncols]...)
	}

	min, max := columnMinMax(sim, n, ncols)
	normalized := make([][]float32, n)
	for i := range normalized {
		normalized[i] = make([]float32, ncols)
		for j := 0; j < ncols; j++ {
			span := max[j] - min[j]
			normalized[i][j] = (sim[i][j] - min[j]) / span
		}
	}

	mean := columnMeanExcludeDiag(normalized, n, ncols)
	std := columnStdExcludeDiag(normalized, mean, n, ncols)

	for i := 0; i < n; i++ {
		for j := 0; j < ncols; j++ {
			v := (normalized[i][j]-mean[j])/std[j] + 0.5
			if !isFinite(v) {
				v = 0.5
			}
			normalized[i][j] = v
		}
	}
	return normalized, nil
}

func isFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// columnMinMax returns, per column j, the min/max of entries m[i][j] for
// i != j (the diagonal of the square key-phrase block is never its own
// reference point).
func columnMinMax(m [][]float32, nrows, ncols int) (min, max []float32) {
	min = make([]float32, ncols)
	max = make([]float32, ncols)
	for j := 0; j < ncols; j++ {
		first := true
		var mn, mx float32
		for i := 0; i < nrows; i++ {
			if i == j {
				continue
			}
			v := m[i][j]
			if first {
				mn, mx = v, v
				first = false
				continue
			}
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
		}
		if first {
			mn, mx = float32(math.NaN()), float32(math.NaN())
		}
		min[j] = mn
		max[j] = mx
	}
	return min, max
}

func columnMeanExcludeDiag(m [][]float32, nrows, ncols int) []float32 {
	out := make([]float32, ncols)
	for j := 0; j < ncols; j++ {
		var sum float32
		count := 0
		for i := 0; i < nrows; i++ {
			if i == j {
				continue
			}
			sum += m[i][j]
			count++
		}
		if count == 0 {
			out[j] = float32(math.NaN())
			continue
		}
		out[j] = sum / float32(count)
	}
	return out
}

func columnStdExcludeDiag(m [][]float32, mean []float32, nrows, ncols int) []float32 {
	out := make([]float32, ncols)
	for j := 0; j < ncols; j++ {
		var sum float32
		count := 0
		for i := 0; i < nrows; i++ {
			if i == j {
				continue
			}
			d := m[i][j] - mean[j]
			sum += d * d
			count++
		}
		if count == 0 {
			out[j] = float32(math.NaN())
			continue
		}
		out[j] = float32(math.Sqrt(float64(sum / float32(count))))
	}
	return out
}

// IsSelected decides which of n key phrases (rows of similarity) to keep.
// If n <= maxKeyPhrases every phrase is kept. Otherwise the phrase closest
// to the CoI (the last column) seeds the selection, and each subsequent
// pick maximizes gamma*similarity-to-coi minus (1-gamma)*similarity to the
// most similar already-selected phrase, i.e. an MMR-style diversity
// trade-off.
func IsSelected(similarity [][]float32, maxKeyPhrases int, gamma float32) []bool {
	n := len(similarity)
	if n <= maxKeyPhrases {
		selected := make([]bool, n)
		for i := range selected {
			selected[i] = true
		}
		return selected
	}

	selected := make([]bool, n)
	if maxKeyPhrases == 0 {
		return selected
	}

	coiCol := n // last column index within each row

	first := argmaxBy(n, func(i int) float32 { return similarity[i][coiCol] })
	selected[first] = true

	for k := 0; k < maxKeyPhrases-1; k++ {
		next := argmaxBy(n, func(i int) float32 {
			if selected[i] {
				return -math.MaxFloat32
			}
			var maxSimToSelected float32 = -math.MaxFloat32
			for j := 0; j < n; j++ {
				if selected[j] && similarity[i][j] > maxSimToSelected {
					maxSimToSelected = similarity[i][j]
				}
			}
			return gamma*similarity[i][coiCol] - (1-gamma)*maxSimToSelected
		})
		selected[next] = true
	}
	return selected
}

// argmaxBy returns the index in [0, n) maximizing score, with ties
// broken by the earliest index (matching a strict-greater-than fold).
func argmaxBy(n int, score func(int) float32) int {
	best := 0
	var bestVal float32 = -math.MaxFloat32
	for i := 0; i < n; i++ {
		v := score(i)
		if i == 0 || v > bestVal {
			bestVal = v
			best = i
		}
	}
	return best
}

// Select filters keyPhrases down to those marked selected, then sorts the
// result by descending similarity to the CoI (the last similarity column).
func Select(keyPhrases []interest.KeyPhrase, selected []bool, similarity [][]float32) []interest.KeyPhrase {
	type scored struct {
		sim float32
		kp  interest.KeyPhrase
	}
	coiCol := len(keyPhrases)
	picked := make([]scored, 0, len(keyPhrases))
	for i, kp := range keyPhrases {
		if selected[i] {
			picked = append(picked, scored{sim: similarity[i][coiCol], kp: kp})
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].sim > picked[j].sim })

	out := make([]interest.KeyPhrase, len(picked))
	for i, p := range picked {
		out[i] = p.kp
	}
	return out
}

// ChooseForCoi runs the full selection pipeline for one CoI: unify the
// existing key phrases with new candidates, score them against coiPoint,
// and keep at most maxKeyPhrases of them. An empty result means the CoI
// should have no map entry (the "every selected value is non-empty"
// invariant from spec §4.5).
func ChooseForCoi(existing []interest.KeyPhrase, coiPoint embedding.Embedding, candidates []string, embed EmbedFunc, maxKeyPhrases int, gamma float32) ([]interest.KeyPhrase, error) {
	unified := Unify(existing, candidates, embed)
	if len(unified) == 0 {
		return nil, nil
	}

	points := make([]embedding.Embedding, len(unified))
	for i, kp := range unified {
		points[i] = kp.Point()
	}

	similarity, err := Similarities(points, coiPoint)
	if err != nil {
		return nil, err
	}

	selected := IsSelected(similarity, maxKeyPhrases, gamma)
	return Select(unified, selected, similarity), nil
}

// Key is the table's partition key, per spec §3: key phrases are scoped
// to a (CoI id, Market) pair, not to a CoI alone, so the same CoI can
// carry an independent selection per language/country.
type Key struct {
	CoiID  interest.CoiID
	Market interest.Market
}

// Table holds each (CoI, market)'s currently selected key phrases,
// sorted descending by relevance (invariant enforced by ChooseForCoi's
// Select step). The zero value is not ready for use; construct with
// NewTable.
type Table struct {
	selected map[Key][]interest.KeyPhrase
}

// NewTable returns an empty key-phrase table.
func NewTable() *Table {
	return &Table{selected: make(map[Key][]interest.KeyPhrase)}
}

// Selected returns a copy of the key phrases currently selected for
// (coiID, market).
func (t *Table) Selected(coiID interest.CoiID, market interest.Market) []interest.KeyPhrase {
	kps := t.selected[Key{coiID, market}]
	out := make([]interest.KeyPhrase, len(kps))
	copy(out, kps)
	return out
}

// Update runs ChooseForCoi for (coiID, market) using its current
// selection as the existing set, storing (or clearing) the result.
func (t *Table) Update(coiID interest.CoiID, market interest.Market, coiPoint embedding.Embedding, candidates []string, embed EmbedFunc, maxKeyPhrases int, gamma float32) error {
	key := Key{coiID, market}
	existing := t.selected[key]
	delete(t.selected, key)

	chosen, err := ChooseForCoi(existing, coiPoint, candidates, embed, maxKeyPhrases, gamma)
	if err != nil {
		return err
	}
	if len(chosen) > 0 {
		t.selected[key] = chosen
	}
	return nil
}

// SetSelected installs kps as the selection for (coiID, market) directly,
// without running the unify/select pipeline. Used by the key-phrase
// taker (C6) when reconstructing selections after a selected/removed
// swap.
func (t *Table) SetSelected(coiID interest.CoiID, market interest.Market, kps []interest.KeyPhrase) {
	key := Key{coiID, market}
	if len(kps) == 0 {
		delete(t.selected, key)
		return
	}
	t.selected[key] = kps
}

// RemoveSelected deletes (coiID, market)'s selection (used by the taker
// once all of a CoI's key phrases in that market have been taken, and by
// market removal per spec §3's "deleted when their market is removed").
func (t *Table) RemoveSelected(coiID interest.CoiID, market interest.Market) {
	delete(t.selected, Key{coiID, market})
}

// CoiIDs returns the CoI ids with a non-empty selection in market.
func (t *Table) CoiIDs(market interest.Market) []interest.CoiID {
	ids := make([]interest.CoiID, 0, len(t.selected))
	for key := range t.selected {
		if key.Market == market {
			ids = append(ids, key.CoiID)
		}
	}
	return ids
}

// IsEmpty reports whether no (CoI, market) pair currently has a selection.
func (t *Table) IsEmpty() bool {
	return len(t.selected) == 0
}

// IsEmptyForMarket reports whether no CoI has a selection in market,
// the scope C6's refresh step checks before swapping removed back in.
func (t *Table) IsEmptyForMarket(market interest.Market) bool {
	for key := range t.selected {
		if key.Market == market {
			return false
		}
	}
	return true
}
