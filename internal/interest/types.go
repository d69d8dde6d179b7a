// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package interest holds the shared domain types of the interest-and-
// key-phrase engine: Centers of Interest, key phrases and markets. The
// component packages (coistore, coiupdate, relevance, keyphrase, ...) all
// depend on this package rather than on each other, keeping C1-C9 as
// independently testable units over a common vocabulary.
package interest

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// CoiID uniquely identifies a Center of Interest, assigned at creation.
type CoiID string

// NewCoiID mints a fresh, opaque CoI identifier.
func NewCoiID() CoiID {
	return CoiID(uuid.NewString())
}

// Market is a (language, country) partition key over key phrases.
type Market struct {
	Lang    string
	Country string
}

// String renders the market as "lang-COUNTRY", e.g. "en-US".
func (m Market) String() string {
	return m.Lang + "-" + m.Country
}

// DefaultMarket is used when an HTTP request omits its market fields, so
// a tenant that never specifies a market still gets one consistent
// partition instead of a zero-value ("-") market.
var DefaultMarket = Market{Lang: "en", Country: "US"}

// OrDefault returns m unless both fields are empty, in which case it
// returns DefaultMarket.
func (m Market) OrDefault() Market {
	if m.Lang == "" && m.Country == "" {
		return DefaultMarket
	}
	return m
}

// Stats holds the time-decayed relevance inputs for a positive CoI.
type Stats struct {
	// ViewCount is always >= 1.
	ViewCount uint32
	ViewTime  time.Duration
	LastView  time.Time
}

// PositiveCoi is a centroid built from documents the user engaged with.
type PositiveCoi struct {
	ID    CoiID
	Point embedding.Embedding
	Stats Stats
}

// NegativeCoi is a centroid built from documents the user rejected. It
// carries only LastView; view count and view time are not meaningful for
// repulsion-only centroids.
type NegativeCoi struct {
	ID       CoiID
	Point    embedding.Embedding
	LastView time.Time
}

// ErrEmptyKeyPhrase is returned when constructing a KeyPhrase with empty
// words or a zero-value point.
var ErrEmptyKeyPhrase = errors.New("interest: key phrase words must not be empty")

// KeyPhrase is an immutable (words, point) pair, value-equal by words alone.
type KeyPhrase struct {
	words string
	point embedding.Embedding
}

// NewKeyPhrase validates and constructs a KeyPhrase.
func NewKeyPhrase(words string, point embedding.Embedding) (KeyPhrase, error) {
	if strings.TrimSpace(words) == "" {
		return KeyPhrase{}, ErrEmptyKeyPhrase
	}
	if point.IsZero() {
		return KeyPhrase{}, ErrEmptyKeyPhrase
	}
	return KeyPhrase{words: words, point: point}, nil
}

// Words returns the key phrase's text.
func (k KeyPhrase) Words() string { return k.words }

// Point returns the key phrase's cached embedding.
func (k KeyPhrase) Point() embedding.Embedding { return k.point }

// Equal reports value-equality by words alone, per spec §3.
func (k KeyPhrase) Equal(other KeyPhrase) bool { return k.words == other.words }

// Document is a candidate document carrying an embedding and optional tags,
// used interchangeably for interaction input (InteractedDocument) and
// scoring output (PersonalizedDocument) per spec §3.
type Document struct {
	ID    string
	Point embedding.Embedding
	Tags  []string
	// PublishedAt supports the recency-aware semantic dedup in docscore (C7).
	PublishedAt time.Time
	// SourceWeight breaks ties within a deduplicated cluster (higher wins).
	SourceWeight float64
}
