// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package api implements the HTTP surface of spec §6 using Chi router:
// document ingestion and property CRUD, interaction recording,
// personalized recommendations and semantic search. Each handler
// resolves a tenant from the bearer token, looks up (or lazily builds)
// that tenant's engine.Engine from a shared engine.Registry, and
// delegates to it; the handler's own job is request decoding,
// validation and response shaping per apperr's envelope.
package api
