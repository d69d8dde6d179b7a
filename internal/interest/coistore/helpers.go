// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package coistore

import (
	"time"

	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// mustPoint reconstructs an Embedding from stored components. A record
// read back from Badger was valid when written, so a failure here means
// on-disk corruption; panicking surfaces that loudly rather than silently
// returning a degraded CoI.
func mustPoint(v []float32) embedding.Embedding {
	e, err := embedding.New(v)
	if err != nil {
		panic("coistore: corrupt stored embedding: " + err.Error())
	}
	return e
}

func timeDuration(ns int64) time.Duration {
	return time.Duration(ns)
}

func unixNanoToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
