package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestRespondJSONWritesSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, time.Now(), "corr-1", map[string]string{"id": "doc-1"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.Success || env.Error != nil || env.Meta == nil || env.Meta.CorrelationID != "corr-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRespondErrorMapsSentinelsToStatus(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("bad id: %w", ErrInvalidInput), http.StatusBadRequest, CodeBadRequest},
		{fmt.Errorf("document: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("storage: %w", ErrStorageTransient), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{errors.New("something unexpected"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		RespondError(w, time.Now(), "corr-2", tc.err)

		if w.Code != tc.wantStatus {
			t.Errorf("%v: expected status %d, got %d", tc.err, tc.wantStatus, w.Code)
		}
		var env Envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Success || env.Error == nil || env.Error.Code != tc.wantCode {
			t.Errorf("%v: unexpected envelope %+v", tc.err, env)
		}
	}
}

func TestRespondValidationErrorIncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	RespondValidationError(w, time.Now(), "corr-3", []string{"field 'count' must be positive"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error == nil || env.Error.Details == nil {
		t.Fatalf("expected validation details, got %+v", env.Error)
	}
}
