// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package httpvalidate provides request validation, matching the
// teacher's internal/validation package: a thread-safe singleton
// go-playground/validator/v10 instance plus human-readable field error
// translation, and — since the engine's recommendations/semantic
// search surface accepts a recursive filter grammar the struct
// validator can't express — a hand-rolled filter-grammar walker
// enforcing spec §6's array-length and nesting caps.
package httpvalidate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError is one field's validation failure, translated to a
// human-readable message.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError aggregates every field failure from one
// ValidateStruct call.
type RequestValidationError struct {
	Errors []FieldError
}

func (e *RequestValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return e.Errors[0].Message
}

// ValidateStruct validates s with the singleton validator, returning
// nil on success or a *RequestValidationError with one entry per
// failed field.
func ValidateStruct(s interface{}) *RequestValidationError {
	if err := GetValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &RequestValidationError{Errors: []FieldError{{Field: "unknown", Message: err.Error()}}}
		}
		out := make([]FieldError, len(verrs))
		for i, fe := range verrs {
			out[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param(), Message: translate(fe)}
		}
		return &RequestValidationError{Errors: out}
	}
	return nil
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
	"oneof":    "%s must be one of: %s",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		if fe.Param() != "" {
			return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
		}
		return fmt.Sprintf(tmpl, fe.Field())
	}
	return fmt.Sprintf("%s failed validation %q", fe.Field(), fe.Tag())
}
