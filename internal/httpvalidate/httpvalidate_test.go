package httpvalidate

import "testing"

type sampleRequest struct {
	Count int    `validate:"required,gte=1,lte=100"`
	Mode  string `validate:"oneof=none paragraph"`
}

func TestValidateStructPassesValidInput(t *testing.T) {
	req := sampleRequest{Count: 5, Mode: "none"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructReportsFieldErrors(t *testing.T) {
	req := sampleRequest{Count: 0, Mode: "bogus"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %+v", len(err.Errors), err.Errors)
	}
}
