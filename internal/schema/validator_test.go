package schema

import (
	"strings"
	"testing"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/models"
)

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       models.ExpandRequest
		wantField string
	}{
		{"valid", models.ExpandRequest{Brief: "recess worries", Audience: "parent", Tone: "supportive"}, ""},
		{"missing audience", models.ExpandRequest{Brief: "x", Tone: "supportive"}, "audience"},
		{"bad tone", models.ExpandRequest{Brief: "x", Audience: "student", Tone: "angry"}, "tone"},
		{"brief too long", models.ExpandRequest{Brief: strings.Repeat("a", 4001), Audience: "student", Tone: "formal_report"}, "brief"},
		{"pinned fields accepted", models.ExpandRequest{Brief: "recess", Audience: "student", Tone: "formal_report", TargetWords: 5000, ReadingLevel: "grade3", IncludeCaliforniaContext: new(bool)}, ""},
		{"tiny target words accepted", models.ExpandRequest{Brief: "recess", Audience: "parent", Tone: "supportive", TargetWords: 5}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantField+":") {
				t.Errorf("error %q does not name field %s", err, tt.wantField)
			}
		})
	}
}

func TestValidate_Details(t *testing.T) {
	err := New().Validate(models.ExpandRequest{Audience: "x", Tone: "y"})
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field errors, got %+v", appErr.Details)
	}
	if appErr.HTTPStatus() != 400 {
		t.Errorf("expected 400, got %d", appErr.HTTPStatus())
	}
}
