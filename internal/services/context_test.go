package services_test

import (
	"context"
	"testing"

	"scrapscii/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithStage(ctx, "converting")
	ctx = services.WithSample(ctx, 42)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "converting" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if pos, ok := services.SampleFromContext(ctx); !ok || pos != 42 {
		t.Fatalf("unexpected sample: %v %v", pos, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
	if _, ok := services.SampleFromContext(ctx); ok {
		t.Fatal("expected no sample value")
	}
}
