package cron

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	if err := registry.Register(jobA); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := registry.Register(jobB); err != nil {
		t.Fatalf("register b: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "a"}, nil, &stubJob{name: "a"}, &stubJob{name: "b"})
	if err == nil {
		t.Fatal("expected error for nil and duplicate jobs")
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Fatalf("expected 2 registration errors, got %v", errs)
	}
	if !strings.Contains(err.Error(), `job "a" already registered`) {
		t.Fatalf("duplicate not reported: %v", err)
	}
	if got := registry.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected names %v", got)
	}
	if err := registry.Register(&stubJob{name: "b"}); err == nil {
		t.Fatal("expected duplicate error")
	}
}
