package services

import (
	"context"
	"testing"
	"time"

	"github.com/examforge/variation-engine/internal/events"
	"github.com/examforge/variation-engine/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(newTestLogger())

	manager := NewDefaultServiceManager(nil, repo, newTestLogger(), validator.New(), nil, publisher)

	if manager.IsInitialized() {
		t.Error("manager reports initialized before Initialize")
	}

	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !manager.IsInitialized() {
		t.Error("manager not initialized after Initialize")
	}

	// Double initialization is a no-op
	if err := manager.Initialize(ctx); err != nil {
		t.Errorf("re-Initialize failed: %v", err)
	}

	if manager.Exam() == nil || manager.Question() == nil || manager.Generation() == nil ||
		manager.Scoring() == nil || manager.Statistics() == nil || manager.Export() == nil {
		t.Error("expected every service to be available")
	}

	if err := manager.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}

	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := manager.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck must fail after shutdown")
	}
	// Repeated shutdown is a no-op
	if err := manager.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
}

func TestServiceManager_PanicsBeforeInitialize(t *testing.T) {
	manager := NewDefaultServiceManager(nil, newMockRepository(), newTestLogger(), validator.New(), nil, nil)

	defer func() {
		if recover() == nil {
			t.Error("expected panic when accessing a service before Initialize")
		}
	}()
	manager.Generation()
}

func TestServiceManager_BudgetOverride(t *testing.T) {
	config := DefaultServiceManagerConfig()
	config.GenerationBudget = 5 * time.Second

	manager := NewServiceManager(nil, newMockRepository(), newTestLogger(), validator.New(), nil, nil, config)
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	generation, ok := manager.Generation().(*generationService)
	if !ok {
		t.Fatal("unexpected generation service implementation")
	}
	if generation.budget != 5*time.Second {
		t.Errorf("budget = %v, want 5s", generation.budget)
	}
}
