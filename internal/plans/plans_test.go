package plans

import (
	"errors"
	"testing"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

func TestCheckCreate(t *testing.T) {
	tests := []struct {
		name    string
		plan    model.Plan
		entity  string
		current int
		wantErr bool
	}{
		{"free below order limit", model.PlanFree, model.EntityServiceOrder, 49, false},
		{"free at order limit", model.PlanFree, model.EntityServiceOrder, 50, true},
		{"free at material limit", model.PlanFree, model.EntityMaterial, 10, true},
		{"free below ink limit", model.PlanFree, model.EntityInk, 9, false},
		{"pro never limited", model.PlanPro, model.EntityClient, 100000, false},
		{"settings are not counted", model.PlanFree, model.EntitySettings, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCreate(tt.plan, tt.entity, tt.current)
			if tt.wantErr != (err != nil) {
				t.Fatalf("CheckCreate err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrLimitReached) {
				t.Fatalf("expected ErrLimitReached, got %v", err)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	if err := Require(model.PlanFree, FeatureBasicPDF); err != nil {
		t.Fatalf("basic pdf should be free: %v", err)
	}
	if err := Require(model.PlanFree, FeatureReports); !errors.Is(err, ErrFeatureUnavailable) {
		t.Fatalf("reports export should be pro only, got %v", err)
	}
	if err := Require(model.PlanPro, FeatureReports); err != nil {
		t.Fatalf("pro has every feature: %v", err)
	}
}

func TestUsageFor(t *testing.T) {
	u := UsageFor(model.PlanFree, store.Counts{Orders: 3})
	if u.Limits.Orders != 50 || u.Counts.Orders != 3 {
		t.Fatalf("unexpected usage: %+v", u)
	}
	if u.Features[FeatureReports] || !u.Features[FeatureLocalBackup] {
		t.Fatalf("unexpected features: %+v", u.Features)
	}
}

func TestCheckAttachment(t *testing.T) {
	if err := CheckAttachment(model.PlanFree, 2); err != nil {
		t.Fatalf("third attachment should fit: %v", err)
	}
	if err := CheckAttachment(model.PlanFree, 3); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("fourth attachment should be refused, got %v", err)
	}
	if err := CheckAttachment(model.PlanPro, 300); err != nil {
		t.Fatalf("pro attachments are unlimited: %v", err)
	}
}
