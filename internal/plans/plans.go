// Package plans enforces the record limits and feature gates of the free and pro plans.
package plans

import (
	"errors"
	"fmt"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

var (
	// ErrLimitReached is returned when creating a record would exceed the plan's quota.
	ErrLimitReached = errors.New("plan limit reached")
	// ErrFeatureUnavailable is returned when the plan does not include a feature.
	ErrFeatureUnavailable = errors.New("feature not available on current plan")
)

// Unlimited marks a quota without a ceiling.
const Unlimited = -1

// Feature names a gated capability.
type Feature string

const (
	FeatureBasicReports Feature = "basicReports"
	FeatureBasicPDF     Feature = "basicPdf"
	FeatureLocalBackup  Feature = "localBackup"
	FeatureReports      Feature = "reports"
)

var freeFeatures = map[Feature]bool{
	FeatureBasicReports: true,
	FeatureBasicPDF:     true,
	FeatureLocalBackup:  true,
}

// Limits are the per-entity quotas of a plan.
type Limits struct {
	Orders    int `json:"orders"`
	Clients   int `json:"clients"`
	Materials int `json:"materials"`
	Inks      int `json:"inks"`
	Users     int `json:"users"`
	// AttachmentsPerOrder caps the files stored on a single order.
	AttachmentsPerOrder int `json:"attachments_per_order"`
}

// LimitsFor returns the quotas of plan. Unknown plans get the free quotas.
func LimitsFor(plan model.Plan) Limits {
	if plan == model.PlanPro {
		return Limits{Orders: Unlimited, Clients: Unlimited, Materials: Unlimited, Inks: Unlimited, Users: 5, AttachmentsPerOrder: Unlimited}
	}
	return Limits{Orders: 50, Clients: 50, Materials: 10, Inks: 10, Users: 1, AttachmentsPerOrder: 3}
}

// Available reports whether plan includes feature.
func Available(plan model.Plan, feature Feature) bool {
	return plan == model.PlanPro || freeFeatures[feature]
}

// Require returns ErrFeatureUnavailable when plan lacks feature.
func Require(plan model.Plan, feature Feature) error {
	if !Available(plan, feature) {
		return fmt.Errorf("%w: %s", ErrFeatureUnavailable, feature)
	}
	return nil
}

// CheckCreate returns ErrLimitReached when one more record of entity would
// exceed the plan. current is the number of records that already exist.
func CheckCreate(plan model.Plan, entity string, current int) error {
	limits := LimitsFor(plan)

	var limit int
	switch entity {
	case model.EntityServiceOrder:
		limit = limits.Orders
	case model.EntityClient:
		limit = limits.Clients
	case model.EntityMaterial:
		limit = limits.Materials
	case model.EntityInk:
		limit = limits.Inks
	default:
		return nil
	}

	if limit != Unlimited && current >= limit {
		return fmt.Errorf("%w: %d %s records on the %s plan", ErrLimitReached, limit, entity, plan)
	}
	return nil
}

// CheckAttachment returns ErrLimitReached when an order already holds the
// plan's maximum number of attachments.
func CheckAttachment(plan model.Plan, current int) error {
	limit := LimitsFor(plan).AttachmentsPerOrder
	if limit != Unlimited && current >= limit {
		return fmt.Errorf("%w: %d attachments per order on the %s plan", ErrLimitReached, limit, plan)
	}
	return nil
}

// Usage pairs a plan's limits with the current record counts.
type Usage struct {
	Plan     model.Plan       `json:"plan"`
	Limits   Limits           `json:"limits"`
	Counts   store.Counts     `json:"counts"`
	Features map[Feature]bool `json:"features"`
}

// UsageFor summarizes plan against counts.
func UsageFor(plan model.Plan, counts store.Counts) Usage {
	features := make(map[Feature]bool)
	for _, f := range []Feature{FeatureBasicReports, FeatureBasicPDF, FeatureLocalBackup, FeatureReports} {
		features[f] = Available(plan, f)
	}
	return Usage{Plan: plan, Limits: LimitsFor(plan), Counts: counts, Features: features}
}
