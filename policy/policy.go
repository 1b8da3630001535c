/*
Package policy provides typed work-policy configuration.

PURPOSE:
  An external WorkPolicy source supplies, per effective date range, the
  knobs the engine needs: standard weekly hours, daily/weekly caps,
  night-window boundaries, break durations, overtime multiplier, hourly
  rates, and the source-priority order. This package replaces the ad hoc
  module-level config cache of older systems with explicit objects and
  an injected lifecycle: load on start, refresh on TTL.

HOT RELOAD:
  Policy changes must apply per settlement period without redeploying
  the engine. CachingProvider wraps any Provider with a TTL and a
  forced-reload hook exposed through the admin API.

MISSING CONFIGURATION:
  A period whose policy lacks an hourly rate or standard weekly hours
  fails with ErrMissingPolicyConfig rather than defaulting silently.
*/
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// WORK POLICY - Closed set of typed configuration fields
// =============================================================================

// WorkPolicy is the complete ruleset in effect for a date range.
type WorkPolicy struct {
	ID            string
	EffectiveFrom attendance.WorkDate
	EffectiveTo   attendance.WorkDate

	StandardWeeklyHours attendance.Hours
	MaxDailyHours       attendance.Hours
	MaxWeeklyHours      attendance.Hours

	// Night window boundaries, local hours-of-day. Default 22:00-06:00.
	NightStartHour int
	NightEndHour   int

	BaseBreakHours      attendance.Hours
	DinnerBreakHours    attendance.Hours
	DinnerSpanHour      int
	AutoDinnerThreshold attendance.Hours

	RegularDailyHours  attendance.Hours
	OvertimeMultiplier decimal.Decimal

	// HourlyRates maps employees to their rate. An employee absent from
	// the map (and no DefaultHourlyRate) fails settlement for the period.
	HourlyRates       map[attendance.EmployeeID]decimal.Decimal
	DefaultHourlyRate *decimal.Decimal

	SourcePriority attendance.PriorityOrder
}

// Validate checks the fields settlement cannot run without.
func (p *WorkPolicy) Validate() error {
	if p.StandardWeeklyHours.IsZero() {
		return fmt.Errorf("%w: standard_weekly_hours for policy %s", attendance.ErrMissingPolicyConfig, p.ID)
	}
	if p.OvertimeMultiplier.IsZero() {
		return fmt.Errorf("%w: overtime_multiplier for policy %s", attendance.ErrMissingPolicyConfig, p.ID)
	}
	return nil
}

// HourlyRate resolves an employee's rate, falling back to the default.
func (p *WorkPolicy) HourlyRate(emp attendance.EmployeeID) (decimal.Decimal, error) {
	if rate, ok := p.HourlyRates[emp]; ok {
		return rate, nil
	}
	if p.DefaultHourlyRate != nil {
		return *p.DefaultHourlyRate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: hourly_rate for employee %s", attendance.ErrMissingPolicyConfig, emp)
}

// InEffect reports whether the policy covers a work date.
func (p *WorkPolicy) InEffect(date attendance.WorkDate) bool {
	return date.AfterOrEqual(p.EffectiveFrom) && date.BeforeOrEqual(p.EffectiveTo)
}

// Calculator builds a daily calculator configured from this policy.
func (p *WorkPolicy) Calculator() *attendance.Calculator {
	c := attendance.NewCalculator()
	if p.NightStartHour != 0 || p.NightEndHour != 0 {
		c.NightStartHour = p.NightStartHour
		c.NightEndHour = p.NightEndHour
	}
	if !p.BaseBreakHours.IsZero() {
		c.BaseBreakHours = p.BaseBreakHours
	}
	if !p.DinnerBreakHours.IsZero() {
		c.DinnerBreakHours = p.DinnerBreakHours
	}
	if p.DinnerSpanHour != 0 {
		c.DinnerSpanHour = p.DinnerSpanHour
	}
	if !p.AutoDinnerThreshold.IsZero() {
		c.AutoDinnerThreshold = p.AutoDinnerThreshold
	}
	if !p.RegularDailyHours.IsZero() {
		c.RegularDailyHours = p.RegularDailyHours
	}
	return c
}

// Default returns the statutory baseline policy, effective for all
// dates. Hourly rates are deliberately absent: settlement against the
// default policy fails with ErrMissingPolicyConfig, by contract.
func Default() *WorkPolicy {
	return &WorkPolicy{
		ID:                  "default",
		EffectiveFrom:       attendance.NewWorkDate(1970, time.January, 1),
		EffectiveTo:         attendance.NewWorkDate(9999, time.December, 31),
		StandardWeeklyHours: attendance.NewHoursFromInt(40),
		MaxDailyHours:       attendance.NewHoursFromInt(12),
		MaxWeeklyHours:      attendance.NewHoursFromInt(52),
		NightStartHour:      22,
		NightEndHour:        6,
		BaseBreakHours:      attendance.NewHoursFromInt(1),
		DinnerBreakHours:    attendance.NewHoursFromInt(1),
		DinnerSpanHour:      19,
		AutoDinnerThreshold: attendance.NewHoursFromInt(8),
		RegularDailyHours:   attendance.NewHoursFromInt(8),
		OvertimeMultiplier:  decimal.NewFromFloat(1.5),
		SourcePriority:      attendance.DefaultPriority(),
	}
}

// =============================================================================
// PROVIDERS
// =============================================================================

// Provider resolves the policy in effect for a work date.
type Provider interface {
	PolicyFor(ctx context.Context, date attendance.WorkDate) (*WorkPolicy, error)
}

// Rules adapts a Provider into the ingestion rule resolver: for each
// work date it yields the active policy's calculator knobs and
// source-priority order, so night windows, break durations, and merge
// priority follow the policy in effect rather than the statutory
// defaults.
func Rules(p Provider) attendance.RuleResolver {
	return func(ctx context.Context, date attendance.WorkDate) (*attendance.Calculator, attendance.PriorityOrder, error) {
		pol, err := p.PolicyFor(ctx, date)
		if err != nil {
			return nil, nil, err
		}
		return pol.Calculator(), pol.SourcePriority, nil
	}
}

// StaticProvider serves a fixed set of policies; the most recently
// effective matching policy wins.
type StaticProvider struct {
	Policies []*WorkPolicy
}

func NewStaticProvider(policies ...*WorkPolicy) *StaticProvider {
	return &StaticProvider{Policies: policies}
}

func (s *StaticProvider) PolicyFor(_ context.Context, date attendance.WorkDate) (*WorkPolicy, error) {
	var best *WorkPolicy
	for _, p := range s.Policies {
		if !p.InEffect(date) {
			continue
		}
		if best == nil || p.EffectiveFrom.After(best.EffectiveFrom) {
			best = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no policy in effect on %s", attendance.ErrMissingPolicyConfig, date)
	}
	return best, nil
}

// =============================================================================
// CACHING PROVIDER - TTL refresh, hot reload
// =============================================================================

// CachingProvider caches another provider's answers for a TTL. Reload
// drops the cache so the next lookup hits the inner provider, which is
// how policy changes go live without a redeploy.
type CachingProvider struct {
	Inner Provider
	TTL   time.Duration

	mu       sync.RWMutex
	cache    map[attendance.WorkDate]*WorkPolicy
	loadedAt time.Time
}

func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		Inner: inner,
		TTL:   ttl,
		cache: make(map[attendance.WorkDate]*WorkPolicy),
	}
}

func (c *CachingProvider) PolicyFor(ctx context.Context, date attendance.WorkDate) (*WorkPolicy, error) {
	c.mu.RLock()
	fresh := time.Since(c.loadedAt) < c.TTL
	cached, ok := c.cache[date]
	c.mu.RUnlock()
	if ok && fresh {
		return cached, nil
	}

	p, err := c.Inner.PolicyFor(ctx, date)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if time.Since(c.loadedAt) >= c.TTL {
		// TTL elapsed: start a fresh cache generation.
		c.cache = make(map[attendance.WorkDate]*WorkPolicy)
		c.loadedAt = time.Now()
	}
	c.cache[date] = p
	c.mu.Unlock()
	return p, nil
}

// Reload drops the cache immediately.
func (c *CachingProvider) Reload() {
	c.mu.Lock()
	c.cache = make(map[attendance.WorkDate]*WorkPolicy)
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}
