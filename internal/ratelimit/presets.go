package ratelimit

import (
	"fmt"
	"time"
)

// Preset names.
const (
	PresetGeneral = "general"
	PresetStrict  = "strict"
	PresetAuth    = "auth"
)

// General is the permissive limiter applied broadly to API traffic.
func General() Config {
	return Config{
		Name:        PresetGeneral,
		Window:      15 * time.Minute,
		MaxRequests: 100,
		Message:     "Too many requests, please try again later.",
	}
}

// Strict guards expensive or abuse-prone endpoints.
func Strict() Config {
	return Config{
		Name:        PresetStrict,
		Window:      time.Hour,
		MaxRequests: 10,
		Message:     "Too many requests to this endpoint, please try again later.",
	}
}

// Auth slows brute-force attempts against credential endpoints.
func Auth() Config {
	return Config{
		Name:        PresetAuth,
		Window:      15 * time.Minute,
		MaxRequests: 5,
		Message:     "Too many authentication attempts, please try again later.",
	}
}

// PresetOverride replaces preset values when its fields are set.
type PresetOverride struct {
	Window      time.Duration
	MaxRequests int
	Message     string
}

// PresetOverrides holds per-preset overrides plus the key extractor shared by
// all three presets.
type PresetOverrides struct {
	General      PresetOverride
	Strict       PresetOverride
	Auth         PresetOverride
	KeyExtractor KeyExtractor
}

// Presets bundles the three named limiters. Each owns its own store.
type Presets struct {
	General *Limiter
	Strict  *Limiter
	Auth    *Limiter
}

// NewPresets builds the general, strict and auth limiters. opts are applied
// to each limiter. Presets never share a keyspace, so an option that hands
// them one store is rejected with a *ConfigError.
func NewPresets(overrides PresetOverrides, opts ...Option) (*Presets, error) {
	build := func(base Config, o PresetOverride) (*Limiter, error) {
		cfg := base.WithOverrides(o.Window, o.MaxRequests, o.Message)
		cfg.KeyExtractor = overrides.KeyExtractor
		l, err := New(cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s limiter: %w", base.Name, err)
		}
		return l, nil
	}

	p := &Presets{}
	var err error
	if p.General, err = build(General(), overrides.General); err != nil {
		return nil, err
	}
	if p.Strict, err = build(Strict(), overrides.Strict); err != nil {
		p.Close()
		return nil, err
	}
	if p.Auth, err = build(Auth(), overrides.Auth); err != nil {
		p.Close()
		return nil, err
	}
	if p.General.store == p.Strict.store || p.General.store == p.Auth.store || p.Strict.store == p.Auth.store {
		p.Close()
		return nil, &ConfigError{Field: "store", Reason: "must not be shared between presets"}
	}
	return p, nil
}

// All returns the limiters in general, strict, auth order, skipping nil ones.
func (p *Presets) All() []*Limiter {
	all := make([]*Limiter, 0, 3)
	for _, l := range []*Limiter{p.General, p.Strict, p.Auth} {
		if l != nil {
			all = append(all, l)
		}
	}
	return all
}

// Close stops every limiter's sweeper.
func (p *Presets) Close() {
	for _, l := range p.All() {
		l.Close()
	}
}
