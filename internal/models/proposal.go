package models

import (
	"time"

	"github.com/noah-isme/class-builder-api/internal/allocation"
)

// ProposalSettings records the parameters a proposal was generated with.
type ProposalSettings struct {
	YearLevels       []string           `json:"yearLevels"`
	TotalClasses     int                `json:"totalClasses"`
	CompositeClasses int                `json:"compositeClasses"`
	MinClassSize     int                `json:"minClassSize"`
	MaxClassSize     int                `json:"maxClassSize"`
	Weights          allocation.Weights `json:"weights"`
}

// GroupFallback is a fallback placement tagged with the group it happened in.
type GroupFallback struct {
	Group string `json:"group"`
	allocation.FallbackEvent
}

// Proposal is an unsaved generation that can still be adjusted by hand.
type Proposal struct {
	ID            string                `json:"id"`
	Seed          int64                 `json:"seed"`
	Settings      ProposalSettings      `json:"settings"`
	Generated     *allocation.Generated `json:"generated"`
	Requests      allocation.Ledger     `json:"requests"`
	Unplaced      []allocation.Student  `json:"unplaced"`
	Fallbacks     []GroupFallback       `json:"fallbacks"`
	UnseededPairs []allocation.Request  `json:"unseededPairs"`
	Warnings      []string              `json:"warnings"`
	CreatedBy     string                `json:"createdBy"`
	CreatedAt     time.Time             `json:"createdAt"`
	ExpiresAt     time.Time             `json:"expiresAt"`
}

// Expired reports whether the proposal outlived its TTL at now.
func (p *Proposal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Clone copies the proposal deeply enough that moves on the copy leave the
// original untouched.
func (p *Proposal) Clone() *Proposal {
	cp := *p
	if p.Generated != nil {
		cp.Generated = p.Generated.Clone()
	}
	return &cp
}
