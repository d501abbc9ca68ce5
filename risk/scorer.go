package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

type Config struct {
	BaseScores         map[string]float64
	DefaultBaseScore   float64
	Blacklist          []string
	Whitelist          []string
	WhitelistCeiling   float64
	RepeatPenalty      float64
	DecayWindow        time.Duration
	AutoBlockThreshold float64
	EscalateThreshold  float64
}

// Scorer computes 0-100 risk scores. Scoring depends only on the event and
// the list/decay state derived from prior events' timestamps, so a replay of
// the persisted event stream reproduces every score.
type Scorer struct {
	cfg       Config
	mu        sync.Mutex
	blacklist map[string]bool
	whitelist map[string]bool
	blocked   map[string]bool // sources auto-blocked at runtime
	recent    map[string][]time.Time
}

func NewScorer(cfg Config) *Scorer {
	if cfg.DecayWindow <= 0 {
		cfg.DecayWindow = 10 * time.Minute
	}
	s := &Scorer{
		cfg:       cfg,
		blacklist: make(map[string]bool, len(cfg.Blacklist)),
		whitelist: make(map[string]bool, len(cfg.Whitelist)),
		blocked:   make(map[string]bool),
		recent:    make(map[string][]time.Time),
	}
	for _, src := range cfg.Blacklist {
		s.blacklist[src] = true
	}
	for _, src := range cfg.Whitelist {
		s.whitelist[src] = true
	}
	return s
}

// Score computes base(category) + repeat penalty, caps whitelisted sources,
// and forces blacklisted sources to 100 unconditionally.
func (s *Scorer) Score(event model.SecurityEvent) model.RiskScore {
	s.mu.Lock()
	defer s.mu.Unlock()

	var factors []model.RiskFactor

	base, ok := s.cfg.BaseScores[event.Category]
	if !ok {
		base = s.cfg.DefaultBaseScore
	}
	score := base
	factors = append(factors, model.RiskFactor{Factor: "base:" + event.Category, Delta: base})

	if penalty := s.repeatPenalty(event.Source, event.Timestamp); penalty > 0 {
		score += penalty
		factors = append(factors, model.RiskFactor{Factor: "repeat_penalty", Delta: penalty})
	}
	s.record(event.Source, event.Timestamp)

	if s.whitelist[event.Source] && score > s.cfg.WhitelistCeiling {
		factors = append(factors, model.RiskFactor{Factor: "whitelist_cap", Delta: s.cfg.WhitelistCeiling - score})
		score = s.cfg.WhitelistCeiling
	}

	if s.blacklist[event.Source] || s.blocked[event.Source] {
		factors = append(factors, model.RiskFactor{Factor: "blacklisted_source", Delta: 100 - score})
		score = 100
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return model.RiskScore{
		EventID:  event.ID,
		Score:    score,
		Band:     BandFor(score),
		Factors:  factors,
		ScoredAt: event.Timestamp,
	}
}

// repeatPenalty sums a linearly decaying increment for each prior event from
// the same source inside the decay window, judged by event timestamps.
func (s *Scorer) repeatPenalty(source string, at time.Time) float64 {
	window := s.cfg.DecayWindow
	kept := s.recent[source][:0]
	penalty := 0.0
	for _, ts := range s.recent[source] {
		age := at.Sub(ts)
		if age < 0 || age >= window {
			continue
		}
		kept = append(kept, ts)
		penalty += s.cfg.RepeatPenalty * (1 - float64(age)/float64(window))
	}
	s.recent[source] = kept
	return penalty
}

func (s *Scorer) record(source string, at time.Time) {
	s.recent[source] = append(s.recent[source], at)
}

// BlockSource adds a source to the runtime blocklist; it then scores 100
// like a configured blacklist entry.
func (s *Scorer) BlockSource(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.blocked[source] {
		logger.Warn("Source auto-blocked", zap.String("source", source))
	}
	s.blocked[source] = true
}

func (s *Scorer) IsBlocked(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[source] || s.blocked[source]
}

func (s *Scorer) AutoBlockThreshold() float64 { return s.cfg.AutoBlockThreshold }
func (s *Scorer) EscalateThreshold() float64  { return s.cfg.EscalateThreshold }

// BandFor maps a score to its band: Low 0-30, Medium 31-60, High 61-80,
// Critical 81-100.
func BandFor(score float64) model.RiskBand {
	switch {
	case score <= 30:
		return model.BandLow
	case score <= 60:
		return model.BandMedium
	case score <= 80:
		return model.BandHigh
	default:
		return model.BandCritical
	}
}
