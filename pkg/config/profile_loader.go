package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/osovm/veilmint/pkg/gate"
	"github.com/osovm/veilmint/pkg/tithe"
)

// PolicyProfile is a named, externally supplied policy configuration:
// gate thresholds, tithe distribution, and conversion rates. Profiles
// let a deployment tighten or relax the anti-gaming numbers without a
// rebuild; missing fields fall back to the canonical defaults.
type PolicyProfile struct {
	Name       string            `yaml:"name" json:"name"`
	Code       string            `yaml:"code" json:"code"`
	Gate       GateConfig        `yaml:"gate" json:"gate"`
	Tithe      TitheConfig       `yaml:"tithe" json:"tithe"`
	Conversion ConversionConfig  `yaml:"conversion" json:"conversion"`
	Labels     map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// GateConfig overrides anti-gaming thresholds. Zero values mean
// "use the default"; SabbathDay is a weekday name ("Saturday").
type GateConfig struct {
	DailyCap         int     `yaml:"daily_cap" json:"daily_cap"`
	BurnCost         float64 `yaml:"ase_burn_cost" json:"ase_burn_cost"`
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`
	QuorumRequired   int     `yaml:"quorum_required" json:"quorum_required"`
	QuorumSize       int     `yaml:"quorum_size" json:"quorum_size"`
	SabbathDay       string  `yaml:"sabbath_day" json:"sabbath_day"`
	ReversalFloor    float64 `yaml:"reversal_floor" json:"reversal_floor"`
}

// TitheConfig overrides the tithe rate and distribution.
type TitheConfig struct {
	Rate        float64 `yaml:"rate" json:"rate"`
	Shrine      float64 `yaml:"shrine" json:"shrine"`
	Inheritance float64 `yaml:"inheritance" json:"inheritance"`
	Hospital    float64 `yaml:"hospital" json:"hospital"`
	Market      float64 `yaml:"market" json:"market"`
}

// ConversionConfig overrides the work-to-Aṣẹ rate.
type ConversionConfig struct {
	HourlyRate float64 `yaml:"hourly_rate" json:"hourly_rate"`
}

// Policy materialises the gate policy, applying defaults for zero fields.
func (p *PolicyProfile) Policy() (gate.Policy, error) {
	pol := gate.DefaultPolicy()
	g := p.Gate
	if g.DailyCap > 0 {
		pol.DailyCap = g.DailyCap
	}
	if g.BurnCost > 0 {
		pol.BurnCost = g.BurnCost
	}
	if g.QualityThreshold > 0 {
		pol.QualityThreshold = g.QualityThreshold
	}
	if g.QuorumRequired > 0 {
		pol.QuorumRequired = g.QuorumRequired
	}
	if g.QuorumSize > 0 {
		pol.QuorumSize = g.QuorumSize
	}
	if g.SabbathDay != "" {
		day, err := parseWeekday(g.SabbathDay)
		if err != nil {
			return gate.Policy{}, err
		}
		pol.SabbathDay = day
	}
	if g.ReversalFloor > 0 {
		pol.ReversalFloor = g.ReversalFloor
	}
	if p.Tithe.Rate > 0 {
		pol.TitheRate = p.Tithe.Rate
	}
	if err := pol.Validate(); err != nil {
		return gate.Policy{}, fmt.Errorf("profile %q: %w", p.Code, err)
	}
	return pol, nil
}

// Fractions materialises the tithe distribution. An all-zero block
// yields the zero value, which the splitter fills with defaults.
func (p *PolicyProfile) Fractions() tithe.Fractions {
	return tithe.Fractions{
		Shrine:      p.Tithe.Shrine,
		Inheritance: p.Tithe.Inheritance,
		Hospital:    p.Tithe.Hospital,
		Market:      p.Tithe.Market,
	}
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("config: unknown weekday %q", name)
}

// LoadProfile loads a policy profile YAML by code.
// It searches the profiles directory for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*PolicyProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))
	return LoadProfileFile(path)
}

// LoadProfileFile loads a policy profile from an explicit path.
func LoadProfileFile(path string) (*PolicyProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	var profile PolicyProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}

	if profile.Code == "" {
		base := filepath.Base(path)
		profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
	}

	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*PolicyProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*PolicyProfile, len(matches))
	for _, path := range matches {
		profile, err := LoadProfileFile(path)
		if err != nil {
			return nil, err
		}
		profiles[profile.Code] = profile
	}

	return profiles, nil
}
