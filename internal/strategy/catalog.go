// Package strategy holds the static catalog of named strategy profiles that
// parameterize decision fusion and risk sizing.
package strategy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var (
	// ErrUnknownStrategy is returned for names missing from the catalog.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrInstrumentNotTargeted is returned when a profile does not trade the instrument.
	ErrInstrumentNotTargeted = errors.New("instrument not targeted by strategy")
)

// RiskTier controls stop/target width and sizing aggressiveness.
type RiskTier string

const (
	Conservative RiskTier = "conservative"
	Moderate     RiskTier = "moderate"
	Aggressive   RiskTier = "aggressive"
)

// Indicator names usable in a profile's indicator subset.
const (
	IndicatorRSI       = "rsi"
	IndicatorMACD      = "macd"
	IndicatorBollinger = "bollinger"
)

// Profile is read-only configuration. Lookups return copies.
type Profile struct {
	Name              string   `yaml:"name" json:"name" validate:"required"`
	RiskTier          RiskTier `yaml:"risk_tier" json:"risk_tier" validate:"required,oneof=conservative moderate aggressive"`
	MinConfidence     float64  `yaml:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
	MaxRiskPerTrade   float64  `yaml:"max_risk_per_trade" json:"max_risk_per_trade" validate:"gt=0,lte=1"`
	TargetInstruments []string `yaml:"target_instruments" json:"target_instruments" validate:"required,min=1,dive,required"`
	Indicators        []string `yaml:"indicators" json:"indicators" validate:"dive,oneof=rsi macd bollinger"`
}

// Targets reports whether the profile trades instrument.
func (p Profile) Targets(instrument string) bool {
	instrument = strings.ToUpper(strings.TrimSpace(instrument))
	return lo.ContainsBy(p.TargetInstruments, func(s string) bool {
		return strings.EqualFold(s, instrument)
	})
}

// Uses reports whether an indicator is in the subset. An empty subset uses all.
func (p Profile) Uses(indicator string) bool {
	if len(p.Indicators) == 0 {
		return true
	}
	return lo.Contains(p.Indicators, strings.ToLower(indicator))
}

func (p Profile) clone() Profile {
	p.TargetInstruments = append([]string(nil), p.TargetInstruments...)
	p.Indicators = append([]string(nil), p.Indicators...)
	return p
}

type catalogFile struct {
	Version  int       `yaml:"version" validate:"gte=1"`
	Profiles []Profile `yaml:"profiles" validate:"required,min=1,dive"`
}

// Catalog is a versioned, immutable set of profiles.
type Catalog struct {
	version  int
	order    []string
	profiles map[string]Profile
}

var validate = validator.New()

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded strategy catalog: %v", err))
	}
	return c
}

// LoadFile parses a catalog override from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	c := &Catalog{version: file.Version, profiles: make(map[string]Profile, len(file.Profiles))}
	for _, p := range file.Profiles {
		key := catalogKey(p.Name)
		if _, dup := c.profiles[key]; dup {
			return nil, fmt.Errorf("validate catalog: duplicate profile %q", p.Name)
		}
		p.TargetInstruments = lo.Map(p.TargetInstruments, func(s string, _ int) string {
			return strings.ToUpper(strings.TrimSpace(s))
		})
		p.Indicators = lo.Uniq(lo.Map(p.Indicators, func(s string, _ int) string {
			return strings.ToLower(s)
		}))
		c.profiles[key] = p
		c.order = append(c.order, key)
	}
	return c, nil
}

// Version identifies the catalog revision.
func (c *Catalog) Version() int { return c.version }

// Lookup finds a profile by case-insensitive name.
func (c *Catalog) Lookup(name string) (Profile, error) {
	p, ok := c.profiles[catalogKey(name)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return p.clone(), nil
}

// Resolve looks up name and checks the profile targets instrument.
func (c *Catalog) Resolve(name, instrument string) (Profile, error) {
	p, err := c.Lookup(name)
	if err != nil {
		return Profile{}, err
	}
	if !p.Targets(instrument) {
		return Profile{}, fmt.Errorf("%w: %s does not trade %q (targets %s)",
			ErrInstrumentNotTargeted, p.Name, instrument, strings.Join(p.TargetInstruments, ","))
	}
	return p, nil
}

// Profiles lists every profile in catalog order.
func (c *Catalog) Profiles() []Profile {
	return lo.Map(c.order, func(key string, _ int) Profile {
		return c.profiles[key].clone()
	})
}

func catalogKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
