// Package config holds the process settings for the organisation gatekeeper.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/os2mo/orggatekeeper/model"
)

// Settings is the full configuration surface, sourced from the environment
// with an optional YAML policy file for the UUID sets.
type Settings struct {
	// Registry connection
	MOURL          string        `env:"MO_URL" envDefault:"http://mo-service:5000"`
	MOToken        string        `env:"MO_TOKEN"`
	GraphQLTimeout time.Duration `env:"GRAPHQL_TIMEOUT" envDefault:"120s"`

	// Classification policy
	EnableHideLogic             bool        `env:"ENABLE_HIDE_LOGIC" envDefault:"true"`
	Hidden                      []uuid.UUID `env:"HIDDEN"`
	LineManagementTopLevelUUIDs []uuid.UUID `env:"LINE_MANAGEMENT_TOP_LEVEL_UUIDS"`
	HiddenEngagementTypes       []string    `env:"HIDDEN_ENGAGEMENT_TYPES"`
	SelfOwnedITSystemCheck      string      `env:"SELF_OWNED_IT_SYSTEM_CHECK"`

	// Hierarchy classes: a preconfigured UUID short-circuits the registry
	// lookup, otherwise the user key is resolved within the
	// org_unit_hierarchy facet.
	HiddenUUID            *uuid.UUID `env:"HIDDEN_UUID"`
	HiddenUserKey         string     `env:"HIDDEN_USER_KEY" envDefault:"hide"`
	LineManagementUUID    *uuid.UUID `env:"LINE_MANAGEMENT_UUID"`
	LineManagementUserKey string     `env:"LINE_MANAGEMENT_USER_KEY" envDefault:"linjeorg"`
	SelfOwnedUUID         *uuid.UUID `env:"SELF_OWNED_UUID"`
	SelfOwnedUserKey      string     `env:"SELF_OWNED_USER_KEY" envDefault:"selvejet"`
	NAUUID                *uuid.UUID `env:"NA_UUID"`
	NAUserKey             string     `env:"NA_USER_KEY" envDefault:"NA"`

	DryRun          bool `env:"DRY_RUN" envDefault:"false"`
	ParallelUpdates int  `env:"PARALLEL_UPDATES" envDefault:"5"`

	// PolicyFile optionally points at a YAML file whose UUID sets are merged
	// into the settings above.
	PolicyFile string `env:"POLICY_FILE"`

	// Event transport
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"os2mo.events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"orggatekeeper-worker"`

	// Process
	Port          string `env:"MS_PORT" envDefault:"3000"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	ExposeMetrics bool   `env:"EXPOSE_METRICS" envDefault:"true"`
	CommitTag     string `env:"COMMIT_TAG" envDefault:"HEAD"`
	CommitSHA     string `env:"COMMIT_SHA" envDefault:"HEAD"`

	hiddenSet   map[uuid.UUID]struct{}
	topLevelSet map[uuid.UUID]struct{}
}

// policyFile is the YAML shape of the optional policy file.
type policyFile struct {
	Hidden                 []string `yaml:"hidden"`
	LineManagementTopLevel []string `yaml:"line_management_top_level"`
	HiddenEngagementTypes  []string `yaml:"hidden_engagement_types"`
}

// Load reads .env files when present, parses the environment and merges the
// optional policy file.
func Load() (*Settings, error) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				return nil, fmt.Errorf("loading %s: %w", file, err)
			}
		}
	}

	settings := &Settings{}
	if err := env.Parse(settings); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if settings.PolicyFile != "" {
		if err := settings.mergePolicyFile(settings.PolicyFile); err != nil {
			return nil, err
		}
	}

	if settings.ParallelUpdates < 1 {
		return nil, fmt.Errorf("PARALLEL_UPDATES must be at least 1, got %d", settings.ParallelUpdates)
	}
	if settings.MOURL == "" {
		return nil, fmt.Errorf("MO_URL must be set")
	}

	settings.buildSets()
	return settings, nil
}

func (s *Settings) mergePolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}

	var policy policyFile
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	for _, raw := range policy.Hidden {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("policy file hidden entry %q: %w", raw, err)
		}
		s.Hidden = append(s.Hidden, id)
	}
	for _, raw := range policy.LineManagementTopLevel {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("policy file line_management_top_level entry %q: %w", raw, err)
		}
		s.LineManagementTopLevelUUIDs = append(s.LineManagementTopLevelUUIDs, id)
	}
	s.HiddenEngagementTypes = append(s.HiddenEngagementTypes, policy.HiddenEngagementTypes...)
	return nil
}

// buildSets precomputes the UUID membership sets used on every
// classification. Called once at load time; the sets are read-only after.
func (s *Settings) buildSets() {
	s.hiddenSet = make(map[uuid.UUID]struct{}, len(s.Hidden))
	for _, id := range s.Hidden {
		s.hiddenSet[id] = struct{}{}
	}
	s.topLevelSet = make(map[uuid.UUID]struct{}, len(s.LineManagementTopLevelUUIDs))
	for _, id := range s.LineManagementTopLevelUUIDs {
		s.topLevelSet[id] = struct{}{}
	}
}

// HiddenSet returns the set of unit UUIDs hidden together with their subtrees.
func (s *Settings) HiddenSet() map[uuid.UUID]struct{} {
	if s.hiddenSet == nil {
		s.buildSets()
	}
	return s.hiddenSet
}

// LineManagementTopLevelSet returns the set of unit UUIDs that anchor line
// management. Units qualify structurally only below one of these.
func (s *Settings) LineManagementTopLevelSet() map[uuid.UUID]struct{} {
	if s.topLevelSet == nil {
		s.buildSets()
	}
	return s.topLevelSet
}

// ClassUUID returns the preconfigured class UUID for a category, or nil when
// the class must be resolved by user key instead.
func (s *Settings) ClassUUID(category model.Category) *uuid.UUID {
	switch category {
	case model.CategoryHidden:
		return s.HiddenUUID
	case model.CategoryLineManagement:
		return s.LineManagementUUID
	case model.CategorySelfOwned:
		return s.SelfOwnedUUID
	case model.CategoryNA:
		return s.NAUUID
	}
	return nil
}

// ClassUserKey returns the registry user key used to resolve a category's
// class when no UUID is preconfigured.
func (s *Settings) ClassUserKey(category model.Category) string {
	switch category {
	case model.CategoryHidden:
		return s.HiddenUserKey
	case model.CategoryLineManagement:
		return s.LineManagementUserKey
	case model.CategorySelfOwned:
		return s.SelfOwnedUserKey
	case model.CategoryNA:
		return s.NAUserKey
	}
	return ""
}
