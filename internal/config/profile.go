package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a YAML analytics profile. Only keys present in the file override.
type Profile struct {
	Timezone                *string  `yaml:"timezone"`
	Bucket                  *string  `yaml:"bucket"`
	Weighting               *string  `yaml:"weighting"`
	CountCreateAsSubmission *bool    `yaml:"count_create_as_submission"`
	MinutesPerAction        *float64 `yaml:"minutes_per_action"`
	PassGrade               *float64 `yaml:"pass_grade"`
	Clustering              *string  `yaml:"clustering"`
	K                       *int     `yaml:"k"`
	Seed                    *int64   `yaml:"seed"`
	NInit                   *int     `yaml:"n_init"`
	MaxIter                 *int     `yaml:"max_iter"`
	ActiveWindowDays        *int     `yaml:"active_window_days"`
}

// LoadProfile reads a YAML profile from path
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse analytics profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply copies every set field onto a
func (p *Profile) Apply(a *Analytics) {
	if p == nil {
		return
	}
	setString(&a.Timezone, p.Timezone)
	setString(&a.Bucket, p.Bucket)
	setString(&a.Weighting, p.Weighting)
	setString(&a.Clustering, p.Clustering)
	if p.CountCreateAsSubmission != nil {
		a.CountCreateAsSubmission = *p.CountCreateAsSubmission
	}
	if p.MinutesPerAction != nil {
		a.MinutesPerAction = *p.MinutesPerAction
	}
	if p.PassGrade != nil {
		a.PassGrade = *p.PassGrade
	}
	if p.K != nil {
		a.K = *p.K
	}
	if p.Seed != nil {
		a.Seed = *p.Seed
	}
	if p.NInit != nil {
		a.NInit = *p.NInit
	}
	if p.MaxIter != nil {
		a.MaxIter = *p.MaxIter
	}
	if p.ActiveWindowDays != nil {
		a.ActiveWindowDays = *p.ActiveWindowDays
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
