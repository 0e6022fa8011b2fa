package config

import (
	"fmt"
	"strings"
	"time"

	iso8601 "github.com/senseyeio/duration"
	"gopkg.in/yaml.v3"
)

// Duration accepts either an ISO 8601 period such as PT5M or a Go duration such as 5m
type Duration struct {
	time.Duration
}

var durationReference = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func ParseDuration(value string) (Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return Duration{}, nil
	}

	if strings.HasPrefix(value, "P") {
		period, err := iso8601.ParseISO8601(value)
		if err != nil {
			return Duration{}, fmt.Errorf("parsing ISO 8601 duration %q: %w", value, err)
		}

		return Duration{period.Shift(durationReference).Sub(durationReference)}, nil
	}

	goDuration, err := time.ParseDuration(value)
	if err != nil {
		return Duration{}, fmt.Errorf("parsing duration %q: %w", value, err)
	}

	return Duration{goDuration}, nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var value string
	if err := node.Decode(&value); err != nil {
		return err
	}

	parsed, err := ParseDuration(value)
	if err != nil {
		return err
	}
	*d = parsed

	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}
