package calendar

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FixedConfig is the on-disk form of the fixed calendar:
//
//	off_days: [sunday]
//	holidays:
//	  2025: ["2025-01-01", "2025-12-25"]
type FixedConfig struct {
	OffDays  []string         `yaml:"off_days"`
	Holidays map[int][]string `yaml:"holidays"`
}

// LoadFixedCalendar reads a FixedConfig YAML file into a StaticCalendar.
func LoadFixedCalendar(path string) (*StaticCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holidays file: %w", err)
	}
	return ParseFixedCalendar(data)
}

// ParseFixedCalendar decodes FixedConfig YAML.
func ParseFixedCalendar(data []byte) (*StaticCalendar, error) {
	var cfg FixedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal holidays file: %w", err)
	}

	offDays := make([]time.Weekday, 0, len(cfg.OffDays))
	for _, name := range cfg.OffDays {
		wd, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		offDays = append(offDays, wd)
	}

	table := make(FixedHolidayTable, len(cfg.Holidays))
	for year, raw := range cfg.Holidays {
		for _, s := range raw {
			d, err := ParseDate(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("holidays for %d: %w", year, err)
			}
			if d.Year() != year {
				return nil, fmt.Errorf("holidays for %d: %s is in %d", year, d, d.Year())
			}
			table[year] = append(table[year], d)
		}
	}

	return NewStaticCalendar(table, offDays...), nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full English weekday names, case-insensitive.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", name)
	}
	return wd, nil
}
