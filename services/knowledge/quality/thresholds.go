// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SizeTiers are ascending line-span cutoffs for callable entities.
type SizeTiers struct {
	// Medium flags a callable longer than this many lines.
	Medium int `yaml:"medium"`

	// High flags a callable longer than this many lines.
	High int `yaml:"high"`

	// Critical flags a callable longer than this many lines.
	Critical int `yaml:"critical"`
}

// MethodTiers are ascending method-count cutoffs for classes.
type MethodTiers struct {
	High     int `yaml:"high"`
	Critical int `yaml:"critical"`
}

// Thresholds configures every quality detector.
type Thresholds struct {
	// FunctionLines grades function and method length.
	FunctionLines SizeTiers `yaml:"function_lines"`

	// ClassMethods grades methods-per-class.
	ClassMethods MethodTiers `yaml:"class_methods"`

	// MaxFanIn is the incoming-edge ceiling per entity.
	MaxFanIn int `yaml:"max_fan_in"`

	// MaxFanOut is the outgoing-edge ceiling per entity.
	MaxFanOut int `yaml:"max_fan_out"`

	// ImbalanceRatio flags entities whose fan-in/fan-out ratio (either
	// direction) exceeds it.
	ImbalanceRatio float64 `yaml:"imbalance_ratio"`

	// MinImbalanceEdges is the degree below which imbalance is ignored,
	// so leaf utilities with two callers are not flagged.
	MinImbalanceEdges int `yaml:"min_imbalance_edges"`

	// DebtPointsPerFile is the weighted-issue budget that maps to one
	// score point when normalizing file debt to the project scale.
	DebtPointsPerFile float64 `yaml:"debt_points_per_file"`
}

// DefaultThresholds returns the tuning used when no config file is given.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FunctionLines:     SizeTiers{Medium: 50, High: 100, Critical: 200},
		ClassMethods:      MethodTiers{High: 20, Critical: 30},
		MaxFanIn:          25,
		MaxFanOut:         25,
		ImbalanceRatio:    10,
		MinImbalanceEdges: 10,
		DebtPointsPerFile: 2,
	}
}

// LoadThresholds reads thresholds from a YAML file. Absent keys keep
// their defaults.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse thresholds: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate checks that tiers ascend and ceilings are positive.
func (t *Thresholds) Validate() error {
	if t.FunctionLines.Medium <= 0 ||
		t.FunctionLines.High <= t.FunctionLines.Medium ||
		t.FunctionLines.Critical <= t.FunctionLines.High {
		return fmt.Errorf("function_lines tiers must ascend: %+v", t.FunctionLines)
	}
	if t.ClassMethods.High <= 0 || t.ClassMethods.Critical <= t.ClassMethods.High {
		return fmt.Errorf("class_methods tiers must ascend: %+v", t.ClassMethods)
	}
	if t.MaxFanIn <= 0 || t.MaxFanOut <= 0 {
		return fmt.Errorf("fan ceilings must be positive: in=%d out=%d", t.MaxFanIn, t.MaxFanOut)
	}
	if t.ImbalanceRatio <= 1 {
		return fmt.Errorf("imbalance_ratio must exceed 1: %v", t.ImbalanceRatio)
	}
	if t.DebtPointsPerFile <= 0 {
		return fmt.Errorf("debt_points_per_file must be positive: %v", t.DebtPointsPerFile)
	}
	return nil
}
