// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rapidaai/speech-collector/pkg/utils"
)

var ErrInvalidDemographics = errors.New("invalid demographics")

var validate = validator.New()

// Demographics is the gender/age-group/region triple attached to every line
// of a submission batch.
type Demographics struct {
	Gender   string `json:"gender" validate:"required"`
	AgeGroup string `json:"ageGroup" validate:"required"`
	Region   string `json:"region" validate:"required"`
}

// Validate requires all three fields and rejects characters that would break
// the pipe delimited metadata line.
func (d Demographics) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDemographics, err)
	}
	for name, value := range map[string]string{"gender": d.Gender, "ageGroup": d.AgeGroup, "region": d.Region} {
		if strings.ContainsAny(value, "|\r\n") {
			return fmt.Errorf("%w: %s contains a reserved character", ErrInvalidDemographics, name)
		}
	}
	return nil
}

// Suffix renders the demographics as appended to a metadata line.
func (d Demographics) Suffix() string {
	return "|" + d.Gender + "|" + d.AgeGroup + "|" + d.Region
}

// JSON encodes the record the way the upload form field carries it.
func (d Demographics) JSON() string {
	// three string fields, Marshal cannot fail
	b, _ := json.Marshal(d)
	return string(b)
}

// ParseDemographics decodes and validates the demographics form field.
func ParseDemographics(raw string) (Demographics, error) {
	var d Demographics
	if utils.IsEmpty(raw) {
		return d, fmt.Errorf("%w: field is empty", ErrInvalidDemographics)
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDemographics, err)
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}
