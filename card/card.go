// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package card defines the six card variants (data model §3) as a tagged
// sum, plus the shared header fields every variant carries. The catalog
// store (package sqlstore) dispatches on RegistryType to decide which
// backing table an operation touches; the variant-specific fields live on
// each concrete type.
package card

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegistryType names one of the six card tables.
type RegistryType string

// The six registries named in spec.md §3.
const (
	RegistryData       RegistryType = "data"
	RegistryModel      RegistryType = "model"
	RegistryExperiment RegistryType = "experiment"
	RegistryAudit      RegistryType = "audit"
	RegistryPrompt     RegistryType = "prompt"
	RegistryService    RegistryType = "service"
)

// Valid reports whether r is one of the six known registries.
func (r RegistryType) Valid() bool {
	switch r {
	case RegistryData, RegistryModel, RegistryExperiment, RegistryAudit, RegistryPrompt, RegistryService:
		return true
	}
	return false
}

// Header holds the fields every card variant shares, per spec.md §3.
type Header struct {
	UID          uuid.UUID `json:"uid"`
	Space        string    `json:"space"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Major        int64     `json:"major"`
	Minor        int64     `json:"minor"`
	Patch        int64     `json:"patch"`
	PreTag       string    `json:"pre_tag,omitempty"`
	BuildTag     string    `json:"build_tag,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	AppEnv       string    `json:"app_env"`
	Username     string    `json:"username"`
	OpsmlVersion string    `json:"opsml_version"`
	Tags         []string  `json:"tags"`
}

// NewHeader returns a Header with a fresh UUIDv7 uid and CreatedAt set to
// now; callers supply the rest.
func NewHeader(space, name, version string) (Header, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Header{}, err
	}
	return Header{
		UID:       id,
		Space:     space,
		Name:      name,
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Tags:      []string{},
	}, nil
}

// Card is the common interface every variant implements so the catalog
// store and the registry API surface can operate on cards without knowing
// the concrete type. It mirrors the teacher's pattern of a small interface
// dispatched on a type tag (see storage.Store dispatching on path).
type Card interface {
	Header() Header
	RegistryType() RegistryType
}

// DataCard is the Data registry variant.
type DataCard struct {
	Hdr               Header  `json:"-"`
	DataType          string  `json:"data_type"`
	InterfaceType     string  `json:"interface_type"`
	ExperimentCardUID *string `json:"experimentcard_uid,omitempty"`
	AuditCardUID      *string `json:"auditcard_uid,omitempty"`
}

func (c DataCard) Header() Header             { return c.Hdr }
func (c DataCard) RegistryType() RegistryType { return RegistryData }

// ModelCard is the Model registry variant.
type ModelCard struct {
	Hdr               Header  `json:"-"`
	DataCardUID       *string `json:"datacard_uid,omitempty"`
	DataType          string  `json:"data_type"`
	ModelType         string  `json:"model_type"`
	InterfaceType     string  `json:"interface_type"`
	TaskType          string  `json:"task_type"`
	ExperimentCardUID *string `json:"experimentcard_uid,omitempty"`
	AuditCardUID      *string `json:"auditcard_uid,omitempty"`
}

func (c ModelCard) Header() Header             { return c.Hdr }
func (c ModelCard) RegistryType() RegistryType { return RegistryModel }

// ExperimentCard is the Experiment registry variant. Every *UIDs field is a
// weak reference by identity (spec.md §9): cycles are not prevented, and
// load-time resolution must tolerate dangling refs.
type ExperimentCard struct {
	Hdr               Header   `json:"-"`
	DataCardUIDs      []string `json:"datacard_uids"`
	ModelCardUIDs     []string `json:"modelcard_uids"`
	PromptCardUIDs    []string `json:"promptcard_uids"`
	ServiceCardUIDs   []string `json:"service_card_uids"`
	ExperimentCardUIDs []string `json:"experimentcard_uids"`
}

func (c ExperimentCard) Header() Header             { return c.Hdr }
func (c ExperimentCard) RegistryType() RegistryType { return RegistryExperiment }

// AuditCard is the Audit registry variant.
type AuditCard struct {
	Hdr                Header   `json:"-"`
	Approved           bool     `json:"approved"`
	DataCardUIDs       []string `json:"datacard_uids"`
	ModelCardUIDs      []string `json:"modelcard_uids"`
	ExperimentCardUIDs []string `json:"experimentcard_uids"`
}

func (c AuditCard) Header() Header             { return c.Hdr }
func (c AuditCard) RegistryType() RegistryType { return RegistryAudit }

// PromptCard is the Prompt registry variant.
type PromptCard struct {
	Hdr               Header  `json:"-"`
	ExperimentCardUID *string `json:"experimentcard_uid,omitempty"`
	AuditCardUID      *string `json:"auditcard_uid,omitempty"`
}

func (c PromptCard) Header() Header             { return c.Hdr }
func (c PromptCard) RegistryType() RegistryType { return RegistryPrompt }

// ServiceCardRef binds one alias to a concrete card within a service
// bundle's manifest.
type ServiceCardRef struct {
	Alias        string       `json:"alias"`
	UID          string       `json:"uid"`
	RegistryType RegistryType `json:"registry_type"`
	Version      string       `json:"version"`
}

// ServiceCard is the Service registry variant: a manifest bundling other
// cards under one versioned identity. See package servicecard for the
// save/load engine built on top of this type.
type ServiceCard struct {
	Hdr             Header            `json:"-"`
	Cards           []ServiceCardRef  `json:"cards"`
	ServiceType     string            `json:"service_type"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Deployment      map[string]any    `json:"deployment,omitempty"`
	ServiceConfig   map[string]any    `json:"service_config,omitempty"`
}

// Unmarshal decodes a raw card body (the flattened JSON each variant's
// MarshalJSON writes, header fields included) into the concrete type for
// registryType and attaches hdr in place of the decoded header. Shared by the catalog
// store (reading a row's card_json column) and the service-card engine
// (reading a member's saved manifest), so both read the same wire shape.
func Unmarshal(registryType RegistryType, hdr Header, data []byte) (Card, error) {
	switch registryType {
	case RegistryData:
		var c DataCard
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal data card: %w", err)
		}
		c.Hdr = hdr
		return c, nil
	case RegistryModel:
		var c ModelCard
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal model card: %w", err)
		}
		c.Hdr = hdr
		return c, nil
	case RegistryExperiment:
		var c ExperimentCard
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal experiment card: %w", err)
		}
		c.Hdr = hdr
		return c, nil
	case RegistryAudit:
		var c AuditCard
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal audit card: %w", err)
		}
		c.Hdr = hdr
		return c, nil
	case RegistryPrompt:
		var c PromptCard
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal prompt card: %w", err)
		}
		c.Hdr = hdr
		return c, nil
	case RegistryService:
		var c ServiceCard
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal service card: %w", err)
		}
		c.Hdr = hdr
		return c, nil
	default:
		return nil, fmt.Errorf("unknown registry type %q", registryType)
	}
}

func (c ServiceCard) Header() Header             { return c.Hdr }
func (c ServiceCard) RegistryType() RegistryType { return RegistryService }
