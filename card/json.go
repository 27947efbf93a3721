package card

import "encoding/json"

// marshalCard flattens hdr and fields into one JSON object carrying the
// registry_type discriminant, per spec.md §6 ("Card JSON"): snake_case
// field names, registry_type included, unknown fields on read ignored.
func marshalCard(hdr Header, registryType RegistryType, fields any) ([]byte, error) {
	hdrBytes, err := json.Marshal(hdr)
	if err != nil {
		return nil, err
	}
	fieldBytes, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	if err := json.Unmarshal(hdrBytes, &merged); err != nil {
		return nil, err
	}
	fieldMap := map[string]any{}
	if err := json.Unmarshal(fieldBytes, &fieldMap); err != nil {
		return nil, err
	}
	for k, v := range fieldMap {
		merged[k] = v
	}
	merged["registry_type"] = string(registryType)

	return json.Marshal(merged)
}

// unmarshalCard splits data into the shared Header and the
// variant-specific fields. Unknown fields are ignored by both
// json.Unmarshal calls, matching the "missing optional fields default to
// null" contract.
func unmarshalCard(data []byte, hdr *Header, fields any) error {
	if err := json.Unmarshal(data, hdr); err != nil {
		return err
	}
	return json.Unmarshal(data, fields)
}

type dataCardFields struct {
	DataType          string  `json:"data_type"`
	InterfaceType     string  `json:"interface_type"`
	ExperimentCardUID *string `json:"experimentcard_uid,omitempty"`
	AuditCardUID      *string `json:"auditcard_uid,omitempty"`
}

func (c DataCard) MarshalJSON() ([]byte, error) {
	return marshalCard(c.Hdr, RegistryData, dataCardFields{
		DataType: c.DataType, InterfaceType: c.InterfaceType,
		ExperimentCardUID: c.ExperimentCardUID, AuditCardUID: c.AuditCardUID,
	})
}

func (c *DataCard) UnmarshalJSON(data []byte) error {
	var f dataCardFields
	if err := unmarshalCard(data, &c.Hdr, &f); err != nil {
		return err
	}
	c.DataType, c.InterfaceType = f.DataType, f.InterfaceType
	c.ExperimentCardUID, c.AuditCardUID = f.ExperimentCardUID, f.AuditCardUID
	return nil
}

type modelCardFields struct {
	DataCardUID       *string `json:"datacard_uid,omitempty"`
	DataType          string  `json:"data_type"`
	ModelType         string  `json:"model_type"`
	InterfaceType     string  `json:"interface_type"`
	TaskType          string  `json:"task_type"`
	ExperimentCardUID *string `json:"experimentcard_uid,omitempty"`
	AuditCardUID      *string `json:"auditcard_uid,omitempty"`
}

func (c ModelCard) MarshalJSON() ([]byte, error) {
	return marshalCard(c.Hdr, RegistryModel, modelCardFields{
		DataCardUID: c.DataCardUID, DataType: c.DataType, ModelType: c.ModelType,
		InterfaceType: c.InterfaceType, TaskType: c.TaskType,
		ExperimentCardUID: c.ExperimentCardUID, AuditCardUID: c.AuditCardUID,
	})
}

func (c *ModelCard) UnmarshalJSON(data []byte) error {
	var f modelCardFields
	if err := unmarshalCard(data, &c.Hdr, &f); err != nil {
		return err
	}
	c.DataCardUID, c.DataType, c.ModelType = f.DataCardUID, f.DataType, f.ModelType
	c.InterfaceType, c.TaskType = f.InterfaceType, f.TaskType
	c.ExperimentCardUID, c.AuditCardUID = f.ExperimentCardUID, f.AuditCardUID
	return nil
}

type experimentCardFields struct {
	DataCardUIDs       []string `json:"datacard_uids"`
	ModelCardUIDs      []string `json:"modelcard_uids"`
	PromptCardUIDs     []string `json:"promptcard_uids"`
	ServiceCardUIDs    []string `json:"service_card_uids"`
	ExperimentCardUIDs []string `json:"experimentcard_uids"`
}

func (c ExperimentCard) MarshalJSON() ([]byte, error) {
	return marshalCard(c.Hdr, RegistryExperiment, experimentCardFields{
		DataCardUIDs: c.DataCardUIDs, ModelCardUIDs: c.ModelCardUIDs,
		PromptCardUIDs: c.PromptCardUIDs, ServiceCardUIDs: c.ServiceCardUIDs,
		ExperimentCardUIDs: c.ExperimentCardUIDs,
	})
}

func (c *ExperimentCard) UnmarshalJSON(data []byte) error {
	var f experimentCardFields
	if err := unmarshalCard(data, &c.Hdr, &f); err != nil {
		return err
	}
	c.DataCardUIDs, c.ModelCardUIDs = f.DataCardUIDs, f.ModelCardUIDs
	c.PromptCardUIDs, c.ServiceCardUIDs = f.PromptCardUIDs, f.ServiceCardUIDs
	c.ExperimentCardUIDs = f.ExperimentCardUIDs
	return nil
}

type auditCardFields struct {
	Approved           bool     `json:"approved"`
	DataCardUIDs       []string `json:"datacard_uids"`
	ModelCardUIDs      []string `json:"modelcard_uids"`
	ExperimentCardUIDs []string `json:"experimentcard_uids"`
}

func (c AuditCard) MarshalJSON() ([]byte, error) {
	return marshalCard(c.Hdr, RegistryAudit, auditCardFields{
		Approved: c.Approved, DataCardUIDs: c.DataCardUIDs,
		ModelCardUIDs: c.ModelCardUIDs, ExperimentCardUIDs: c.ExperimentCardUIDs,
	})
}

func (c *AuditCard) UnmarshalJSON(data []byte) error {
	var f auditCardFields
	if err := unmarshalCard(data, &c.Hdr, &f); err != nil {
		return err
	}
	c.Approved, c.DataCardUIDs = f.Approved, f.DataCardUIDs
	c.ModelCardUIDs, c.ExperimentCardUIDs = f.ModelCardUIDs, f.ExperimentCardUIDs
	return nil
}

type promptCardFields struct {
	ExperimentCardUID *string `json:"experimentcard_uid,omitempty"`
	AuditCardUID      *string `json:"auditcard_uid,omitempty"`
}

func (c PromptCard) MarshalJSON() ([]byte, error) {
	return marshalCard(c.Hdr, RegistryPrompt, promptCardFields{
		ExperimentCardUID: c.ExperimentCardUID, AuditCardUID: c.AuditCardUID,
	})
}

func (c *PromptCard) UnmarshalJSON(data []byte) error {
	var f promptCardFields
	if err := unmarshalCard(data, &c.Hdr, &f); err != nil {
		return err
	}
	c.ExperimentCardUID, c.AuditCardUID = f.ExperimentCardUID, f.AuditCardUID
	return nil
}

type serviceCardFields struct {
	Cards         []ServiceCardRef  `json:"cards"`
	ServiceType   string            `json:"service_type"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Deployment    map[string]any    `json:"deployment,omitempty"`
	ServiceConfig map[string]any    `json:"service_config,omitempty"`
}

func (c ServiceCard) MarshalJSON() ([]byte, error) {
	return marshalCard(c.Hdr, RegistryService, serviceCardFields{
		Cards: c.Cards, ServiceType: c.ServiceType, Metadata: c.Metadata,
		Deployment: c.Deployment, ServiceConfig: c.ServiceConfig,
	})
}

func (c *ServiceCard) UnmarshalJSON(data []byte) error {
	var f serviceCardFields
	if err := unmarshalCard(data, &c.Hdr, &f); err != nil {
		return err
	}
	c.Cards, c.ServiceType = f.Cards, f.ServiceType
	c.Metadata, c.Deployment, c.ServiceConfig = f.Metadata, f.Deployment, f.ServiceConfig
	return nil
}
