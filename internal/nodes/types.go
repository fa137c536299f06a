package nodes

// NodeGroup is the palette group a node is listed under
type NodeGroup string

const (
	GroupTrigger   NodeGroup = "trigger"
	GroupTransform NodeGroup = "transform"
	GroupInput     NodeGroup = "input"
	GroupOutput    NodeGroup = "output"
)

// ParameterType represents the editor type of a node parameter
type ParameterType string

const (
	ParameterTypeString     ParameterType = "string"
	ParameterTypeNumber     ParameterType = "number"
	ParameterTypeBoolean    ParameterType = "boolean"
	ParameterTypeOptions    ParameterType = "options"
	ParameterTypeJSON       ParameterType = "json"
	ParameterTypeCollection ParameterType = "collection"
	ParameterTypeFixed      ParameterType = "fixedCollection"
	ParameterTypeNotice     ParameterType = "notice"
)

// Parameter represents a node parameter definition
type Parameter struct {
	Name           string          `json:"name"`
	DisplayName    string          `json:"displayName"`
	Type           ParameterType   `json:"type"`
	Description    string          `json:"description,omitempty"`
	Required       bool            `json:"required,omitempty"`
	Default        any             `json:"default"`
	Options        []Option        `json:"options,omitempty"`
	Values         []Parameter     `json:"values,omitempty"`
	Children       []Parameter     `json:"children,omitempty"`
	Placeholder    string          `json:"placeholder,omitempty"`
	DisplayOptions *DisplayOptions `json:"displayOptions,omitempty"`
	LoadOptions    string          `json:"loadOptionsMethod,omitempty"`
	Multiple       bool            `json:"multipleValues,omitempty"`
	NoDataExpr     bool            `json:"noDataExpression,omitempty"`
	Password       bool            `json:"password,omitempty"`
}

// Option is a selectable value, either static or returned by an option loader
type Option struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action,omitempty"`
}

// DisplayOptions shows a parameter only when other parameters hold given values
type DisplayOptions struct {
	Show map[string][]any `json:"show,omitempty"`
}

// CredentialRef declares a credential type a node consumes
type CredentialRef struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// ResponseMode controls when a webhook answers its caller
type ResponseMode string

const (
	ResponseModeOnReceived   ResponseMode = "onReceived"
	ResponseModeLastNode     ResponseMode = "lastNode"
	ResponseModeResponseNode ResponseMode = "responseNode"
)

// WebhookDescription declares an inbound endpoint served for a node
type WebhookDescription struct {
	Name           string       `json:"name"`
	HTTPMethod     string       `json:"httpMethod"`
	Path           string       `json:"path"`
	PathParameter  string       `json:"pathParameter,omitempty"`
	ResponseMode   ResponseMode `json:"responseMode"`
	ResponseModeOf string       `json:"responseModeParameter,omitempty"`
	IsFullPath     bool         `json:"isFullPath,omitempty"`
	RestartWebhook bool         `json:"restartWebhook,omitempty"`
}

// RequestDefaults are applied to every HTTP request a node sends
type RequestDefaults struct {
	BaseURLCredential string            `json:"baseURLCredential,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
}

// NodeDefinition represents the complete description of a node type
type NodeDefinition struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description"`
	Version     int         `json:"version"`
	Icon        string      `json:"icon,omitempty"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Group       []NodeGroup `json:"group"`

	Inputs      []string             `json:"inputs"`
	Outputs     []string             `json:"outputs"`
	OutputNames []string             `json:"outputNames,omitempty"`
	Credentials []CredentialRef      `json:"credentials,omitempty"`
	Webhooks    []WebhookDescription `json:"webhooks,omitempty"`
	Parameters  []Parameter          `json:"properties"`

	RequestDefaults *RequestDefaults `json:"requestDefaults,omitempty"`
}

// OutputCount returns the number of output channels the node emits
func (d *NodeDefinition) OutputCount() int {
	return len(d.Outputs)
}

// FindParameter looks up a top-level parameter by name
func (d *NodeDefinition) FindParameter(name string) (*Parameter, bool) {
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i], true
		}
	}
	return nil, false
}

// IsTrigger reports whether the node starts workflows
func (d *NodeDefinition) IsTrigger() bool {
	for _, g := range d.Group {
		if g == GroupTrigger {
			return true
		}
	}
	return false
}

// Item is one unit of data flowing between nodes
type Item struct {
	JSON map[string]any `json:"json"`
}

// NewItem wraps a JSON object in an Item
func NewItem(data map[string]any) Item {
	return Item{JSON: data}
}

// ErrorItem is the item produced for a failed input under continue-on-failure
func ErrorItem(err error) Item {
	return Item{JSON: map[string]any{"error": err.Error()}}
}

// WebhookRequest is the inbound request handed to a webhook node
type WebhookRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Query   map[string]any    `json:"query"`
	Body    any               `json:"body"`
}

// WebhookResponse is what a webhook node returns to the host
type WebhookResponse struct {
	WorkflowData      [][]Item `json:"workflowData,omitempty"`
	NoWebhookResponse bool     `json:"noWebhookResponse,omitempty"`
}
