package gportal

import (
	"context"
	"fmt"
	"net/http"

	"n8n-gportal/internal/nodes"
)

const rootFieldsPath = "/field-definitions/root-fields/meta-data"

// RootField is one entry of the root field metadata listing
type RootField struct {
	Name    string `json:"name"`
	Version any    `json:"version"`
	Unique  any    `json:"unique"`
}

// RootFields lists the root field definitions known to the portal
func (c *Client) RootFields(ctx context.Context) ([]RootField, error) {
	body, err := c.Do(ctx, http.MethodGet, rootFieldsPath, nil, nil)
	if err != nil {
		return nil, err
	}

	// Anything but an array means there is nothing to offer.
	list, ok := body.([]any)
	if !ok {
		c.logger.DebugContext(ctx, "Root field metadata is not an array", "type", fmt.Sprintf("%T", body))
		return []RootField{}, nil
	}

	fields := make([]RootField, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		fields = append(fields, RootField{
			Name:    nodes.ToString(m["name"]),
			Version: m["version"],
			Unique:  m["unique"],
		})
	}
	return fields, nil
}

// Description renders the option description shown for a root field
func (f RootField) Description() string {
	return fmt.Sprintf("Version: %s, Unique: %s", display(f.Version), display(f.Unique))
}

func display(v any) string {
	if v == nil {
		return "undefined"
	}
	return nodes.ToString(v)
}
