// Package catalog registers every GPortal node and option loader
package catalog

import (
	"fmt"

	"n8n-gportal/internal/gportal"
	"n8n-gportal/internal/messaging"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/internal/nodes/communicator"
	"n8n-gportal/internal/nodes/createentity"
	"n8n-gportal/internal/nodes/entityapi"
	"n8n-gportal/internal/nodes/jumper"
	"n8n-gportal/internal/nodes/options"
	"n8n-gportal/internal/nodes/uicontroller"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
)

// Dependencies are shared by the registered nodes. All fields are optional.
type Dependencies struct {
	GPortal     gportal.Options
	Broadcaster messaging.Broadcaster
	Metrics     *metrics.Metrics
}

// Register adds all GPortal nodes and option loaders to r
func Register(r *nodes.Registry, deps Dependencies) error {
	if deps.GPortal == (gportal.Options{}) {
		deps.GPortal = gportal.DefaultOptions()
	}

	factories := []nodes.NodeFactory{
		func() nodes.Node { return entityapi.New(deps.GPortal, deps.Metrics) },
		func() nodes.Node { return jumper.New(deps.Metrics) },
		func() nodes.Node { return uicontroller.New(deps.GPortal, deps.Broadcaster, deps.Metrics) },
		func() nodes.Node { return communicator.New() },
		func() nodes.Node { return createentity.New() },
	}
	for _, factory := range factories {
		if err := r.Register(factory); err != nil {
			return fmt.Errorf("register node: %w", err)
		}
	}

	if err := r.RegisterOptionLoader(options.LoadRootFieldsName, options.RootFields(deps.GPortal)); err != nil {
		return fmt.Errorf("register option loader: %w", err)
	}
	return nil
}

// NewRegistry returns a registry with every GPortal node registered
func NewRegistry(log logger.Logger, deps Dependencies) (*nodes.Registry, error) {
	r := nodes.NewRegistry(log)
	if err := Register(r, deps); err != nil {
		return nil, err
	}
	return r, nil
}
