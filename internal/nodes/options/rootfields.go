// Package options holds the dynamic option loaders referenced by node parameters
package options

import (
	"context"

	"n8n-gportal/internal/credentials"
	"n8n-gportal/internal/gportal"
	"n8n-gportal/internal/nodes"
)

// LoadRootFieldsName is the loader name parameters use to list root fields
const LoadRootFieldsName = "loadRootFields"

// RootFieldLister is the part of the GPortal client the loader needs
type RootFieldLister interface {
	RootFields(ctx context.Context) ([]gportal.RootField, error)
}

// RootFields builds the loadRootFields loader. Failures are logged and
// yield an empty list so the editor stays usable.
func RootFields(opts gportal.Options) nodes.OptionLoader {
	return rootFields(func(ctx context.Context, lf nodes.LoadOptionsFunctions) (RootFieldLister, error) {
		data, err := lf.Credentials(ctx, credentials.TypeGPortalAPI)
		if err != nil {
			return nil, err
		}
		cred, err := credentials.ParseGPortalAPI(data)
		if err != nil {
			return nil, err
		}
		client := gportal.NewClient(cred, opts, lf.Logger())
		lf.Logger().InfoContext(ctx, "Loading root fields", "base_url", client.BaseURL())
		return client, nil
	})
}

type listerFactory func(ctx context.Context, lf nodes.LoadOptionsFunctions) (RootFieldLister, error)

func rootFields(newLister listerFactory) nodes.OptionLoader {
	return func(ctx context.Context, lf nodes.LoadOptionsFunctions) ([]nodes.Option, error) {
		log := lf.Logger()

		lister, err := newLister(ctx, lf)
		if err != nil {
			log.ErrorContext(ctx, "Error loading root fields: "+err.Error())
			return []nodes.Option{}, nil
		}

		fields, err := lister.RootFields(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Error loading root fields: "+err.Error())
			return []nodes.Option{}, nil
		}

		opts := make([]nodes.Option, 0, len(fields))
		for _, f := range fields {
			opts = append(opts, nodes.Option{
				Name:        f.Name,
				Value:       f.Name,
				Description: f.Description(),
			})
		}
		log.DebugContext(ctx, "Root fields loaded", "count", len(opts))
		return opts, nil
	}
}
