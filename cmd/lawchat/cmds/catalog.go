package cmds

import (
	"context"
	"sort"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/lawchat/pkg/config"
	"github.com/go-go-golems/lawchat/pkg/gate"
)

// glazeSections returns the output sections followed by extra.
func glazeSections(extra []schema.Section) ([]schema.Section, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsSection, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}
	return append([]schema.Section{glazedSection, commandSettingsSection}, extra...), nil
}

type CategoriesCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*CategoriesCommand)(nil)

func NewCategoriesCommand() (cmds.Command, error) {
	client, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	sections, err := glazeSections(client)
	if err != nil {
		return nil, err
	}
	return &CategoriesCommand{CommandDescription: cmds.NewCommandDescription(
		"categories",
		cmds.WithShort("List the legal categories questions can be asked in"),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *CategoriesCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *values.Values, gp middlewares.Processor) error {
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Client.FetchCategories(ctx)
	if err != nil {
		return err
	}
	for i, name := range res.Categories {
		row := types.NewRow(
			types.MRP("index", i),
			types.MRP("category", name),
			types.MRP("path", gate.CategoryPath(name)),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type LanguagesCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*LanguagesCommand)(nil)

func NewLanguagesCommand() (cmds.Command, error) {
	client, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	sections, err := glazeSections(client)
	if err != nil {
		return nil, err
	}
	return &LanguagesCommand{CommandDescription: cmds.NewCommandDescription(
		"languages",
		cmds.WithShort("List the answer languages the backend supports"),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *LanguagesCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *values.Values, gp middlewares.Processor) error {
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Client.FetchLanguages(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(res.Languages))
	for name := range res.Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row := types.NewRow(
			types.MRP("language", name),
			types.MRP("code", res.Languages[name]),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type HealthCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*HealthCommand)(nil)

func NewHealthCommand() (cmds.Command, error) {
	client, err := config.ClientSections()
	if err != nil {
		return nil, err
	}
	sections, err := glazeSections(client)
	if err != nil {
		return nil, err
	}
	return &HealthCommand{CommandDescription: cmds.NewCommandDescription(
		"health",
		cmds.WithShort("Check that the backend is reachable"),
		cmds.WithSections(sections...),
	)}, nil
}

func (c *HealthCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *values.Values, gp middlewares.Processor) error {
	app, err := openApp(ctx, parsed, config.ClientSlugs...)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Client.Health(ctx)
	if err != nil {
		return err
	}
	return gp.AddRow(ctx, types.NewRow(
		types.MRP("api_url", app.Client.BaseURL()),
		types.MRP("status", res.Status),
		types.MRP("version", res.Version),
	))
}
