package main

import (
	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	glazed_cmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/cmds/sources"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/go-go-golems/lawchat/cmd/lawchat/cmds"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lawchat",
	Short: "lawchat is a terminal client for the LawGPT legal assistant",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.InitLoggerFromCobra(cmd); err != nil {
			return err
		}
		if f := cmd.Flags(); f != nil {
			lvl, _ := f.GetString("log-level")
			if lvl != "" {
				if l, err := zerolog.ParseLevel(lvl); err == nil {
					zerolog.SetGlobalLevel(l)
				}
			}
			withCaller, _ := f.GetBool("with-caller")
			if withCaller {
				log.Logger = log.Logger.With().Caller().Logger()
			}
		}
		return nil
	},
}

func main() {
	if err := clay.InitGlazed("lawchat", rootCmd); err != nil {
		cobra.CheckErr(err)
	}

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	cobra.CheckErr(registerCommands(rootCmd))
	cobra.CheckErr(rootCmd.Execute())
}

func registerCommands(root *cobra.Command) error {
	builders := []func() (glazed_cmds.Command, error){
		cmds.NewLoginCommand,
		cmds.NewSignupCommand,
		cmds.NewLogoutCommand,
		cmds.NewWhoamiCommand,
		cmds.NewResetPasswordCommand,
		cmds.NewUpdatePasswordCommand,
		cmds.NewCategoriesCommand,
		cmds.NewLanguagesCommand,
		cmds.NewHealthCommand,
		cmds.NewAskCommand,
		cmds.NewChatCommand,
	}
	for _, build := range builders {
		if err := addCommand(root, build); err != nil {
			return err
		}
	}

	transcripts := &cobra.Command{Use: "transcripts", Short: "Browse locally recorded conversations"}
	for _, build := range []func() (glazed_cmds.Command, error){
		cmds.NewTranscriptsListCommand,
		cmds.NewTranscriptsShowCommand,
	} {
		if err := addCommand(transcripts, build); err != nil {
			return err
		}
	}
	root.AddCommand(transcripts)

	events := &cobra.Command{Use: "events", Short: "Follow conversation events published on Redis"}
	if err := addCommand(events, cmds.NewEventsTailCommand); err != nil {
		return err
	}
	root.AddCommand(events)
	return nil
}

func addCommand(parent *cobra.Command, build func() (glazed_cmds.Command, error)) error {
	c, err := build()
	if err != nil {
		return err
	}
	cobraCmd, err := cli.BuildCobraCommand(c, cli.WithCobraMiddlewaresFunc(lawchatMiddlewares))
	if err != nil {
		return errors.Wrapf(err, "build %s", c.Description().Name)
	}
	parent.AddCommand(cobraCmd)
	return nil
}

// lawchatMiddlewares lets every flag be set from a LAWCHAT_ environment
// variable, with explicit flags winning.
func lawchatMiddlewares(
	_ *values.Values,
	cmd *cobra.Command,
	args []string,
) ([]sources.Middleware, error) {
	return []sources.Middleware{
		sources.FromCobra(cmd),
		sources.FromArgs(args),
		sources.FromEnv("LAWCHAT",
			fields.WithSource("env"),
		),
		sources.FromDefaults(),
	}, nil
}
