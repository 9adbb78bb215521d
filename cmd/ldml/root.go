/*
Copyright 2025 Trident Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jplu/langtags/config"
	"github.com/jplu/langtags/langtag"
	"github.com/jplu/langtags/logging"
	"github.com/jplu/langtags/snapshot"
)

var version = "dev"

// app carries the state shared by the commands.
type app struct {
	cfg    config.Configuration
	v      *viper.Viper
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "ldml",
		Short:         "Resolve language tags and fetch their LDML documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("profiles", "", "profiles file (default $LDML_PROFILES_FILE or ldml-api.yaml)")
	flags.StringP("profile", "p", "", "profile to use (default $LDML_PROFILE or production)")
	flags.String("langtags", "", "langtags.json or langtags.txt file, overriding the profile")
	flags.String("sldr", "", "data root directory or blob URL, overriding the profile")
	flags.Bool("split", false, "the data root holds flat and unflat trees, overriding the profile")
	flags.String("subtag-registry", "", "IANA language subtag registry file")
	flags.String("log-level", "", "log level (default $LOG_LEVEL or info)")
	for _, name := range []string{"profiles", "profile", "langtags", "sldr", "split", "subtag-registry", "log-level"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newResolveCmd(a),
		newTagsCmd(a),
		newOpenCmd(a),
		newStatusCmd(a),
		newVerifyCmd(a),
		newWatchCmd(a),
		newDiffCmd(a),
	)
	return root
}

// init merges the environment under the command line flags.
func (a *app) init() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	a.v.SetDefault("profiles", cfg.ProfilesFile)
	a.v.SetDefault("profile", cfg.Profile)
	a.v.SetDefault("subtag-registry", cfg.SubtagRegistry)
	a.v.SetDefault("log-level", cfg.LogLevel)

	cfg.ProfilesFile = a.v.GetString("profiles")
	cfg.Profile = a.v.GetString("profile")
	cfg.SubtagRegistry = a.v.GetString("subtag-registry")
	cfg.LogLevel = a.v.GetString("log-level")
	a.cfg = cfg

	a.logger = logging.New(a.errOut, cfg)
	slog.SetDefault(a.logger)
	return nil
}

// source locates the registry and data root, from the flags when both are
// given, else from the selected profile.
func (a *app) source() (snapshot.Source, error) {
	langtags, sldr := a.v.GetString("langtags"), a.v.GetString("sldr")
	if langtags != "" && sldr != "" {
		return snapshot.Source{Registry: langtags, DataRoot: sldr, Split: a.v.GetBool("split")}, nil
	}

	profiles, err := config.LoadProfiles(a.cfg.ProfilesFile)
	if err != nil {
		return snapshot.Source{}, err
	}
	p, err := profiles.Select(a.cfg.Profile)
	if err != nil {
		return snapshot.Source{}, err
	}
	if langtags != "" {
		p.Langtags = langtags
	}
	if sldr != "" {
		p.SLDR = sldr
	}
	if a.v.IsSet("split") {
		p.Split = a.v.GetBool("split")
	}
	reg, err := p.Registry()
	if err != nil {
		return snapshot.Source{}, err
	}
	return snapshot.Source{Profile: p.Name, Registry: reg, DataRoot: p.SLDR, Split: p.Split}, nil
}

func (a *app) parser() (*langtag.Parser, error) {
	if a.cfg.SubtagRegistry == "" {
		return langtag.NewParser(), nil
	}
	f, err := os.Open(a.cfg.SubtagRegistry)
	if err != nil {
		return nil, fmt.Errorf("reading subtag registry: %w", err)
	}
	defer f.Close()
	return langtag.NewParserFromRegistry(f)
}

func (a *app) snapshotOptions() ([]snapshot.Option, error) {
	p, err := a.parser()
	if err != nil {
		return nil, err
	}
	return []snapshot.Option{
		snapshot.WithParser(p),
		snapshot.WithLogger(a.logger),
		snapshot.WithCacheTTL(a.cfg.ResolveCacheTTL),
		snapshot.WithCacheSize(a.cfg.ResolveCacheSize),
	}, nil
}

// load builds a snapshot for a one-shot command.
func (a *app) load(ctx context.Context) (*snapshot.Snapshot, error) {
	src, err := a.source()
	if err != nil {
		return nil, err
	}
	opts, err := a.snapshotOptions()
	if err != nil {
		return nil, err
	}
	return snapshot.Load(ctx, src, opts...)
}
