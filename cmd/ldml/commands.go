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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jplu/langtags/langtag"
	"github.com/jplu/langtags/registry"
	"github.com/jplu/langtags/resolve"
	"github.com/jplu/langtags/store"
)

var (
	errUnresolved   = errors.New("some tags did not resolve")
	errInconsistent = errors.New("data root inconsistent with registry")
	errChanged      = errors.New("registries differ")
)

type resolution struct {
	Input string `json:"input"`
	resolve.Result
	Error string `json:"error,omitempty"`
}

func newResolveCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve TAG...",
		Short: "Resolve tags to their canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer snap.Close()

			enc := json.NewEncoder(a.out)
			var failed bool
			for _, raw := range args {
				res, err := snap.Resolve(raw)
				if err != nil {
					failed = true
				}
				switch {
				case asJSON:
					r := resolution{Input: raw, Result: res}
					if err != nil {
						r.Error = err.Error()
					}
					if err := enc.Encode(r); err != nil {
						return err
					}
				case err != nil:
					fmt.Fprintf(a.errOut, "%v\n", err)
				default:
					fmt.Fprintf(a.out, "%s\t%s\t%s\n", raw, res.Canonical, res.Kind)
				}
			}
			if failed {
				return errUnresolved
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per tag")
	return cmd
}

func newTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags TAG",
		Short: "Print the equivalence sets of the class a tag resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer snap.Close()

			res, err := snap.Resolve(args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(a.out, registry.RenderSets(res.Entry.EquivalenceSets()))
			return err
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	var (
		output  string
		flatten bool
		include []string
		uid     string
	)
	cmd := &cobra.Command{
		Use:   "open TAG",
		Short: "Write the LDML document of a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []store.OpenOption
			if !flatten {
				opts = append(opts, store.Unflat())
			}
			if len(include) > 0 {
				opts = append(opts, store.Include(include...))
			}
			if uid != "" {
				n, err := store.ParseUID(uid)
				if err != nil {
					return err
				}
				opts = append(opts, store.UID(n))
			}

			snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer snap.Close()

			res, err := snap.Resolve(args[0])
			if err != nil {
				return err
			}
			doc, err := snap.Open(cmd.Context(), res.Entry, opts...)
			if err != nil {
				return err
			}
			a.logger.Debug("document", "key", doc.Key, "etag", doc.ETag, "modified", doc.ModTime)
			if output == "" || output == "-" {
				_, err = a.out.Write(doc.Data)
				return err
			}
			return os.WriteFile(output, doc.Data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of standard output")
	cmd.Flags().BoolVar(&flatten, "flatten", true, "read the flat tree of a split data root; false reads the unflat one")
	cmd.Flags().StringSliceVar(&include, "inc", nil, "keep only these top level elements, and identity")
	cmd.Flags().StringVar(&uid, "uid", "", `stamp this unique id on the document, or "unknown" for a random one`)
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Describe the snapshot of the selected profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer snap.Close()

			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(snap.Status()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every entry declaring locale data has a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer snap.Close()

			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.VerifyWorkers
			}
			found, err := snap.Store.Verify(cmd.Context(), snap.Index, workers)
			if err != nil {
				return err
			}
			for _, i := range found {
				fmt.Fprintln(a.out, i)
			}
			if len(found) > 0 {
				return fmt.Errorf("%w: %d entries", errInconsistent, len(found))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent checks (default $LDML_VERIFY_WORKERS or one per CPU)")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare the equivalence sets of two langtags files",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := a.parser()
			if err != nil {
				return err
			}
			from, err := readIndex(args[0], p)
			if err != nil {
				return err
			}
			to, err := readIndex(args[1], p)
			if err != nil {
				return err
			}

			changes := registry.Diff(from, to)
			for _, c := range changes {
				fmt.Fprintf(a.out, "%s %s\n", c.Kind, c.Set)
			}
			if len(changes) > 0 {
				return fmt.Errorf("%w: %d sets", errChanged, len(changes))
			}
			return nil
		},
	}
}

func readIndex(path string, p *langtag.Parser) (*registry.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := registry.Read(path, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return registry.Build(src, registry.WithParser(p))
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep a snapshot loaded, reloading it when its inputs change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd.Context())
		},
	}
}
