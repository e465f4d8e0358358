// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pypiserver/cmd/pypiadmin/cli"
	"github.com/bureau-foundation/pypiserver/lib/catalog"
	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
	"github.com/bureau-foundation/pypiserver/lib/registry"
	"github.com/bureau-foundation/pypiserver/lib/simpleindex"
	"github.com/bureau-foundation/pypiserver/lib/version"
)

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "pypiadmin",
		Description: "Administer a pypiserver catalog and artifact store.",
		Output:      a.stderr,
		Subcommands: []*cli.Command{
			a.listCommand(),
			a.showCommand(),
			a.publishCommand("publish", "Publish a new release", false),
			a.publishCommand("replace", "Replace the artifact of an existing release", true),
			a.deleteCommand(),
			a.checkCommand(),
			a.exportCommand(),
			a.importCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string) error {
					fmt.Fprintf(a.stdout, "pypiadmin %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// release is the JSON form of a catalog row.
type release struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Filename string `json:"filename"`
	Location string `json:"location"`
	PURL     string `json:"purl"`
}

func newRelease(meta pkgmeta.Meta) release {
	return release{
		Name:     meta.Name,
		Version:  meta.Version,
		Filename: simpleindex.Filename(meta),
		Location: meta.Location,
		PURL:     meta.PURL(),
	}
}

// withRegistry opens the registry for the duration of run.
func (a *app) withRegistry(ctx context.Context, run func(*registry.Local) error) error {
	local, err := a.open(ctx)
	if err != nil {
		return err
	}
	return errors.Join(run(local), local.Close())
}

func (a *app) listCommand() *cli.Command {
	var output cli.JSONOutput
	return &cli.Command{
		Name:    "list",
		Summary: "List releases, optionally of one project",
		Usage:   "pypiadmin list [name] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("list")
			output.AddFlags(flagSet)
			return flagSet
		},
		MaxArgs: 1,
		Run: func(ctx context.Context, args []string) error {
			return a.withRegistry(ctx, func(local *registry.Local) error {
				var (
					metas []pkgmeta.Meta
					err   error
				)
				if len(args) == 1 {
					metas, err = local.Versions(ctx, args[0])
				} else {
					metas, err = local.All(ctx)
				}
				if err != nil {
					return err
				}

				releases := make([]release, 0, len(metas))
				for _, meta := range metas {
					releases = append(releases, newRelease(meta))
				}
				if done, err := output.EmitJSON(a.stdout, releases); done {
					return err
				}

				tw := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
				fmt.Fprintln(tw, "NAME\tVERSION\tFILENAME")
				for _, release := range releases {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", release.Name, release.Version, release.Filename)
				}
				return tw.Flush()
			})
		},
	}
}

// details is show's output: the catalog row plus facts about the
// stored artifact.
type details struct {
	release
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	BLAKE3 string `json:"blake3"`
}

func (a *app) showCommand() *cli.Command {
	var output cli.JSONOutput
	return &cli.Command{
		Name:    "show",
		Summary: "Show one release and its artifact",
		Usage:   "pypiadmin show <name> <version> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet("show")
			output.AddFlags(flagSet)
			return flagSet
		},
		MinArgs: 2,
		MaxArgs: 2,
		Run: func(ctx context.Context, args []string) error {
			return a.withRegistry(ctx, func(local *registry.Local) error {
				meta, err := lookup(ctx, local, args[0], args[1])
				if err != nil {
					return err
				}
				address, err := local.Store.Resolve(meta)
				if err != nil {
					return err
				}
				file, size, err := local.Store.Open(address)
				if err != nil {
					if errors.Is(err, pkgmeta.ErrNotFound) {
						return pkgmeta.Wrap(pkgmeta.KindInconsistent, "show",
							fmt.Errorf("%s is catalogued but its artifact is missing: %w", meta.Key(), err))
					}
					return err
				}
				file.Close()
				digest, err := local.Store.Digest(address)
				if err != nil {
					return err
				}

				result := details{release: newRelease(meta), Path: address.String(), Size: size, BLAKE3: digest}
				if done, err := output.EmitJSON(a.stdout, result); done {
					return err
				}
				tw := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "name:\t%s\n", result.Name)
				fmt.Fprintf(tw, "version:\t%s\n", result.Version)
				fmt.Fprintf(tw, "filename:\t%s\n", result.Filename)
				fmt.Fprintf(tw, "location:\t%s\n", result.Location)
				fmt.Fprintf(tw, "path:\t%s\n", result.Path)
				fmt.Fprintf(tw, "size:\t%d\n", result.Size)
				fmt.Fprintf(tw, "blake3:\t%s\n", result.BLAKE3)
				fmt.Fprintf(tw, "purl:\t%s\n", result.PURL)
				return tw.Flush()
			})
		},
	}
}

func (a *app) publishCommand(name, summary string, replace bool) *cli.Command {
	var filename string
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   "pypiadmin " + name + " <name> <version> <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := a.flagSet(name)
			flagSet.StringVar(&filename, "filename", "", "artifact filename (default: the file's base name)")
			return flagSet
		},
		MinArgs: 3,
		MaxArgs: 3,
		Run: func(ctx context.Context, args []string) error {
			content, err := os.ReadFile(args[2])
			if err != nil {
				return pkgmeta.Wrap(pkgmeta.KindIOFailure, name, err)
			}
			upload := pkgmeta.Upload{Name: args[0], Version: args[1], Filename: filename, Content: content}
			if upload.Filename == "" {
				upload.Filename = filepath.Base(args[2])
			}

			return a.withRegistry(ctx, func(local *registry.Local) error {
				publish := local.Publish
				if replace {
					publish = local.Replace
				}
				meta, err := publish(ctx, upload)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s %s %s (%d bytes) at %s\n", pastTense(name), meta.Name, meta.Version, len(content), meta.Location)
				return nil
			})
		},
	}
}

func pastTense(verb string) string {
	if verb == "replace" {
		return "replaced"
	}
	return verb + "ed"
}

func (a *app) deleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Unpublish a release and remove its artifact",
		Usage:   "pypiadmin delete <name> <version> [flags]",
		Flags:   func() *pflag.FlagSet { return a.flagSet("delete") },
		MinArgs: 2,
		MaxArgs: 2,
		Run: func(ctx context.Context, args []string) error {
			return a.withRegistry(ctx, func(local *registry.Local) error {
				meta, found, err := local.DeleteVersion(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !found {
					return pkgmeta.NotFound("delete", "%s %s is not published", pkgmeta.NormalizeName(args[0]), args[1])
				}
				fmt.Fprintf(a.stdout, "deleted %s %s\n", meta.Name, meta.Version)
				return nil
			})
		},
	}
}

func (a *app) checkCommand() *cli.Command {
	return &cli.Command{
		Name:        "check",
		Summary:     "Report catalog rows whose artifact is missing",
		Description: "Walk the catalog and verify that every release's artifact exists in the store.\nExits non-zero if any is missing.",
		Flags:       func() *pflag.FlagSet { return a.flagSet("check") },
		Run: func(ctx context.Context, args []string) error {
			return a.withRegistry(ctx, func(local *registry.Local) error {
				metas, err := local.All(ctx)
				if err != nil {
					return err
				}
				var missing int
				for _, meta := range metas {
					address, err := local.Store.Resolve(meta)
					if err != nil {
						return err
					}
					present, err := local.Store.Exists(address)
					if err != nil {
						return err
					}
					if !present {
						missing++
						fmt.Fprintf(a.stdout, "missing\t%s %s\t%s\n", meta.Name, meta.Version, meta.Location)
					}
				}
				fmt.Fprintf(a.stdout, "checked %d releases, %d missing\n", len(metas), missing)
				if missing > 0 {
					return pkgmeta.Inconsistent("check", "%d of %d releases have no artifact", missing, len(metas))
				}
				return nil
			})
		},
	}
}

func (a *app) exportCommand() *cli.Command {
	return &cli.Command{
		Name:    "export",
		Summary: "Write the catalog to a CBOR snapshot",
		Usage:   "pypiadmin export <file|-> [flags]",
		Flags:   func() *pflag.FlagSet { return a.flagSet("export") },
		MinArgs: 1,
		MaxArgs: 1,
		Run: func(ctx context.Context, args []string) error {
			return a.withRegistry(ctx, func(local *registry.Local) error {
				if args[0] == "-" {
					_, err := catalog.Export(ctx, local.Catalog, a.stdout)
					return err
				}
				file, err := os.Create(args[0])
				if err != nil {
					return pkgmeta.Wrap(pkgmeta.KindIOFailure, "export", err)
				}
				count, err := catalog.Export(ctx, local.Catalog, file)
				if closeErr := file.Close(); err == nil && closeErr != nil {
					err = pkgmeta.Wrap(pkgmeta.KindIOFailure, "export", closeErr)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "exported %d releases to %s\n", count, args[0])
				return nil
			})
		},
	}
}

func (a *app) importCommand() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Summary:     "Add the rows of a CBOR snapshot to the catalog",
		Description: "Add the rows of a snapshot written by 'pypiadmin export'. Rows already present\nare skipped; rows whose release exists with a different location are reported\nand left alone. Artifacts are not copied.",
		Usage:       "pypiadmin import <file|-> [flags]",
		Flags:       func() *pflag.FlagSet { return a.flagSet("import") },
		MinArgs:     1,
		MaxArgs:     1,
		Run: func(ctx context.Context, args []string) error {
			var input io.Reader = os.Stdin
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return pkgmeta.Wrap(pkgmeta.KindIOFailure, "import", err)
				}
				defer file.Close()
				input = file
			}
			return a.withRegistry(ctx, func(local *registry.Local) error {
				result, err := catalog.Import(ctx, local.Catalog, input)
				for _, conflict := range result.Conflicts {
					fmt.Fprintf(a.stdout, "conflict\t%s %s\t%s\n", conflict.Name, conflict.Version, conflict.Location)
				}
				fmt.Fprintln(a.stdout, result.String())
				return err
			})
		},
	}
}

// lookup is Registry.Lookup with absence reported as NotFound.
func lookup(ctx context.Context, local *registry.Local, name, version string) (pkgmeta.Meta, error) {
	meta, found, err := local.Lookup(ctx, name, version)
	if err != nil {
		return pkgmeta.Meta{}, err
	}
	if !found {
		return pkgmeta.Meta{}, pkgmeta.NotFound("lookup", "%s %s is not published", pkgmeta.NormalizeName(name), version)
	}
	return meta, nil
}
