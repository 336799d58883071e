package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ministerio/escalas/core/song"
)

// catalog is the layout of an import file:
//
//	songs:
//	  - title: Grande é o Senhor
//	    artist: Adhemar de Campos
//	    key: G
type catalog struct {
	Songs []song.NewSong `yaml:"songs" toml:"songs"`
}

func (cli *commandLine) importSongsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "importsongs",
		Short: "Upsert songs by title and artist from a YAML or TOML catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				_ = cmd.Usage()
				return errHelp
			}
			created, updated, err := cli.importSongs(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d songs created, %d updated\n", created, updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "The catalog file (.yaml, .yml or .toml)")
	return cmd
}

func decodeCatalog(name string, data []byte) (catalog, error) {
	var c catalog
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return catalog{}, errors.Wrap(err, "decoding yaml")
		}
	case ".toml":
		md, err := toml.Decode(string(data), &c)
		if err != nil {
			return catalog{}, errors.Wrap(err, "decoding toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return catalog{}, errors.Errorf("decoding toml: unknown key %q", undecoded[0].String())
		}
	default:
		return catalog{}, errors.Errorf("unsupported catalog format %q", ext)
	}
	return c, nil
}

func (cli *commandLine) importSongs(file string) (created, updated int, err error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading catalog")
	}
	c, err := decodeCatalog(file, data)
	if err != nil {
		return 0, 0, err
	}

	ctx := context.Background()
	// nothing is written unless the whole catalog is valid
	for i := range c.Songs {
		if err = c.Songs[i].Validate(ctx, cli.validate); err != nil {
			return 0, 0, errors.Wrapf(err, "song #%d (%q)", i+1, c.Songs[i].Title)
		}
	}
	return cli.songSvc.Import(ctx, c.Songs)
}
