package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/engine"
	"github.com/spotter-social/spotter/automod/setstore"

	cli "github.com/urfave/cli/v2"
)

func loadCatalog(cctx *cli.Context) (*catalog.Catalog, error) {
	p := cctx.String("rules-file")
	if p == "" {
		return catalog.MustDefault(), nil
	}
	return catalog.LoadFile(p)
}

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "moderate text from the command line, with custom rules only",
	ArgsUsage: "[text]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "content-type",
			Value: string(catalog.ContentPost),
		},
		&cli.StringFlag{
			Name:  "author-role",
			Value: string(catalog.RoleMember),
		},
		&cli.StringFlag{
			Name:  "visibility",
			Value: string(catalog.VisibilityPublic),
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		cat, err := loadCatalog(cctx)
		if err != nil {
			return err
		}

		text := strings.Join(cctx.Args().Slice(), " ")
		if text == "" || text == "-" {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			text = string(raw)
		}

		detector := engine.DefaultDetector()
		if p := cctx.String("sets-file"); p != "" {
			sets := setstore.NewMemSetStore()
			if err := sets.LoadFromFile(p); err != nil {
				return err
			}
			detector, err = engine.LoadDetector(ctx, sets)
			if err != nil {
				return err
			}
		}

		cc := engine.ContentContext{
			ContentType: catalog.ContentType(cctx.String("content-type")),
			AuthorRole:  catalog.AuthorRole(cctx.String("author-role")),
			Visibility:  catalog.Visibility(cctx.String("visibility")),
		}
		ms := engine.Evaluate(cat, text, cc)
		ps := detector.Detect(text)
		res := engine.Compose(ms, nil, ps, false)

		out := struct {
			Verdict  engine.ModerationResult `json:"verdict"`
			Positive engine.PositiveSignal   `json:"positiveSignal"`
		}{res, ps}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var rulesCmd = &cli.Command{
	Name:  "rules",
	Usage: "sub-commands for the violation rule catalog",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:      "validate",
			Usage:     "check that a rule catalog file parses and every rule is valid",
			ArgsUsage: "<file>",
			Action: func(cctx *cli.Context) error {
				p := cctx.Args().First()
				if p == "" {
					return fmt.Errorf("need to provide rule file path as an argument")
				}
				cat, err := catalog.LoadFile(p)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d rules ok\n", p, cat.Len())
				return nil
			},
		},
		&cli.Command{
			Name:  "dump",
			Usage: "print the active rule catalog (compiled-in, or --rules-file)",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "yaml",
					Usage: "output YAML instead of JSON",
				},
			},
			Action: func(cctx *cli.Context) error {
				cat, err := loadCatalog(cctx)
				if err != nil {
					return err
				}
				b, err := catalog.Marshal(cat, cctx.Bool("yaml"))
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			},
		},
	},
}
