// File: cmd/inspect.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/domscript/api/schemas"
	"github.com/xkilldash9x/domscript/internal/browser/charset"
	"github.com/xkilldash9x/domscript/internal/browser/profile"
)

func newProfilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in browser profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := profile.All()
			infos := make([]schemas.ProfileInfo, 0, len(all))
			for _, p := range all {
				features := make([]string, 0)
				for _, f := range p.Features() {
					features = append(features, string(f))
				}
				infos = append(infos, schemas.ProfileInfo{
					Key:       p.Key(),
					Vendor:    string(p.Vendor()),
					Version:   p.Version().String(),
					UserAgent: p.UserAgent(),
					Features:  features,
				})
			}
			return writeJSON(cmd.OutOrStdout(), infos)
		},
	}
}

func newClassesCmd(a *app) *cobra.Command {
	var profileKey string
	classesCmd := &cobra.Command{
		Use:   "classes",
		Short: "List the script classes exposed under a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("profile") {
				profileKey = a.cfg.Browser().Profile
			}
			p, err := profile.Lookup(profileKey)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(a.cfg.Browser(), a.logger)
			if err != nil {
				return err
			}
			descriptors, err := reg.DescriptorsFor(p)
			if err != nil {
				return err
			}
			infos := make([]schemas.ClassInfo, 0, len(descriptors))
			for _, d := range descriptors {
				infos = append(infos, schemas.ClassInfo{
					Name:      d.Name,
					Parent:    d.Parent,
					Ancestors: d.Ancestors,
					DOMTypes:  d.DOMTypes,
					Alias:     d.Alias,
					Members:   d.MemberNames(),
				})
			}
			return writeJSON(cmd.OutOrStdout(), infos)
		},
	}
	classesCmd.Flags().StringVarP(&profileKey, "profile", "p", "", "browser profile key (default from config)")
	return classesCmd
}

func newCharsetCmd(a *app) *cobra.Command {
	var (
		kind        string
		contentType string
		attribute   string
		fallback    string
	)
	charsetCmd := &cobra.Command{
		Use:   "charset [file]",
		Short: "Report which charset a resource decodes with and why",
		Long: `Reads a resource from the file argument (or stdin) and resolves its charset
with the precedence of --kind: document, script, stylesheet, xml or text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := charset.ParseKind(kind)
			if err != nil {
				return err
			}
			var data []byte
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read resource: %w", err)
			}
			if fallback == "" && k == charset.KindDocument {
				fallback = a.cfg.Browser().DefaultCharset
			}

			text, d := charset.DecodeInput(charset.Input{
				Kind:          k,
				HeaderCharset: charset.HeaderCharset(contentType),
				Data:          data,
				Attribute:     attribute,
				Default:       fallback,
			})
			if d.Encoding == nil {
				return errors.New("no usable encoding")
			}
			return writeJSON(cmd.OutOrStdout(), schemas.CharsetReport{
				Kind:      k.String(),
				Charset:   d.Name,
				Source:    d.Source.String(),
				BOMLength: d.BOMLength,
				Preview:   preview(text, 80),
			})
		},
	}
	flags := charsetCmd.Flags()
	flags.StringVarP(&kind, "kind", "k", "document", "resource kind")
	flags.StringVar(&contentType, "content-type", "", "Content-Type header the resource was served with")
	flags.StringVar(&attribute, "attribute", "", "charset attribute of the referencing element")
	flags.StringVar(&fallback, "default", "", "fallback charset")
	return charsetCmd
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
