package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/grademonitor-api/internal/projection"
	"github.com/noah-isme/grademonitor-api/internal/service"
	"github.com/noah-isme/grademonitor-api/pkg/export"
	"github.com/noah-isme/grademonitor-api/pkg/i18n"
)

var (
	projectFormat string
	projectLocale string
)

var projectCmd = &cobra.Command{
	Use:   "project <fixture.yaml>",
	Short: "Print the projection of a course fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadFixture(args[0])
		if err != nil {
			return err
		}
		locale := projectLocale
		if locale == "" {
			locale = f.Scope.Locale
		}
		bundle, err := bundleFor(cmd.Context(), locale)
		if err != nil {
			return err
		}
		in, err := projection.InputFromDataset(f.Dataset)
		if err != nil {
			return err
		}
		view := projection.NewState(in, bundle).View()
		return renderView(cmd.OutOrStdout(), projectFormat, view, bundle)
	},
}

func init() {
	projectCmd.Flags().StringVarP(&projectFormat, "format", "f", "table", "output format: table, csv or yaml")
	projectCmd.Flags().StringVarP(&projectLocale, "locale", "l", "", "locale override, e.g. de")
	rootCmd.AddCommand(projectCmd)
}

func bundleFor(ctx context.Context, locale string) (*i18n.Bundle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	catalog, err := i18n.Default("en")
	if err != nil {
		return nil, err
	}
	return catalog.Bundle(ctx, locale)
}

func renderView(w io.Writer, format string, view projection.View, l projection.Localizer) error {
	switch strings.ToLower(format) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("encode view: %w", err)
		}
		return enc.Close()
	case "csv":
		data, err := export.NewCSVExporter().Render(service.BuildExportTable(view, l))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		return writeTable(w, service.BuildExportTable(view, l))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeTable(w io.Writer, table export.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(table.Headers, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	fmt.Fprintln(tw)
	for _, field := range table.Summary {
		fmt.Fprintf(tw, "%s:\t%s\n", field.Label, field.Value)
	}
	return tw.Flush()
}
