package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/connectorkit/openapi2connector/internal/connector"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

func newEndpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints an OpenAPI document declares",
		Example: strings.TrimSpace(`  openapi2connector endpoints --spec petstore.yaml
  openapi2connector endpoints --spec petstore.yaml --endpoints "GET /pets"`),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := cmd.Flags().GetString("spec")
			if err != nil {
				return err
			}
			if strings.TrimSpace(location) == "" {
				return newUsageError("endpoints: --spec is required")
			}
			selection, err := cmd.Flags().GetStringSlice("endpoints")
			if err != nil {
				return err
			}

			res, err := connector.ResolveEndpoints(cmd.Context(), location, spec.NewSelection(selection), connector.Options{})
			if err != nil {
				var se *spec.Error
				if errors.As(err, &se) {
					return newUsageError(fmt.Sprintf("spec: %s", se.Message))
				}
				return err
			}

			for _, ep := range res.Endpoints {
				line := fmt.Sprintf("%s %s", ep.Method, ep.Path)
				if ep.Summary != "" {
					line += " - " + ep.Summary
				}
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().String("spec", "", "Path or URL to the OpenAPI document")
	cmd.Flags().StringSlice("endpoints", nil, `Only list these endpoints ("METHOD /path" pairs)`)
	return cmd
}
