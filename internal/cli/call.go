package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/connectorkit/openapi2connector/internal/config"
	"github.com/connectorkit/openapi2connector/internal/connector"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

// CallConfig captures all inputs that influence the call command.
type CallConfig struct {
	Spec        string
	Endpoint    string
	All         bool
	BaseURL     string
	ProfilePath string
	ProfileName string
	Credentials map[string]string
	Parameters  map[string]string
	Body        string
	Timeout     time.Duration
}

var callRunner = runCall

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Issue a live HTTP call against an endpoint of an OpenAPI document",
		Long: "Issue a live HTTP call against one endpoint, or every endpoint with --all. " +
			"Credentials and parameter values come from flags or a profile file.",
		Example: strings.TrimSpace(`  openapi2connector call --spec petstore.yaml --endpoint "GET /pets/{petId}" --param petId=42
  openapi2connector call --spec petstore.yaml --all --profile-file profiles.yaml --profile staging`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCallConfig(cmd)
			if err != nil {
				return err
			}
			return callRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("spec", "", "Path or URL to the OpenAPI document")
	flags.String("endpoint", "", `Endpoint to call ("METHOD /path")`)
	flags.Bool("all", false, "Call every endpoint in the document")
	flags.String("base-url", "", "Override the server URL from the document")
	flags.String("profile-file", "", "YAML profile file with credentials and parameters")
	flags.String("profile", "", "Profile name within the profile file")
	flags.StringToString("cred", nil, "Credential value (repeatable, key=value)")
	flags.StringToString("param", nil, "Parameter value (repeatable, key=value)")
	flags.String("body", "", "JSON request body, or @file to read one")
	flags.Duration("timeout", 0, "Per-call timeout (document default when omitted)")

	return cmd
}

func resolveCallConfig(cmd *cobra.Command) (*CallConfig, error) {
	flags := cmd.Flags()
	cfg := CallConfig{
		Credentials: map[string]string{},
		Parameters:  map[string]string{},
	}

	var err error
	if cfg.Spec, err = flags.GetString("spec"); err != nil {
		return nil, err
	}
	if cfg.Endpoint, err = flags.GetString("endpoint"); err != nil {
		return nil, err
	}
	if cfg.All, err = flags.GetBool("all"); err != nil {
		return nil, err
	}
	if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
		return nil, err
	}
	if cfg.ProfilePath, err = flags.GetString("profile-file"); err != nil {
		return nil, err
	}
	if cfg.ProfileName, err = flags.GetString("profile"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Body, err = flags.GetString("body"); err != nil {
		return nil, err
	}
	creds, err := flags.GetStringToString("cred")
	if err != nil {
		return nil, err
	}
	params, err := flags.GetStringToString("param")
	if err != nil {
		return nil, err
	}

	cfg.Spec = strings.TrimSpace(cfg.Spec)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Spec == "" {
		return nil, newUsageError("call: --spec is required")
	}
	if cfg.Endpoint == "" && !cfg.All {
		return nil, newUsageError(`call: --endpoint "METHOD /path" or --all is required`)
	}
	if cfg.Endpoint != "" && cfg.All {
		return nil, newUsageError("call: --endpoint and --all are mutually exclusive")
	}
	if cfg.Endpoint != "" && len(strings.Fields(cfg.Endpoint)) != 2 {
		return nil, newUsageError(fmt.Sprintf("call: invalid --endpoint %q (want \"METHOD /path\")", cfg.Endpoint))
	}
	if (cfg.ProfilePath == "") != (cfg.ProfileName == "") {
		return nil, newUsageError("call: --profile-file and --profile must be set together")
	}

	if cfg.ProfilePath != "" {
		profile, err := config.LoadProfile(cfg.ProfilePath, cfg.ProfileName)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("call: %v", err))
		}
		profile.Merge(cfg.BaseURL, creds, params)
		cfg.BaseURL = profile.BaseURL
		cfg.Credentials = profile.Credentials
		cfg.Parameters = profile.Parameters
		if cfg.Timeout == 0 && profile.Timeout > 0 {
			cfg.Timeout = time.Duration(profile.Timeout) * time.Second
		}
	} else {
		cfg.Credentials = creds
		cfg.Parameters = params
	}

	return &cfg, nil
}

func runCall(ctx context.Context, cfg *CallConfig) error {
	var selection spec.Selection
	if cfg.Endpoint != "" {
		selection = spec.NewSelection([]string{cfg.Endpoint})
	}

	res, err := connector.ResolveEndpoints(ctx, cfg.Spec, selection, connector.Options{})
	if err != nil {
		var se *spec.Error
		if errors.As(err, &se) {
			return newUsageError(fmt.Sprintf("spec: %s", se.Message))
		}
		return err
	}
	if len(res.Endpoints) == 0 {
		if cfg.Endpoint != "" {
			return newUsageError(fmt.Sprintf("call: endpoint %q not found in document", cfg.Endpoint))
		}
		return newUsageError("call: document declares no endpoints")
	}

	body, err := parseBody(cfg.Body)
	if err != nil {
		return newUsageError(fmt.Sprintf("call: %v", err))
	}

	in := connector.CallInput{
		BaseURL:     cfg.BaseURL,
		Credentials: cfg.Credentials,
		Values:      cfg.Parameters,
		Body:        body,
		Timeout:     cfg.Timeout,
	}
	client := &http.Client{}

	if cfg.All {
		results := res.CallAll(ctx, client, in)
		failed := 0
		for _, r := range results {
			printOutcome(r.Endpoint, r.Outcome.StatusCode, r.Outcome.Body, r.Outcome.RawBody, r.Outcome.Err)
			if !r.Outcome.Success() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("call: %d of %d endpoints failed", failed, len(results))
		}
		return nil
	}

	in.Endpoint = res.Endpoints[0]
	out := res.IssueCall(ctx, client, in)
	printOutcome(in.Endpoint, out.StatusCode, out.Body, out.RawBody, out.Err)
	if out.Err != nil {
		return out.Err
	}
	if !out.Success() {
		return fmt.Errorf("call: %s %s returned %d", in.Endpoint.Method, in.Endpoint.Path, out.StatusCode)
	}
	return nil
}

func parseBody(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "@") {
		data, err := os.ReadFile(raw[1:])
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		raw = string(data)
	}
	var body any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("parse --body as JSON: %w", err)
	}
	return body, nil
}

func printOutcome(ep spec.Endpoint, status int, body any, raw []byte, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", ep.Method, ep.Path, err)
		return
	}
	fmt.Fprintf(os.Stdout, "%s %s: %d\n", ep.Method, ep.Path, status)
	switch {
	case body != nil:
		pretty, err := json.MarshalIndent(body, "", "  ")
		if err == nil {
			fmt.Fprintln(os.Stdout, string(pretty))
		}
	case len(raw) > 0:
		fmt.Fprintln(os.Stdout, string(raw))
	}
}
