package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointsRequiresSpec(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"endpoints"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUsage))
}

func TestEndpointsUnreadableSpecIsUsageError(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"endpoints", "--spec", filepath.Join(t.TempDir(), "missing.yaml")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUsage))
}

func TestEndpointsListsOperations(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "spec.json")
	require.NoError(t, os.WriteFile(specPath, []byte(`{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {
    "/pets": {
      "get": {"summary": "List pets", "responses": {"200": {"description": "ok"}}},
      "post": {"responses": {"201": {"description": "created"}}}
    }
  }
}`), 0o644))

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"endpoints", "--spec", specPath})
	require.NoError(t, cmd.Execute())
}
