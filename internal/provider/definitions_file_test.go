package provider_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider/memstore"
)

func writeDefinitions(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefinitions(t *testing.T) {
	path := writeDefinitions(t, `
version: "test-1"
providers:
  - name: archive_reports
    reportIdField: ref
    ownerFields: [owner]
    statusField: state
    createdAtField: created
  - name: reports
    batchField: batch_id
    reportIdField: report_id
    ownerFields: [user_id, owner_id]
`)

	version, defs, err := provider.LoadDefinitions(path)
	require.NoError(t, err)
	assert.Equal(t, "test-1", version)
	require.Len(t, defs, 2)
	assert.Equal(t, "archive_reports", defs[0].Name)
	assert.Equal(t, []string{"user_id", "owner_id"}, defs[1].OwnerFields)
	assert.True(t, defs[1].HasBatchField())

	reg, err := provider.Bind(defs, memstore.NewDB().StoreFor)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive_reports", "reports"}, reg.Names())
	assert.Equal(t, 1, reg.List()[0].Rank)
}

func TestLoadDefinitions_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown field":   "version: v\nproviders:\n  - name: a\n    reportIdField: r\n    ownerField: [o]\n",
		"missing version": "providers:\n  - name: a\n    reportIdField: r\n    ownerFields: [o]\n",
		"empty list":      "version: v\nproviders: []\n",
		"no report id":    "version: v\nproviders:\n  - name: a\n    ownerFields: [o]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := provider.LoadDefinitions(writeDefinitions(t, body))
			assert.Error(t, err)
		})
	}

	_, _, err := provider.LoadDefinitions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveDefinitions_BuiltIn(t *testing.T) {
	version, defs, err := provider.ResolveDefinitions("")
	require.NoError(t, err)
	assert.Equal(t, provider.DefinitionsVersion, version)
	assert.Equal(t, provider.CollectionReports, defs[0].Name)
}

func TestShippedDefinitionsFileMatchesBuiltIn(t *testing.T) {
	version, defs, err := provider.LoadDefinitions(filepath.Join("..", "..", "config", "providers.yaml"))
	require.NoError(t, err)
	assert.Equal(t, provider.DefinitionsVersion, version)
	assert.Equal(t, provider.Definitions(), defs)
}
