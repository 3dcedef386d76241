package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

func indexNames(t *testing.T, p provider.Provider) []string {
	t.Helper()
	var names []string
	for _, m := range ReportIndexModels(&p) {
		require.NotNil(t, m.Options)
		require.NotNil(t, m.Options.Name)
		names = append(names, *m.Options.Name)
	}
	return names
}

func TestReportIndexModels(t *testing.T) {
	defs := provider.Definitions()

	// reports: không có batch, hai field owner
	assert.Equal(t, []string{
		"reports_report_id", "reports_owner_user_id", "reports_owner_owner_id", "reports_scope",
	}, indexNames(t, defs[0]))

	urgent := defs[1]
	names := indexNames(t, urgent)
	assert.Contains(t, names, "urgent_reports_batch")

	legacy := defs[4]
	found := false
	for _, m := range ReportIndexModels(&legacy) {
		if *m.Options.Name == "legacy_asset_reports_owner_uploaded_by" {
			found = true
			assert.Equal(t, bson.D{{Key: "uploaded_by", Value: 1}, {Key: "created_at", Value: -1}}, m.Keys)
		}
	}
	assert.True(t, found)
}

func TestIsIndexExistsError(t *testing.T) {
	assert.False(t, isIndexExistsError(nil))
	assert.True(t, isIndexExistsError(errors.New("Index with name: x already exists with different options")))
	assert.False(t, isIndexExistsError(errors.New("not authorized")))
}
