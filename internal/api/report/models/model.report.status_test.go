package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	done, todo := SubmitComplete, SubmitIncomplete

	tests := []struct {
		name       string
		externalID string
		assets     []SubmitState
		want       ReportStatus
	}{
		{"no external id, all complete", "", []SubmitState{done, done}, StatusNew},
		{"no external id, no assets", "", nil, StatusNew},
		{"blank external id", "   ", []SubmitState{todo}, StatusNew},
		{"external id, all complete", "R-100", []SubmitState{done, done}, StatusComplete},
		{"external id, one incomplete", "R-100", []SubmitState{done, todo}, StatusIncomplete},
		{"external id, no assets", "R-100", nil, StatusIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.externalID, tt.assets))
		})
	}
}

func TestParseSubmitState(t *testing.T) {
	complete := []interface{}{1, int32(1), int64(1), float64(1), true, "1", "true", " Complete ", "DONE", "submitted"}
	for _, v := range complete {
		assert.Equal(t, SubmitComplete, ParseSubmitState(v), "%#v", v)
	}
	incomplete := []interface{}{0, int32(0), int64(2), float64(0.5), false, "0", "", "pending", nil, []int{1}}
	for _, v := range incomplete {
		assert.Equal(t, SubmitIncomplete, ParseSubmitState(v), "%#v", v)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" sent ")
	assert.NoError(t, err)
	assert.Equal(t, StatusSent, st)
	assert.True(t, st.IsGuarded())
	assert.True(t, st.IsDirect())
	assert.False(t, st.IsDerived())

	_, err = ParseStatus("ARCHIVED")
	assert.Error(t, err)

	assert.True(t, StatusIncomplete.IsDerived())
	assert.False(t, StatusComplete.IsGuarded())
}

func TestReport_DerivedStatus(t *testing.T) {
	r := Report{
		ExternalID: "R-7",
		Assets:     []Asset{{Position: 0, SubmitState: SubmitComplete}, {Position: 1, SubmitState: SubmitComplete}},
	}
	assert.Equal(t, StatusComplete, r.DerivedStatus())

	r.Assets[1].SubmitState = SubmitIncomplete
	assert.Equal(t, StatusIncomplete, r.DerivedStatus())
	assert.Equal(t, []SubmitState{SubmitComplete, SubmitIncomplete}, r.SubmitStates())
}
