// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimpsehq/glimpse/api/schemas"
)

// resetRootFlags clears flag state left behind by a previous execution of the
// shared root command.
func resetRootFlags(t *testing.T) {
	t.Helper()
	if f := rootCmd.Flags().Lookup("version"); f != nil {
		require.NoError(t, f.Value.Set("false"))
		f.Changed = false
	}
}

// TestRootCmd_VersionFlag tests if the --version flag works correctly.
func TestRootCmd_VersionFlag(t *testing.T) {
	resetRootFlags(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

// TestRootCmd_NoArgs tests the behavior when no arguments are provided.
func TestRootCmd_NoArgs(t *testing.T) {
	resetRootFlags(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "natural-language UI instructions")
}

func TestRootCmd_RegistersPerceptionCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"locate", "extract", "assert"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestLocateCmd_Flags(t *testing.T) {
	c := newLocateCmd()
	require.NotNil(t, c.Flags().Lookup("deep-think"))
	require.NotNil(t, c.Flags().Lookup("vl-mode"))
	assert.Equal(t, "false", c.Flags().Lookup("deep-think").DefValue)
}

func TestBuildDemand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		fields  []string
		want    schemas.ExtractDemand
		wantErr bool
	}{
		{
			name: "free-form description",
			args: []string{"the total price"},
			want: schemas.TextDemand("the total price"),
		},
		{
			name:   "field pairs",
			fields: []string{"price=the item price", "currency=the currency code"},
			want: schemas.SchemaDemand(map[string]string{
				"price":    "the item price",
				"currency": "the currency code",
			}),
		},
		{
			name:   "field value is trimmed",
			fields: []string{" price = the item price "},
			want:   schemas.SchemaDemand(map[string]string{"price": "the item price"}),
		},
		{
			name:    "both forms rejected",
			args:    []string{"the price"},
			fields:  []string{"price=the item price"},
			wantErr: true,
		},
		{
			name:    "neither form rejected",
			wantErr: true,
		},
		{
			name:    "malformed field pair",
			fields:  []string{"price"},
			wantErr: true,
		},
		{
			name:    "empty field description",
			fields:  []string{"price= "},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := buildDemand(tc.args, tc.fields)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
