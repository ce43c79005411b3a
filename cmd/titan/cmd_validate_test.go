package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidateCmd(t *testing.T) {
	isolateHome(t)
	params := writeTestParams(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"setting", []string{"--setting", "basic"}, "Parameters are valid (1 definition(s))."},
		{"sweep", []string{"-s", "basic", "-p", params, "--sweep", "model.num_pop:40:60:10", "--build"}, "(2 definition(s))"},
		{"crossed sweeps", []string{"-s", "basic", "--sweep", "model.num_pop:40:60:10", "--sweep", "calibration.acquisition:0.5:1.5:0.5"}, "(4 definition(s))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"validate"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidateCmd_Errors(t *testing.T) {
	isolateHome(t)
	bad := writeFile(t, "bad.yml", "model:\n  num_pop: lots\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown sweep param", []string{"-s", "basic", "--sweep", "model.no_such:1:3"}, "model.no_such"},
		{"malformed sweep", []string{"-s", "basic", "--sweep", "model.num_pop:3"}, "invalid sweep"},
		{"empty sweep range", []string{"-s", "basic", "--sweep", "model.num_pop:60:40"}, "invalid sweep"},
		{"invalid value", []string{"-s", "basic", "-p", bad}, "model.num_pop"},
		{"missing file", []string{"-p", filepath.Join(t.TempDir(), "nope.yml")}, "nope.yml"},
		{"unknown setting", []string{"-s", "no-such-setting"}, "no-such-setting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"validate"}, tt.args...)...)
			require.ErrorContains(t, err, tt.want)
			assert.NotContains(t, out, "Parameters are valid")
		})
	}
}

func TestValidateCmd_Print(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "validate", "-s", "basic", "-p", writeTestParams(t), "--print")
	require.NoError(t, err)
	assert.NotContains(t, out, "Parameters are valid", "--print replaces the summary line")

	var printed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &printed))
	model, ok := printed["model"].(map[string]any)
	require.True(t, ok, "model section in printed params")
	assert.Equal(t, 60, model["num_pop"])
	assert.Contains(t, printed, "demographics", "setting values are merged in")
}

func TestValidateCmd_JSON(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "validate", "-s", "basic", "--sweep", "model.num_pop:40:60:10", "--build", "--json")
	require.NoError(t, err)

	var result struct {
		Valid       bool `json:"valid"`
		Definitions int  `json:"definitions"`
		Built       bool `json:"built"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Definitions)
	assert.True(t, result.Built)
}
