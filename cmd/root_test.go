package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mangrove/internal/log"
)

const testConfig = `depths:
  - depth: 1
    types: [int, float]
  - depth: 2
    types: [list]
cache:
  expiration: 1m
tracing:
  enabled: false
`

const testPlan = `variables:
  - {depth: 1, type: int, names: [x, y], values: [1, 2]}
  - {depth: 2, type: list, names: [p, q], values: [[a], [b]]}
  - {depth: 0, type: str, names: [tag], values: [run-1]}
bindings:
  - {name: pairs, selectors: ["1:int", "2:list"], cardinality: 2}
groups:
  - {name: grid, selectors: ["1:int", "2:list"]}
`

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI with a temp config and returns stdout.
func run(t *testing.T, configBody string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o600))

	viper.Reset()
	resetFlags(rootCmd)
	t.Cleanup(func() {
		viper.Reset()
		resetFlags(rootCmd)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestApply_PrintsSummaryBindingsGroups(t *testing.T) {
	out, err := run(t, testConfig, "apply", "-f", writePlan(t, testPlan))
	require.NoError(t, err)

	var result struct {
		Summary struct {
			Configured   map[string]struct{ Depth int } `json:"configured"`
			Unconfigured map[string]string              `json:"unconfigured"`
		} `json:"summary"`
		Bindings map[string][][]struct{ Name string } `json:"bindings"`
		Groups   map[string]struct {
			Key    string `json:"key"`
			Tuples [][]any `json:"tuples"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	require.Equal(t, 2, result.Summary.Configured["p"].Depth)
	require.Equal(t, "str", result.Summary.Unconfigured["tag"])
	require.Len(t, result.Bindings["pairs"], 2)
	require.Equal(t, "y", result.Bindings["pairs"][1][0].Name)
	require.Equal(t, "q", result.Bindings["pairs"][1][1].Name)
	require.Equal(t, "1:int|2:list", result.Groups["grid"].Key)
	require.Len(t, result.Groups["grid"].Tuples, 4)
}

func TestApply_PlanErrorSurfaces(t *testing.T) {
	plan := writePlan(t, "variables:\n  - {depth: 2, type: int, names: [z]}\n")

	_, err := run(t, testConfig, "apply", "-f", plan)
	require.ErrorContains(t, err, "apply plan: variables[0]")
	require.ErrorContains(t, err, "type not allowed at depth")
}

func TestApply_RequiresFile(t *testing.T) {
	_, err := run(t, testConfig, "apply")
	require.ErrorContains(t, err, `required flag(s) "file" not set`)
}

func TestQuery_FiltersAndValues(t *testing.T) {
	plan := writePlan(t, testPlan)

	out, err := run(t, testConfig, "query", "-f", plan, "--depth", "1")
	require.NoError(t, err)
	require.JSONEq(t, `{"names": ["x", "y"]}`, out)

	out, err = run(t, testConfig, "query", "-f", plan, "--type", "str", "--values")
	require.NoError(t, err)
	require.JSONEq(t, `{"names": ["tag"], "values": {"tag": "run-1"}}`, out)

	out, err = run(t, testConfig, "query", "-f", plan, "--depth", "0", "--type", "int")
	require.NoError(t, err)
	require.JSONEq(t, `{"names": []}`, out)
}

func TestQuery_UnknownType(t *testing.T) {
	_, err := run(t, testConfig, "query", "-f", writePlan(t, testPlan), "--type", "complex")
	require.ErrorContains(t, err, "unknown type")
}

func TestTypes_ListsCatalog(t *testing.T) {
	out, err := run(t, testConfig, "types")
	require.NoError(t, err)
	require.JSONEq(t, `{
		"types": ["int", "float", "str", "bool", "list", "dict", "tensor", "opaque"],
		"depths": [
			{"depth": 0, "types": ["int", "float", "str", "bool", "tensor", "opaque"]},
			{"depth": 1, "types": ["int", "float"]},
			{"depth": 2, "types": ["list"]}
		]
	}`, out)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := run(t, "depths:\n  - {depth: 2, types: [int]}\n", "types")
	require.ErrorContains(t, err, "invalid configuration")
}

func TestDepthAdd_AppendsToConfig(t *testing.T) {
	out, err := run(t, testConfig, "depth", "add", "dict", "opaque")
	require.NoError(t, err)
	require.Contains(t, out, "configured depth 3")

	path := viper.ConfigFileUsed()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "types: [dict, opaque]")
	require.Contains(t, string(data), "expiration: 1m", "other sections are kept")
}

func TestDebugLogClosedAfterCommand(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	body := testConfig + "debug: true\nlog_path: " + logPath + "\nlog_level: info\n"

	_, err := run(t, body, "types")
	require.NoError(t, err)

	log.Info(log.CatConfig, "written after the command")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "[config] config loaded")
	require.NotContains(t, string(data), "written after the command")
}
