package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpumon/internal/config"
	gerrors "github.com/rileyhilliard/gpumon/internal/errors"
)

// useConfigDir points clusterStore at dir for the duration of the test.
func useConfigDir(t *testing.T, dir string) *config.Store {
	t.Helper()
	orig := configDirFlag
	configDirFlag = dir
	t.Cleanup(func() { configDirFlag = orig })
	return clusterStore()
}

func TestIsUnknownCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unknown command error",
			err:  errors.New(`unknown command "foo" for "gpumon"`),
			want: true,
		},
		{
			name: "unknown flag error",
			err:  errors.New(`unknown flag: --foo`),
			want: true,
		},
		{
			name: "unknown shorthand flag",
			err:  errors.New(`unknown shorthand flag: 'z' in -z`),
			want: true,
		},
		{
			name: "other error",
			err:  errors.New("connection failed"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnknownCommandError(tt.err))
		})
	}
}

func TestExtractUnknownCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "standard cobra format",
			err:  errors.New(`unknown command "lab" for "gpumon"`),
			want: "lab",
		},
		{
			name: "name with hyphen",
			err:  errors.New(`unknown command "a100-pool" for "gpumon"`),
			want: "a100-pool",
		},
		{
			name: "no quotes returns empty",
			err:  errors.New("unknown command lab"),
			want: "",
		},
		{
			name: "unterminated quote returns empty",
			err:  errors.New(`unknown command "lab`),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUnknownCommand(tt.err))
		})
	}
}

func TestPrintError_Structured(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, gerrors.New(gerrors.ErrConfig, "No hosts defined", "Add at least one host"))

	out := buf.String()
	assert.Contains(t, out, "No hosts defined")
	assert.Contains(t, out, "Add at least one host")
}

func TestPrintError_SuggestsMonitorForClusterName(t *testing.T) {
	store := useConfigDir(t, t.TempDir())
	c := config.DefaultCluster("lab")
	c.Hosts = []string{"gpu-node1"}
	require.NoError(t, store.Save(c))

	var buf bytes.Buffer
	printError(&buf, errors.New(`unknown command "lab" for "gpumon"`))

	assert.Contains(t, buf.String(), "Did you mean: gpumon monitor lab")
}

func TestPrintError_UnknownCommandFallsBackToHelp(t *testing.T) {
	useConfigDir(t, t.TempDir())

	var buf bytes.Buffer
	printError(&buf, errors.New(`unknown command "nope" for "gpumon"`))

	out := buf.String()
	assert.Contains(t, out, `unknown command "nope"`)
	assert.Contains(t, out, "gpumon --help")
	assert.NotContains(t, out, "Did you mean")
}

func TestPrintError_PlainError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("boom"))

	assert.Contains(t, buf.String(), "boom")
	assert.NotContains(t, buf.String(), "--help")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"monitor", "list-clusters", "add-cluster", "remove-cluster", "doctor", "version", "completion"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootPersistentFlags(t *testing.T) {
	for _, name := range []string{"config-dir", "debug", "no-color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing flag --%s", name)
	}
}
