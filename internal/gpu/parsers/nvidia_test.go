package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpumon/internal/gpu"
)

const twoA100s = `0, NVIDIA A100-SXM4-80GB, 45, 2048, 81920, 65, 220.5, 400.00
1, NVIDIA A100-SXM4-80GB, 98, 78000, 81920, 81, 390.1, 400.00
`

func TestParseGPUs(t *testing.T) {
	gpus, err := ParseGPUs(twoA100s)
	require.NoError(t, err)
	require.Len(t, gpus, 2)

	assert.Equal(t, 0, gpus[0].Index)
	assert.Equal(t, "NVIDIA A100-SXM4-80GB", gpus[0].Name)
	assert.Equal(t, gpu.Value(45), gpus[0].Utilization)
	assert.Equal(t, gpu.Value(2048), gpus[0].MemoryUsedMB)
	assert.Equal(t, gpu.Value(81920), gpus[0].MemoryTotalMB)
	assert.Equal(t, gpu.Value(65), gpus[0].TemperatureC)
	assert.Equal(t, gpu.Value(220.5), gpus[0].PowerDrawW)
	assert.Equal(t, gpu.Value(400), gpus[0].PowerLimitW)

	assert.Equal(t, 1, gpus[1].Index)
	assert.Equal(t, gpu.Value(98), gpus[1].Utilization)
	assert.Empty(t, gpus[1].UUID)
	assert.False(t, gpus[1].Busy)
}

func TestParseGPUs_Sentinels(t *testing.T) {
	tests := []struct {
		name   string
		output string
		check  func(t *testing.T, m gpu.GPUMetric)
	}{
		{
			name:   "power draw N/A",
			output: "0, Tesla K80, 12, 100, 11441, 40, [N/A], 149.00",
			check: func(t *testing.T, m gpu.GPUMetric) {
				assert.False(t, m.PowerDrawW.Valid)
				assert.Equal(t, gpu.Value(149), m.PowerLimitW)
				assert.Equal(t, gpu.Value(12), m.Utilization)
			},
		},
		{
			name:   "not supported utilization",
			output: "0, GeForce GT 710, [Not Supported], 300, 2048, 35, [Not Supported], [Not Supported]",
			check: func(t *testing.T, m gpu.GPUMetric) {
				assert.False(t, m.Utilization.Valid)
				assert.False(t, m.PowerDrawW.Valid)
				assert.False(t, m.PowerLimitW.Valid)
				assert.Equal(t, gpu.Value(35), m.TemperatureC)
			},
		},
		{
			name:   "bare N/A and empty field",
			output: "3, Jetson, N/A, , 4096, 50, N/A, N/A",
			check: func(t *testing.T, m gpu.GPUMetric) {
				assert.Equal(t, 3, m.Index)
				assert.False(t, m.Utilization.Valid)
				assert.False(t, m.MemoryUsedMB.Valid)
				assert.Equal(t, gpu.Value(4096), m.MemoryTotalMB)
			},
		},
		{
			name:   "unknown error",
			output: "0, H100, 10, 1, 2, [Unknown Error], 100, 700",
			check: func(t *testing.T, m gpu.GPUMetric) {
				assert.False(t, m.TemperatureC.Valid)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpus, err := ParseGPUs(tt.output)
			require.NoError(t, err)
			require.Len(t, gpus, 1)
			tt.check(t, gpus[0])
		})
	}
}

func TestParseGPUs_Empty(t *testing.T) {
	for _, in := range []string{"", "\n", "  \n\n  "} {
		gpus, err := ParseGPUs(in)
		require.NoError(t, err)
		assert.NotNil(t, gpus)
		assert.Empty(t, gpus)
	}
}

func TestParseGPUs_PreservesRowOrder(t *testing.T) {
	out := "2, A, 1, 1, 2, 30, 10, 20\n0, B, 1, 1, 2, 30, 10, 20\n2, C, 1, 1, 2, 30, 10, 20\n"
	gpus, err := ParseGPUs(out)
	require.NoError(t, err)
	require.Len(t, gpus, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{gpus[0].Name, gpus[1].Name, gpus[2].Name})
	assert.Equal(t, []int{2, 0, 2}, []int{gpus[0].Index, gpus[1].Index, gpus[2].Index})
}

func TestParseGPUs_Errors(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		wantKind ParseErrorKind
		wantLine int
	}{
		{"too few fields", "0, A100, 45, 2048", MalformedRow, 1},
		{"too many fields", "0, A100, 45, 2048, 81920, 65, 220, 400, extra", MalformedRow, 1},
		{"non-numeric index", "x, A100, 45, 2048, 81920, 65, 220, 400", InvalidValue, 1},
		{"non-numeric utilization", "0, A100, lots, 2048, 81920, 65, 220, 400", InvalidValue, 1},
		{"utilization over 100", "0, A100, 101, 2048, 81920, 65, 220, 400", InvalidValue, 1},
		{"negative utilization", "0, A100, -1, 2048, 81920, 65, 220, 400", InvalidValue, 1},
		{"used exceeds total", "0, A100, 45, 90000, 81920, 65, 220, 400", InvalidValue, 1},
		{"bad second line", "0, A, 1, 1, 2, 30, 10, 20\n\nNVIDIA-SMI has failed", MalformedRow, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpus, err := ParseGPUs(tt.output)
			require.Error(t, err)
			assert.Nil(t, gpus)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantKind, perr.Kind)
			assert.Equal(t, tt.wantLine, perr.Line)
			assert.NotEmpty(t, perr.Row)
		})
	}
}

func TestParseGPUs_UsedEqualsTotalIsValid(t *testing.T) {
	gpus, err := ParseGPUs("0, A100, 100, 81920, 81920, 65, 220, 400")
	require.NoError(t, err)
	require.Len(t, gpus, 1)
}

func TestParseErrorMessage(t *testing.T) {
	_, err := ParseGPUs("0, A100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed row")
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "expected 8 fields, got 2")
}

func TestParseError_LongInputIsClipped(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"long malformed row", strings.Repeat("x", 100000)},
		{"long index", strings.Repeat("9", 5000) + "x, A100, 45, 2048, 81920, 65, 220, 400"},
		{"long reading", "0, A100, " + strings.Repeat("z", 5000) + ", 2048, 81920, 65, 220, 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGPUs(tt.output)
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.LessOrEqual(t, len([]rune(perr.Row)), maxQuoted+3)
			assert.Less(t, len(err.Error()), 300)
		})
	}
}

func TestIsSentinel(t *testing.T) {
	for _, s := range []string{"N/A", "[N/A]", "[Not Supported]", "Not Supported", "[Unknown Error]", "", "  "} {
		assert.True(t, IsSentinel(s), "%q should be a sentinel", s)
	}
	for _, s := range []string{"0", "45.5", "abc"} {
		assert.False(t, IsSentinel(s), "%q should not be a sentinel", s)
	}
}

func TestParseUUIDs(t *testing.T) {
	out := "0, GPU-aaaa\n1, GPU-bbbb\ngarbage\nx, GPU-cccc\n"
	uuids := ParseUUIDs(out)
	assert.Equal(t, map[int]string{0: "GPU-aaaa", 1: "GPU-bbbb"}, uuids)
}

func TestParseComputeApps(t *testing.T) {
	out := "GPU-aaaa\nGPU-aaaa\n\nGPU-cccc\n"
	busy := ParseComputeApps(out)
	assert.Equal(t, map[string]bool{"GPU-aaaa": true, "GPU-cccc": true}, busy)

	assert.Empty(t, ParseComputeApps("No running processes found\n"))
}

func TestParseReport(t *testing.T) {
	out := twoA100s + "---\n0, GPU-aaaa\n1, GPU-bbbb\n---\nGPU-bbbb\n"

	gpus, err := ParseReport(out)
	require.NoError(t, err)
	require.Len(t, gpus, 2)

	assert.Equal(t, "GPU-aaaa", gpus[0].UUID)
	assert.False(t, gpus[0].Busy)
	assert.Equal(t, "GPU-bbbb", gpus[1].UUID)
	assert.True(t, gpus[1].Busy)
}

func TestParseReport_OptionalSectionsMissing(t *testing.T) {
	t.Run("metrics only", func(t *testing.T) {
		gpus, err := ParseReport(twoA100s)
		require.NoError(t, err)
		assert.Len(t, gpus, 2)
	})

	t.Run("empty uuid sections", func(t *testing.T) {
		gpus, err := ParseReport(twoA100s + "---\n---\n")
		require.NoError(t, err)
		require.Len(t, gpus, 2)
		assert.Empty(t, gpus[0].UUID)
	})

	t.Run("garbage in optional sections ignored", func(t *testing.T) {
		gpus, err := ParseReport(twoA100s + "---\nnot,a,uuid,row\n---\n[N/A]\n")
		require.NoError(t, err)
		assert.Len(t, gpus, 2)
	})
}

func TestParseReport_MetricsErrorPropagates(t *testing.T) {
	_, err := ParseReport("bad row\n---\n0, GPU-aaaa\n")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, MalformedRow, perr.Kind)
}

func TestQueryCommand(t *testing.T) {
	cmd := QueryCommand()
	assert.True(t, strings.HasPrefix(cmd, "sh -c 'nvidia-smi --query-gpu=index,name,utilization.gpu"))
	assert.True(t, strings.HasSuffix(cmd, "'"))
	assert.Equal(t, 2, strings.Count(cmd, "'"), "the sh script itself must not contain single quotes")
	assert.Contains(t, cmd, "--format=csv,noheader,nounits")
	assert.Contains(t, cmd, "--query-compute-apps=gpu_uuid")
	assert.Equal(t, 2, strings.Count(cmd, `echo "---"`))
}
