package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		sc, err := LoadScenario(path)
		require.NoError(t, err, "loading %s", path)

		t.Run(sc.Name, func(t *testing.T) {
			res := RunWithGolden(t, sc)
			assert.Equal(t, res.Recorded, res.Replayed,
				"replayed outcomes must equal recorded outcomes")
		})
	}
}

func TestRetryScenarioIdentity(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "retry-success.yaml"))
	require.NoError(t, err)

	res, err := Run(sc)
	require.NoError(t, err)

	require.Equal(t, 2, res.Trace.Len())
	first, second := res.Trace.Interactions[0], res.Trace.Interactions[1]

	assert.Equal(t, first.CallID, second.CallID, "retry attempts share a call id")
	assert.Equal(t, 0, first.AttemptIndex)
	assert.Equal(t, 1, second.AttemptIndex)
	assert.Equal(t, first.Fingerprint, second.Fingerprint,
		"identical requests fingerprint identically")
	assert.False(t, first.Outcome.IsSuccess())
	assert.True(t, second.Outcome.IsSuccess())
}

func TestScenarioTagsPersist(t *testing.T) {
	sc := &Scenario{
		Name: "tagged",
		Tags: []string{"nightly", "smoke"},
		Steps: []Step{{
			Method: "GET",
			Target: "https://api.test/ping",
			Outcome: StepOutcome{
				Case:   "Success",
				Status: 204,
			},
		}},
	}

	res, err := Run(sc)
	require.NoError(t, err)

	assert.True(t, res.Trace.Meta.HasTag("nightly"))
	assert.True(t, res.Trace.Meta.HasTag("smoke"))
	assert.False(t, res.Trace.Meta.HasTag("release"))
}

func TestLoadScenarioRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", "steps:\n  - method: GET\n    target: x\n    outcome: {case: Success}\n"},
		{"no steps", "name: empty\n"},
		{"missing target", "name: bad\nsteps:\n  - method: GET\n    outcome: {case: Success}\n"},
		{"unknown case", "name: bad\nsteps:\n  - method: GET\n    target: x\n    outcome: {case: Maybe}\n"},
		{"expect length mismatch", "name: bad\nsteps:\n  - method: GET\n    target: x\n    outcome: {case: Success}\nexpect:\n  call_ids: [0, 1]\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			writeFile(t, path, tc.yaml)

			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
