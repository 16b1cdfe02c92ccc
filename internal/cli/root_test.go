package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "retrace", cmd.Use)
	assert.Contains(t, cmd.Long, "trace")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"record", "replay", "inspect", "verify"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRecordCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	recordCmd, _, err := cmd.Find([]string{"record"})
	require.NoError(t, err)

	traceFlag := recordCmd.Flags().Lookup("trace")
	require.NotNil(t, traceFlag)
	assert.Equal(t, "", traceFlag.DefValue)

	bugFlag := recordCmd.Flags().Lookup("trigger-bug")
	require.NotNil(t, bugFlag)
	assert.Equal(t, "false", bugFlag.DefValue)

	tagFlag := recordCmd.Flags().Lookup("tag")
	require.NotNil(t, tagFlag)
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	traceFlag := replayCmd.Flags().Lookup("trace")
	require.NotNil(t, traceFlag)

	// No --trigger-bug on replay: crash reproduction comes from trace tags.
	assert.Nil(t, replayCmd.Flags().Lookup("trigger-bug"))
}

func TestInspectCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)

	traceFlag := inspectCmd.Flags().Lookup("trace")
	require.NotNil(t, traceFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "verify", "--trace", "x.retrace"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
