package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistration(t *testing.T) {
	assert.Equal(t, "kanoon", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)

	want := map[string]bool{
		"serve":    false,
		"ask":      false,
		"sessions": false,
		"ingest":   false,
		"version":  false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "command %s not registered", name)
	}
}

func TestSessionsSubcommands(t *testing.T) {
	want := []string{"list", "show", "new", "use", "delete", "clear"}
	byName := map[string]bool{}
	for _, c := range sessionsCmd.Commands() {
		byName[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, byName[name], "subcommand %s not registered", name)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	err := askCmd.Args(askCmd, nil)
	require.Error(t, err)

	err = askCmd.Args(askCmd, []string{"what", "is", "this"})
	require.NoError(t, err)
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "just now", formatTime(now.Add(-30*time.Second)))
	assert.Equal(t, "5 minutes ago", formatTime(now.Add(-5*time.Minute)))
	assert.Equal(t, "3 hours ago", formatTime(now.Add(-3*time.Hour)))
	assert.Equal(t, "2 days ago", formatTime(now.Add(-48*time.Hour)))

	old := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, old.Format("2006-01-02 15:04"), formatTime(old))
}
