package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/discussion-bot/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearRedditEnv(t *testing.T) {
	for _, key := range []string{
		"REDDIT_USERNAME", "REDDIT_PASSWORD", "REDDIT_CLIENT_ID",
		"REDDIT_CLIENT_SECRET", "REDDIT_USER_AGENT",
	} {
		t.Setenv(key, "")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test-value")

	value := getEnv("TEST_ENV_VAR", "default-value")
	assert.Equal(t, "test-value", value)

	value = getEnv("NON_EXISTENT_VAR", "default-value")
	assert.Equal(t, "default-value", value)
}

func TestLoadDiscussionConfig(t *testing.T) {
	path := writeFile(t, "weekly.json", `{
		"subreddit": "golang",
		"title": "Weekly thread MM/DD/YY",
		"body": "Talk about anything.",
		"startflag": "[](#START)",
		"endflag": "[](/START)",
		"previous_submissions": "weekly_history.json"
	}`)

	config, err := LoadDiscussionConfig(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "golang", config.Subreddit)
	assert.Equal(t, "Weekly thread MM/DD/YY", config.Title)
	assert.Equal(t, "Talk about anything.", config.Body)
	assert.Equal(t, "[](#START)", config.StartFlag)
	assert.Equal(t, "[](/START)", config.EndFlag)
	assert.Equal(t, "weekly_history.json", config.PreviousSubmissions)
}

func TestLoadDiscussionConfigAllowsComments(t *testing.T) {
	path := writeFile(t, "weekly.jsonc", `{
		// posted every monday
		"subreddit": "golang",
		"title": "Weekly thread",
	}`)

	config, err := LoadDiscussionConfig(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "golang", config.Subreddit)
}

func TestLoadDiscussionConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	_, err := LoadDiscussionConfig(path, testLogger())
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
	assert.Contains(t, err.Error(), "missing.json")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadJSONInvalidDocument(t *testing.T) {
	path := writeFile(t, "broken.json", `{"subreddit": `)

	var v map[string]interface{}
	err := LoadJSON(path, &v)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
}

func TestLoadBotCredentials(t *testing.T) {
	clearRedditEnv(t)
	path := writeFile(t, BotConfigFile, `{
		"username": "weeklybot",
		"password": "hunter2",
		"subreddit": "golang",
		"client_id": "id",
		"client_secret": "secret",
		"user_agent": "linux:discussion-bot:v1.0.0 (by /u/weeklybot)"
	}`)

	creds, err := LoadBotCredentials(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "weeklybot", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)
	assert.Equal(t, "golang", creds.Subreddit)
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, "secret", creds.ClientSecret)
}

func TestLoadBotCredentialsEnvOverrides(t *testing.T) {
	clearRedditEnv(t)
	t.Setenv("REDDIT_CLIENT_ID", "env-id")
	t.Setenv("REDDIT_CLIENT_SECRET", "env-secret")
	t.Setenv("REDDIT_USER_AGENT", "env-agent")
	t.Setenv("REDDIT_PASSWORD", "env-password")

	path := writeFile(t, BotConfigFile, `{"username": "weeklybot", "password": "file-password", "subreddit": "golang"}`)

	creds, err := LoadBotCredentials(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "weeklybot", creds.Username)
	assert.Equal(t, "env-password", creds.Password)
	assert.Equal(t, "env-id", creds.ClientID)
	assert.Equal(t, "env-secret", creds.ClientSecret)
	assert.Equal(t, "env-agent", creds.UserAgent)
}

func TestLoadBotCredentialsMissingAppCredentials(t *testing.T) {
	clearRedditEnv(t)
	path := writeFile(t, BotConfigFile, `{"username": "weeklybot", "password": "hunter2", "subreddit": "golang"}`)

	_, err := LoadBotCredentials(path, testLogger())
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, err.Error(), "client_id")
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c map[string]string)
		contains string
	}{
		{name: "Valid", mutate: func(c map[string]string) {}},
		{name: "Missing username", mutate: func(c map[string]string) { c["username"] = "" }, contains: "username"},
		{name: "Missing password", mutate: func(c map[string]string) { c["password"] = "" }, contains: "password"},
		{name: "Missing secret", mutate: func(c map[string]string) { c["client_secret"] = "" }, contains: "client_secret"},
		{name: "Missing user agent", mutate: func(c map[string]string) { c["user_agent"] = "" }, contains: "user_agent"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := map[string]string{
				"username":      "weeklybot",
				"password":      "hunter2",
				"client_id":     "id",
				"client_secret": "secret",
				"user_agent":    "agent",
			}
			tc.mutate(fields)

			err := validateCredentials(credentialsFrom(fields))
			if tc.contains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func credentialsFrom(fields map[string]string) *models.BotCredentials {
	return &models.BotCredentials{
		Username:     fields["username"],
		Password:     fields["password"],
		ClientID:     fields["client_id"],
		ClientSecret: fields["client_secret"],
		UserAgent:    fields["user_agent"],
	}
}
