package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"

	"github.com/brettboylen/discussion-bot/models"
)

// BotConfigFile is the fixed name of the bot credentials file, relative to the working directory
const BotConfigFile = "botconfig.json"

// LoadError reports a configuration document that could not be read or parsed
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load configuration file %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadJSON reads the JSON (or JSONC) document at path into v
func LoadJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	// hujson lets people keep comments next to long post templates
	ast, err := hujson.Parse(raw)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	ast.Standardize()

	if err := json.Unmarshal(ast.Pack(), v); err != nil {
		return &LoadError{Path: path, Err: err}
	}

	return nil
}

// LoadDiscussionConfig loads the discussion thread configuration
func LoadDiscussionConfig(path string, log *logrus.Logger) (*models.DiscussionConfig, error) {
	config := &models.DiscussionConfig{}
	if err := LoadJSON(path, config); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"file":      path,
		"subreddit": config.Subreddit,
	}).Info("Discussion config loaded")
	return config, nil
}

// LoadBotCredentials loads the bot account from path, then applies REDDIT_* overrides
// from the environment (and from .env in the working directory, if there is one)
func LoadBotCredentials(path string, log *logrus.Logger) (*models.BotCredentials, error) {
	creds := &models.BotCredentials{}
	if err := LoadJSON(path, creds); err != nil {
		return nil, err
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, &LoadError{Path: ".env", Err: err}
	}

	creds.Username = getEnv("REDDIT_USERNAME", creds.Username)
	creds.Password = getEnv("REDDIT_PASSWORD", creds.Password)
	creds.ClientID = getEnv("REDDIT_CLIENT_ID", creds.ClientID)
	creds.ClientSecret = getEnv("REDDIT_CLIENT_SECRET", creds.ClientSecret)
	creds.UserAgent = getEnv("REDDIT_USER_AGENT", creds.UserAgent)

	if err := validateCredentials(creds); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	log.WithFields(logrus.Fields{
		"file":     path,
		"username": creds.Username,
	}).Info("Bot credentials loaded")
	return creds, nil
}

// loadDotEnv loads envPath into the process environment; a missing file is fine
func loadDotEnv(envPath string) error {
	err := godotenv.Load(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// validateCredentials checks everything the password grant needs is present
func validateCredentials(creds *models.BotCredentials) error {
	if creds.Username == "" {
		return fmt.Errorf("username is required")
	}
	if creds.Password == "" {
		return fmt.Errorf("password is required")
	}

	// the app credentials normally live in .env rather than botconfig.json
	if creds.ClientID == "" {
		return fmt.Errorf("client_id (or REDDIT_CLIENT_ID) is required")
	}
	if creds.ClientSecret == "" {
		return fmt.Errorf("client_secret (or REDDIT_CLIENT_SECRET) is required")
	}

	// User-Agent required per API documentation
	if creds.UserAgent == "" {
		return fmt.Errorf("user_agent (or REDDIT_USER_AGENT) is required")
	}

	return nil
}
