package db

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brettboylen/discussion-bot/models"
	"github.com/brettboylen/discussion-bot/utils"
)

// LoadHistory reads the history file at path.
// Read failures are reported as *utils.LoadError, same as any other config document.
func LoadHistory(path string) (*models.History, error) {
	history := &models.History{}
	if err := utils.LoadJSON(path, history); err != nil {
		return nil, err
	}

	if history.PreviousSubmissions == nil {
		history.PreviousSubmissions = []string{}
	}

	return history, nil
}

// SaveHistory overwrites the history file at path with history.
// note: this is a plain overwrite, a crash mid-write can truncate the file
func SaveHistory(path string, history *models.History) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file %s: %w", path, err)
	}

	return nil
}
