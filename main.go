package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/discussion-bot/api"
	"github.com/brettboylen/discussion-bot/db"
	"github.com/brettboylen/discussion-bot/discussion"
	"github.com/brettboylen/discussion-bot/models"
	"github.com/brettboylen/discussion-bot/utils"
)

// process exit codes
const (
	exitOK         = 0
	exitUsage      = 1
	exitConfig     = 2
	exitAuth       = 3
	exitRunFailure = 1
)

const usageText = "invalid option.\nvalid options are -v --verbose"

// forumClient is a reddit client that can log in
type forumClient interface {
	discussion.Forum
	Authenticate(ctx context.Context, username, password string) error
}

// newForum builds the reddit client; replaced in tests
var newForum = func(creds *models.BotCredentials, log *logrus.Logger) forumClient {
	return api.NewRedditAPI(creds.ClientID, creds.ClientSecret, creds.UserAgent, 0, log)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes one posting run and returns the process exit code
func run(args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("discussion-bot", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.Usage = func() {}

	var verbose bool
	flags.BoolVar(&verbose, "v", false, "log progress at info level")
	flags.BoolVar(&verbose, "verbose", false, "log progress at info level")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(stderr, usageText)
		return exitUsage
	}

	log := setupLogger(verbose, stderr)

	// a path split across several arguments is glued back together
	sourceFile := strings.Join(flags.Args(), "")
	log.WithField("file", sourceFile).Info("Loading discussion config")

	config, err := utils.LoadDiscussionConfig(sourceFile, log)
	if err != nil {
		critical(log, err, "Failed to load discussion configuration file")
		return exitConfig
	}

	creds, err := utils.LoadBotCredentials(utils.BotConfigFile, log)
	if err != nil {
		critical(log, err, "Failed to load bot configuration file")
		return exitConfig
	}

	history, err := db.LoadHistory(config.PreviousSubmissions)
	if err != nil {
		critical(log, err, "Failed to load previous submissions file")
		return exitConfig
	}

	log.Info("Configs loaded successfully, attempting to authenticate with Reddit...")

	ctx := context.Background()
	forum := newForum(creds, log)

	if err := forum.Authenticate(ctx, creds.Username, creds.Password); err != nil {
		if errors.Is(err, api.ErrAuthentication) {
			critical(log, err, "Could not authenticate with Reddit. Likely an incorrect username/password")
			return exitAuth
		}
		critical(log, err, "Reddit authentication request failed")
		return exitRunFailure
	}

	log.WithFields(logrus.Fields{
		"username":  creds.Username,
		"subreddit": creds.Subreddit,
	}).Info("Successfully authenticated")

	poster := discussion.NewPoster(forum, log)
	submission, err := poster.Run(ctx, config, history)
	if err != nil {
		critical(log, err, "Discussion run failed")
		return exitRunFailure
	}

	log.WithFields(logrus.Fields{
		"id":  submission.ID,
		"url": submission.URL,
	}).Info("Discussion run complete")

	return exitOK
}

// setupLogger sets up the logger; only critical messages are shown unless verbose is set
func setupLogger(verbose bool, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	log.SetLevel(logrus.FatalLevel)
	if verbose {
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// critical logs at fatal level without exiting; run picks the exit code
func critical(log *logrus.Logger, err error, msg string) {
	entry := log.WithError(err)

	var loadErr *utils.LoadError
	if errors.As(err, &loadErr) {
		entry = entry.WithField("file", loadErr.Path)
	}

	entry.Log(logrus.FatalLevel, msg)
}
