package discussion

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brettboylen/discussion-bot/db"
	"github.com/brettboylen/discussion-bot/models"
)

// Forum is the subset of the reddit API the poster needs
type Forum interface {
	Submit(ctx context.Context, subreddit, title, text string, save bool) (*models.Submission, error)
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	GetSubredditSettings(ctx context.Context, subreddit string) (*models.SubredditSettings, error)
	UpdateSubredditSettings(ctx context.Context, subreddit string, settings *models.SubredditSettings) error
}

// Poster creates discussion threads and links them from the sidebar
type Poster struct {
	forum Forum
	log   *logrus.Logger
	now   func() time.Time
}

// NewPoster creates a new poster
func NewPoster(forum Forum, log *logrus.Logger) *Poster {
	return &Poster{
		forum: forum,
		log:   log,
		now:   time.Now,
	}
}

// Run posts the thread described by config, points the sidebar at it and
// records it in history. history is only written once everything else succeeded.
func (p *Poster) Run(ctx context.Context, config *models.DiscussionConfig, history *models.History) (*models.Submission, error) {
	submission, err := p.CreateSubmission(ctx, config, history)
	if err != nil {
		return nil, err
	}

	if err := p.UpdateSidebar(ctx, config.Subreddit, submission, config.StartFlag, config.EndFlag); err != nil {
		return nil, err
	}

	history.Append(submission.ID)
	if err := db.SaveHistory(config.PreviousSubmissions, history); err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"id":           submission.ID,
		"history_file": config.PreviousSubmissions,
		"history_size": len(history.PreviousSubmissions),
	}).Info("Saved submission to history")

	return submission, nil
}

// CreateSubmission renders config's templates and submits the new thread.
// Every previous thread in history is fetched to build the back-links, so a deleted one fails the run.
func (p *Poster) CreateSubmission(ctx context.Context, config *models.DiscussionConfig, history *models.History) (*models.Submission, error) {
	p.log.Info("Creating a new submission...")
	now := p.now()

	previous := make([]*models.Submission, 0, len(history.PreviousSubmissions))
	for _, id := range history.PreviousSubmissions {
		submission, err := p.forum.GetSubmission(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch previous thread %s: %w", id, err)
		}
		previous = append(previous, submission)
	}

	title := RenderDate(config.Title, now)
	body := RenderBody(config.Body, now, previous)

	p.log.WithField("title", title).Info("New post")

	submission, err := p.forum.Submit(ctx, config.Subreddit, title, body, true)
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"title":     title,
		"subreddit": config.Subreddit,
		"url":       submission.URL,
	}).Info("New post submitted")

	return submission, nil
}

// UpdateSidebar replaces the link between the sidebar markers with a link to submission.
// A sidebar without the start marker is written back unchanged.
func (p *Poster) UpdateSidebar(ctx context.Context, subreddit string, submission *models.Submission, startFlag, endFlag string) error {
	p.log.WithField("subreddit", subreddit).Info("Updating sidebar")

	settings, err := p.forum.GetSubredditSettings(ctx, subreddit)
	if err != nil {
		return err
	}

	sidebar, ok := SpliceLink(settings.Description, startFlag, endFlag, FormatSidebarLink(submission))
	if ok {
		p.log.WithField("sidebar", sidebar).Info("Updated sidebar")
	} else {
		p.log.WithField("startflag", startFlag).Info("Flags not found.")
	}

	settings.Description = sidebar
	return p.forum.UpdateSubredditSettings(ctx, subreddit, settings)
}
