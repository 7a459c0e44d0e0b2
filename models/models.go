package models

// DiscussionConfig describes one recurring discussion thread
type DiscussionConfig struct {
	Subreddit string `json:"subreddit"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	StartFlag string `json:"startflag"`
	EndFlag   string `json:"endflag"`

	// PreviousSubmissions is the path of the history file, not the history itself
	PreviousSubmissions string `json:"previous_submissions"`
}

// BotCredentials holds the account the bot posts as
type BotCredentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Subreddit string `json:"subreddit"`

	// reddit "script" app credentials, required by the password grant
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	UserAgent    string `json:"user_agent"`
}

// History is the ordered list of submission ids created so far, oldest first
type History struct {
	PreviousSubmissions []string `json:"previous_submissions"`
}

// Append records a newly created submission at the end of the history
func (h *History) Append(id string) {
	h.PreviousSubmissions = append(h.PreviousSubmissions, id)
}

// Submission is a post on the forum
type Submission struct {
	ID    string `json:"id"`
	Name  string `json:"name"` // fullname, ie t3_<id>
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SubredditSettings holds a subreddit's editable settings
type SubredditSettings struct {
	Description string
	// Raw keeps every setting as returned by reddit; writes resend these
	Raw map[string]interface{}
}
