package quest

import (
	"github.com/sahilm/fuzzy"

	"github.com/studyquestapp/studyquest/questengine/activity"
)

// Template is a quest blueprint in the catalog. Daily sets are drawn from
// these; templates themselves never change at runtime.
type Template struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	RewardPoints int64         `json:"reward_points"`
	Action       activity.Kind `json:"action_kind"`
	Target       int           `json:"target"`
}

// Catalog is the fixed ordered pool of quest templates.
type Catalog struct {
	templates []Template
}

func NewCatalog(templates []Template) *Catalog {
	return &Catalog{templates: templates}
}

// DefaultCatalog returns the built-in quest pool.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Template{
		{ID: "q_note_author", Label: "Write a new note", RewardPoints: 50, Action: activity.KindCreateNote, Target: 1},
		{ID: "q_helpful_peer", Label: "Reply to 3 classmates", RewardPoints: 75, Action: activity.KindReplyToPeer, Target: 3},
		{ID: "q_deep_focus", Label: "Finish 2 focus sessions", RewardPoints: 80, Action: activity.KindCompleteFocusSession, Target: 2},
		{ID: "q_circle_joiner", Label: "Join a study circle", RewardPoints: 40, Action: activity.KindJoinCircle, Target: 1},
		{ID: "q_upvoter", Label: "Upvote 3 notes", RewardPoints: 30, Action: activity.KindUpvoteNote, Target: 3},
		{ID: "q_commenter", Label: "Comment on 2 notes", RewardPoints: 45, Action: activity.KindCommentNote, Target: 2},
		{ID: "q_profile_polish", Label: "Polish your profile", RewardPoints: 25, Action: activity.KindUpdateProfile, Target: 1},
		{ID: "q_link_sharer", Label: "Share a study link", RewardPoints: 35, Action: activity.KindShareLink, Target: 1},
	})
}

// Templates returns a copy of the pool in catalog order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Len returns the pool size.
func (c *Catalog) Len() int { return len(c.templates) }

// Get looks up a template by id.
func (c *Catalog) Get(id string) (Template, bool) {
	for _, t := range c.templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// searchItems implements fuzzy.Source over template labels.
type searchItems []Template

func (items searchItems) Len() int            { return len(items) }
func (items searchItems) String(i int) string { return items[i].Label }

// Search returns templates whose label fuzzy-matches query, best match
// first. An empty query returns the whole pool.
func (c *Catalog) Search(query string) []Template {
	if query == "" {
		return c.Templates()
	}

	matches := fuzzy.FindFrom(query, searchItems(c.templates))
	out := make([]Template, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.templates[m.Index])
	}
	return out
}
