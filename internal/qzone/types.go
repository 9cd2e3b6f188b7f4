package qzone

// FeedItem is one post on the Qzone surface, as much of it as the agent
// needs in order to react: text, forwarded text, media references and the
// comment thread.
type FeedItem struct {
	ID                string    `json:"tid"`
	AuthorID          string    `json:"author_qq"`
	CreatedAt         string    `json:"created_time,omitempty"`
	Content           string    `json:"content"`
	ForwardedContent  string    `json:"rt_con,omitempty"`
	ImageURLs         []string  `json:"image_urls,omitempty"`
	ImageDescriptions []string  `json:"image_descriptions,omitempty"`
	VideoRefs         []string  `json:"videos,omitempty"`
	Comments          []Comment `json:"comments,omitempty"`
}

// Comment is one entry of a feed item's comment thread. ParentID is empty
// for top-level comments and holds the parent comment's ID for threaded
// replies.
type Comment struct {
	ID         string `json:"comment_tid"`
	AuthorID   string `json:"qq_account"`
	AuthorName string `json:"nickname"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_time,omitempty"`
	ParentID   string `json:"parent_tid,omitempty"`
}

// TopLevel returns the comments that start threads, leaving out replies
// nested under another comment.
func (f *FeedItem) TopLevel() []Comment {
	var out []Comment
	for _, c := range f.Comments {
		if c.ParentID == "" {
			out = append(out, c)
		}
	}
	return out
}
