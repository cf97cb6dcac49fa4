package domain

import "time"

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Comment) OwnerID() string      { return c.CreatedBy }
func (c *Comment) SetOwnerID(id string) { c.CreatedBy = id }

// CommentPatch is a partial update. The post a comment belongs to cannot be
// changed.
type CommentPatch struct {
	Sender    *string
	Message   *string
	CreatedBy *string
}

func (p CommentPatch) RequestedCreator() (string, bool) {
	if p.CreatedBy == nil {
		return "", false
	}
	return *p.CreatedBy, true
}

func (p *CommentPatch) Normalize() {
	trimPtr(p.Sender)
	trimPtr(p.Message)
}

type CommentFilter struct {
	PostID string
	Sender string
}
