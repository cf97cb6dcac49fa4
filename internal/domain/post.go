package domain

import (
	"strings"
	"time"
)

type Post struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Post) OwnerID() string      { return p.CreatedBy }
func (p *Post) SetOwnerID(id string) { p.CreatedBy = id }

// PostPatch is a partial update. Nil fields are left unchanged. CreatedBy is
// accepted only so a change attempt can be detected and refused.
type PostPatch struct {
	Sender    *string
	Message   *string
	CreatedBy *string
}

func (p PostPatch) RequestedCreator() (string, bool) {
	if p.CreatedBy == nil {
		return "", false
	}
	return *p.CreatedBy, true
}

// Normalize trims content fields in place.
func (p *PostPatch) Normalize() {
	trimPtr(p.Sender)
	trimPtr(p.Message)
}

// PostFilter narrows a post listing. Empty fields match everything.
type PostFilter struct {
	Sender string
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
