package model

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest holds 1-indexed offset pagination parameters
type PageRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Normalize fills in defaults and clamps the limit
func (p *PageRequest) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one slice of a listing plus its total size
type Page[T any] struct {
	Items []T
	Total int
	PageRequest
}
