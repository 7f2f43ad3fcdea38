package pagination

// Params contains page/limit pagination parameters
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 500
)

// Normalize clamps parameters into their valid ranges
func (p *Params) Normalize() {
	if p.Page < 1 {
		p.Page = defaultPage
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
}

// Bounds returns the [start, end) slice window for a collection of n items.
// A page past the end yields an empty window.
func (p Params) Bounds(n int) (int, int) {
	start := (p.Page - 1) * p.Limit
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
