package gallery

import (
	"net/url"
	"time"
)

// View is the presentation form of a SavedImage used by the HTTP, MCP and
// CLI surfaces.
type View struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	CreatedAt     time.Time `json:"created_at"`
	Size          int64     `json:"size"`
	FormattedSize string    `json:"formatted_size"`
	FormattedDate string    `json:"formatted_date"`
	Age           string    `json:"age"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	Dimensions    string    `json:"dimensions,omitempty"`
	MIMEType      string    `json:"mime_type"`
	FileURL       string    `json:"file_url"`
}

func (s SavedImage) View() View {
	return View{
		Name:          s.Name,
		Path:          s.Path,
		CreatedAt:     s.CreatedAt,
		Size:          s.Size,
		FormattedSize: s.FormattedSize(),
		FormattedDate: s.FormattedDate(),
		Age:           s.Age(),
		Width:         s.Width,
		Height:        s.Height,
		Dimensions:    s.Dimensions(),
		MIMEType:      s.MIMEType(),
		FileURL:       "/files/" + url.PathEscape(s.Name),
	}
}

// Views converts every item, keeping order. Never nil.
func (l List) Views() []View {
	out := make([]View, 0, len(l))
	for _, it := range l {
		out = append(out, it.View())
	}
	return out
}
