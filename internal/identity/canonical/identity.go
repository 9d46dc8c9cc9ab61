package canonical

import "strings"

// Identity is the set of signals shared by every directory record.
// Records embed it and run Normalize at the write boundary.
type Identity struct {
	Name       string `json:"name"`
	Handle     string `json:"handle,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	Website    string `json:"website,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Normalize returns id with every identity signal in canonical form.
// It is pure and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(id Identity) Identity {
	out := Identity{
		Name:    CollapseSpaces(id.Name),
		Website: Host(id.Website),
		Phone:   CanonicalPhone(id.Phone),
	}

	out.Handle = Handle(id.Handle)
	if out.Handle == "" && id.ProfileURL != "" {
		if seg, ok := profileSegment(strings.TrimSpace(id.ProfileURL)); ok {
			out.Handle = Handle(seg)
		}
	}

	out.ProfileURL = ProfileURL(id.ProfileURL)
	if out.ProfileURL == "" && out.Handle != "" {
		out.ProfileURL = ProfileURL(out.Handle)
	}
	return out
}

// IsEmpty reports whether no identity signal is present.
func (id Identity) IsEmpty() bool {
	return strings.TrimSpace(id.Name) == "" && id.Handle == "" && id.ProfileURL == "" &&
		id.Website == "" && id.Phone == ""
}

// HasContact reports whether at least one non-name signal is present.
func (id Identity) HasContact() bool {
	return id.Handle != "" || id.ProfileURL != "" || id.Website != "" || id.Phone != ""
}

// CollapseSpaces trims s and folds internal whitespace runs to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
