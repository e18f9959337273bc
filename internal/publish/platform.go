package publish

import (
	"fmt"
	"strings"
)

type Platform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Platforms lists every supported destination in display order. Publishing
// always follows this order regardless of how the selection was given.
var Platforms = []Platform{
	{ID: "youtube", Name: "YouTube"},
	{ID: "instagram", Name: "Instagram"},
	{ID: "tiktok", Name: "TikTok"},
	{ID: "reddit", Name: "Reddit"},
	{ID: "twitter", Name: "Twitter/X"},
	{ID: "facebook", Name: "Facebook"},
	{ID: "linkedin", Name: "LinkedIn"},
}

// DefaultSelection is used when the caller names no platforms.
var DefaultSelection = []string{"Instagram", "YouTube"}

// Lookup resolves platform IDs or display names, case-insensitively. The
// result is deduplicated and in Platforms order.
func Lookup(names []string) ([]Platform, error) {
	want := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		p, ok := find(name)
		if !ok {
			return nil, fmt.Errorf("unknown platform %q (known: %s)", name, strings.Join(Names(), ", "))
		}
		want[p.ID] = true
	}
	var out []Platform
	for _, p := range Platforms {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Names returns the display names of all platforms.
func Names() []string {
	out := make([]string, len(Platforms))
	for i, p := range Platforms {
		out[i] = p.Name
	}
	return out
}

func find(name string) (Platform, bool) {
	for _, p := range Platforms {
		if strings.EqualFold(p.ID, name) || strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Platform{}, false
}
