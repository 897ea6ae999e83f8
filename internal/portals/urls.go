// Package portals discovers marketplace comparables for a vehicle and
// reduces them to price statistics. Discovery is delegated to a
// web-search-capable agent; its freeform output never leaks past this
// package's parsing boundary.
package portals

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dverbeek/carwise/internal/model"
)

// BuildSearchURLs constructs source-specific search URLs for the target
// vehicle, ordered by ascending price where the portal supports it.
func BuildSearchURLs(attrs model.VehicleAttributes) []string {
	if attrs.Brand == "" {
		return nil
	}

	brand := slugify(attrs.Brand)
	modelName := slugify(attrs.Model)

	var urls []string

	// AutoScout24-style path layout with ascending price sort.
	as := fmt.Sprintf("https://www.autoscout24.nl/lst/%s", brand)
	if modelName != "" {
		as += "/" + modelName
	}
	asQuery := url.Values{"sort": {"price"}, "desc": {"0"}}
	if attrs.BuildYear > 0 {
		asQuery.Set("fregfrom", fmt.Sprintf("%d", attrs.BuildYear-1))
		asQuery.Set("fregto", fmt.Sprintf("%d", attrs.BuildYear+1))
	}
	urls = append(urls, as+"?"+asQuery.Encode())

	// Gaspedaal-style aggregated search.
	gp := fmt.Sprintf("https://www.gaspedaal.nl/%s", brand)
	if modelName != "" {
		gp += "/" + modelName
	}
	gpQuery := url.Values{"srt": {"pr-a"}}
	if attrs.BuildYear > 0 {
		gpQuery.Set("bmin", fmt.Sprintf("%d", attrs.BuildYear-1))
	}
	urls = append(urls, gp+"?"+gpQuery.Encode())

	return urls
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	return url.PathEscape(s)
}
