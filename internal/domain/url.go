package domain

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParam reports query keys that only carry campaign tracking.
func trackingParam(k string) bool {
	k = strings.ToLower(k)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	switch k {
	case "gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "mkt_tok", "refid", "trackingid":
		return true
	}
	return false
}

// CanonicalURL lowercases scheme and host, drops the fragment and tracking
// parameters and sorts the query, so one posting has one URL.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if trackingParam(k) {
			q.Del(k)
		}
	}
	if strings.Contains(u.Host, "linkedin.com") {
		keep := url.Values{}
		if v := q.Get("currentJobId"); v != "" {
			keep.Set("currentJobId", v)
		}
		q = keep
	}
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// cleanLocation drops "Location:" labels and repeated comma parts.
func cleanLocation(loc string) string {
	for _, label := range []string{"Location:", "Locations:", "LOCATIONS:", "Lokalizacja:"} {
		loc = strings.TrimPrefix(loc, label)
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range strings.Split(loc, ",") {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// inferArrangement guesses remote/hybrid/on-site from free text; "" if
// nothing says.
func inferArrangement(texts ...string) string {
	blob := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(blob, "hybrid"):
		return "hybrid"
	case strings.Contains(blob, "remote"), strings.Contains(blob, "zdaln"):
		return "remote"
	case strings.Contains(blob, "on-site"), strings.Contains(blob, "onsite"), strings.Contains(blob, "on site"), strings.Contains(blob, "stacjonarn"):
		return "on-site"
	}
	return ""
}
