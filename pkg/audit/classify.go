package audit

// IsBooleanFix reports whether fixAvailable was `true` or `false`.
func IsBooleanFix(f FixAvailable) bool {
	return f.Kind == FixAuto || f.Kind == FixNone
}

// IsObjectFix reports whether fixAvailable was an upgrade descriptor.
func IsObjectFix(f FixAvailable) bool {
	return f.Kind == FixUpgrade
}

// IsAnomalousFix reports whether fixAvailable matched neither shape.
// Exactly one of IsBooleanFix, IsObjectFix and IsAnomalousFix holds.
func IsAnomalousFix(f FixAvailable) bool {
	return !IsBooleanFix(f) && !IsObjectFix(f)
}

// IsTransitiveName reports whether a via entry names another vulnerable
// package rather than carrying an advisory.
func IsTransitiveName(e ViaEntry) bool {
	return e.Kind == ViaTransitive
}

// IsAdvisory reports whether a via entry carries an advisory.
func IsAdvisory(e ViaEntry) bool {
	return e.Kind == ViaAdvisory && e.Advisory != nil
}

// UniqueAdvisories returns the advisories of v in list order, skipping
// repeated titles.
func UniqueAdvisories(v Vulnerability) []*Advisory {
	var out []*Advisory
	seen := make(map[string]bool)
	for _, e := range v.Via.Entries {
		if !IsAdvisory(e) || seen[e.Advisory.Title] {
			continue
		}
		seen[e.Advisory.Title] = true
		out = append(out, e.Advisory)
	}
	return out
}

// UniqueTransitive returns the package names v depends on through its via
// list, in list order without repeats.
func UniqueTransitive(v Vulnerability) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range v.Via.Entries {
		if !IsTransitiveName(e) || seen[e.Package] {
			continue
		}
		seen[e.Package] = true
		out = append(out, e.Package)
	}
	return out
}
