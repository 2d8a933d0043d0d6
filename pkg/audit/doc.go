// Package audit decodes `npm audit --json` output and derives everything the
// report needs from it.
//
// # Pipeline
//
//	raw JSON ─► Parse ─► Report ─► Normalize ─► []Vulnerability ─► Aggregate ─► Counts
//
// Parse resolves every polymorphic field once. fixAvailable becomes a
// FixAvailable with an explicit FixKind and each via entry becomes a ViaEntry
// with an explicit ViaKind, so renderers switch on a discriminant instead of
// inspecting shapes. Fields that match no known shape decode to a neutral
// kind (FixUnknown, ViaMalformed) and are logged at debug level. They never
// fail the document.
//
// Parse fails only when the document itself is unusable: invalid JSON, a
// missing or non-object "vulnerabilities" or "metadata" member, or an npm
// error payload in place of a report.
//
// # Ordering
//
// Records keep npm's document order until Normalize applies a stable sort:
// severity rank (critical first) or directness. Severity order comes from
// finding.Severity.Rank, never from comparing the labels.
//
// Nothing in this package holds state between calls. A Report, its list
// and its Counts belong to the caller that built them.
package audit
