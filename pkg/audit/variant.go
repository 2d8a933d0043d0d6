package audit

import (
	"github.com/go-json-experiment/json/jsontext"

	"github.com/auditview/auditview/pkg/jsonutil"
)

// FixKind discriminates the shapes of fixAvailable.
type FixKind uint8

const (
	// FixUnknown covers an absent fixAvailable and any shape other than a
	// boolean or an upgrade object.
	FixUnknown FixKind = iota

	// FixNone is `false`: no fix exists.
	FixNone

	// FixAuto is `true`: `npm audit fix` resolves it without breaking ranges.
	FixAuto

	// FixUpgrade is `{name, version, isSemVerMajor}`: resolving needs
	// `npm audit fix --force`.
	FixUpgrade
)

var fixKindNames = map[FixKind]string{
	FixUnknown: "unknown",
	FixNone:    "none",
	FixAuto:    "auto",
	FixUpgrade: "upgrade",
}

func (k FixKind) String() string {
	return fixKindNames[k]
}

// FixAvailable is the decoded fixAvailable field.
type FixAvailable struct {
	Kind FixKind

	// Set only for FixUpgrade.
	Name          string
	Version       string
	IsSemVerMajor bool
}

type fixObject struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	IsSemVerMajor bool   `json:"isSemVerMajor"`
}

// UnmarshalJSON resolves the shape once. Unrecognized shapes decode to
// FixUnknown without error.
func (f *FixAvailable) UnmarshalJSON(data []byte) error {
	*f = FixAvailable{}
	switch jsonutil.Kind(data) {
	case 't':
		f.Kind = FixAuto
	case 'f':
		f.Kind = FixNone
	case '{':
		var obj fixObject
		if err := jsonutil.Unmarshal(data, &obj); err != nil {
			return nil
		}
		*f = FixAvailable{Kind: FixUpgrade, Name: obj.Name, Version: obj.Version, IsSemVerMajor: obj.IsSemVerMajor}
	}
	return nil
}

// MarshalJSON writes the field back in npm's shape.
func (f FixAvailable) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FixAuto:
		return []byte("true"), nil
	case FixNone:
		return []byte("false"), nil
	case FixUpgrade:
		return jsonutil.Marshal(fixObject{Name: f.Name, Version: f.Version, IsSemVerMajor: f.IsSemVerMajor})
	}
	return []byte("null"), nil
}

// ViaKind discriminates the entries of a via list.
type ViaKind uint8

const (
	// ViaMalformed is an entry that is neither a name nor a decodable advisory.
	ViaMalformed ViaKind = iota

	// ViaAdvisory is an advisory object.
	ViaAdvisory

	// ViaTransitive is the name of another vulnerable package this one
	// depends on.
	ViaTransitive
)

// ViaEntry is one decoded element of a via list.
type ViaEntry struct {
	Kind     ViaKind
	Package  string    // ViaTransitive
	Advisory *Advisory // ViaAdvisory
}

// Via is the decoded via field. Sequence is false when npm sent anything
// other than an array; the report then shows "-" for the advisory count.
type Via struct {
	Sequence bool
	Entries  []ViaEntry
}

// Len returns the number of entries.
func (v Via) Len() int {
	return len(v.Entries)
}

// UnmarshalJSON resolves every entry once. Undecodable entries are kept as
// ViaMalformed so counts still match npm's list length.
func (v *Via) UnmarshalJSON(data []byte) error {
	*v = Via{}
	if jsonutil.Kind(data) != '[' {
		return nil
	}
	var raw []jsontext.Value
	if err := jsonutil.Unmarshal(data, &raw); err != nil {
		return nil
	}
	v.Sequence = true
	v.Entries = make([]ViaEntry, 0, len(raw))
	for _, item := range raw {
		v.Entries = append(v.Entries, decodeViaEntry(item))
	}
	return nil
}

func decodeViaEntry(item jsontext.Value) ViaEntry {
	switch item.Kind() {
	case '"':
		var name string
		if err := jsonutil.Unmarshal(item, &name); err != nil || name == "" {
			return ViaEntry{Kind: ViaMalformed}
		}
		return ViaEntry{Kind: ViaTransitive, Package: name}
	case '{':
		adv := new(Advisory)
		if err := jsonutil.Unmarshal(item, adv); err != nil {
			return ViaEntry{Kind: ViaMalformed}
		}
		return ViaEntry{Kind: ViaAdvisory, Advisory: adv}
	}
	return ViaEntry{Kind: ViaMalformed}
}

// MarshalJSON writes the list back in npm's shape. Malformed entries become
// null.
func (v Via) MarshalJSON() ([]byte, error) {
	if !v.Sequence {
		return []byte("null"), nil
	}
	out := make([]any, 0, len(v.Entries))
	for _, e := range v.Entries {
		switch e.Kind {
		case ViaTransitive:
			out = append(out, e.Package)
		case ViaAdvisory:
			out = append(out, e.Advisory)
		default:
			out = append(out, nil)
		}
	}
	return jsonutil.Marshal(out)
}
