package report

import (
	"github.com/auditview/auditview/pkg/manifest"
)

// AppMetaFrom builds the header block from package.json. Packages Used is
// the count of declared dependencies. It returns nil when m is nil, which
// omits the header. A non-empty nameOverride replaces the manifest name.
func AppMetaFrom(m *manifest.Manifest, nameOverride string) *AppMeta {
	if m == nil {
		return nil
	}
	meta := &AppMeta{
		Name:              m.Name,
		Version:           m.Version,
		Description:       m.Description,
		TotalDependencies: m.Declared(),
	}
	if nameOverride != "" {
		meta.Name = nameOverride
	}
	return meta
}
