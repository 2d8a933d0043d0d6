package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/templateresolver"
)

const (
	versionURI        = "auditview://version"
	policyURIPrefix   = "auditview://policies/"
	policyURITemplate = policyURIPrefix + "{name}"
	mimeYAML          = "application/yaml"
)

func (s *Server) registerResources() {
	s.addVersionResource()
	s.addPolicyResource()
}

func (s *Server) addVersionResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         versionURI,
			Name:        "Version",
			Description: "auditview version, supported output formats and tools.",
			MIMEType:    defaults.ContentTypeJSON,
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			info := map[string]any{
				"name":    defaults.ToolName,
				"version": defaults.Version,
				"formats": chatFormats,
				"tools":   toolNames,
			}
			data, err := jsonutil.MarshalIndent(info, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshaling version info: %w", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: versionURI, MIMEType: defaults.ContentTypeJSON, Text: string(data)},
				},
			}, nil
		},
	)
}

func (s *Server) addPolicyResource() {
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			URITemplate: policyURITemplate,
			Name:        "Gate Policy",
			Description: "YAML source of a built-in gate policy (permissive, standard, strict).",
			MIMEType:    mimeYAML,
		},
		func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			uri := req.Params.URI
			name := strings.TrimPrefix(uri, policyURIPrefix)
			if name == "" || name == uri || strings.Contains(name, "/") {
				return nil, fmt.Errorf("policy name is required in URI (e.g. %sstrict)", policyURIPrefix)
			}
			data, _, err := templateresolver.ReadFile(name, templateresolver.KindPolicy)
			if err != nil {
				if errors.Is(err, templateresolver.ErrNotFound) {
					return nil, fmt.Errorf("no built-in policy named %q", name)
				}
				return nil, fmt.Errorf("reading policy %q: %w", name, err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: mimeYAML, Text: string(data)},
				},
			}, nil
		},
	)
}
