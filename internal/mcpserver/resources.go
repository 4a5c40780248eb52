package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "pdfrag://"

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "Ingested PDFs with page and chunk counts",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	if s.ports.FAQ != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "faq",
			Name:        "faq",
			Description: "Frequently asked questions grouped by category",
			MIMEType:    "application/json",
		}, s.handleFAQResource)
	}
}

type documentInfo struct {
	Source string `json:"source"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
	Note   string `json:"note,omitempty"`
}

func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Library.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]documentInfo, len(docs))
	for i, d := range docs {
		infos[i] = documentInfo{Source: d.Source, Pages: d.Pages, Chunks: d.Chunks, Note: d.Note}
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) handleFAQResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.FAQ)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
