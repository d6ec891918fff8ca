// Package openapi serves the edge's OpenAPI document. The document is
// embedded and validated once at startup so a broken contract fails the
// deploy instead of the first reader.
package openapi

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed document.json
var document []byte

// Service holds the validated document.
type Service struct {
	raw []byte
}

// NewService loads and validates the embedded document.
func NewService() (*Service, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	return &Service{raw: document}, nil
}

// Document returns the raw JSON document.
func (s *Service) Document() []byte {
	return s.raw
}

// Handler serves the document at its mount point.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.raw)
	})
}
