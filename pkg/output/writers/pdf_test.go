package writers

import (
	"bytes"
	"context"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditview/auditview/pkg/report"
)

// pdfResult holds a generated PDF and provides semantic assertions.
type pdfResult struct {
	t   *testing.T
	raw []byte
}

func generatePDF(t *testing.T, config PDFConfig, doc *report.Document) pdfResult {
	t.Helper()
	w := NewPDFWriter(config)
	w.noCompress = true // keep text searchable in raw bytes

	var buf bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &buf, doc))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	return pdfResult{t: t, raw: buf.Bytes()}
}

func (p pdfResult) assertValid() {
	p.t.Helper()
	assert.NoError(p.t, pdfapi.Validate(bytes.NewReader(p.raw), nil))
}

func (p pdfResult) pageCount() int {
	p.t.Helper()
	count, err := pdfapi.PageCount(bytes.NewReader(p.raw), nil)
	require.NoError(p.t, err)
	return count
}

func (p pdfResult) assertContains(text string) {
	p.t.Helper()
	assert.True(p.t, bytes.Contains(p.raw, []byte(text)), "PDF should contain %q", text)
}

func TestPDFWriter_Scenario(t *testing.T) {
	t.Parallel()

	app := &report.AppMeta{Name: "storefront", Version: "2.7.1"}
	p := generatePDF(t, PDFConfig{Author: "ci"}, loadDoc(t, "scenario.json", app))
	p.assertValid()
	assert.GreaterOrEqual(t, p.pageCount(), 3)
	p.assertContains("NPM Audit Report - storefront")
	p.assertContains("minimist")
	p.assertContains("Prototype Pollution")
	p.assertContains("CWE-1321")
	p.assertContains("Depends on vulnerable versions of")
	p.assertContains("https://www.npmjs.com/package/lodash")
}

func TestPDFWriter_Mixed(t *testing.T) {
	t.Parallel()

	p := generatePDF(t, PDFConfig{PageSize: "Letter"}, loadDoc(t, "mixed.json", nil))
	p.assertValid()
	p.assertContains("Advisory details unavailable")
	p.assertContains("which is a breaking change")
	p.assertContains("ghost-package")
}

func TestPDFWriter_Clean(t *testing.T) {
	t.Parallel()

	p := generatePDF(t, PDFConfig{}, loadDoc(t, "clean.json", nil))
	p.assertValid()
	assert.Equal(t, 1, p.pageCount())
	p.assertContains("Great! No vulnerabilities found.")
}

func TestHexRGB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		r, g, b int
	}{
		{"#ff2f2f", 255, 47, 47},
		{"6da4dd", 109, 164, 221},
		{"#xyz", 122, 121, 121},
		{"", 122, 121, 121},
	}
	for _, tt := range tests {
		r, g, b := hexRGB(tt.in)
		assert.Equal(t, [3]int{tt.r, tt.g, tt.b}, [3]int{r, g, b}, tt.in)
	}
}
