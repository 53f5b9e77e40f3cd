package docs

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"
)

//go:embed openapi.yaml
var specYAML []byte

// specETag identifies the embedded document.
var specETag = func() string {
	sum := blake2b.Sum256(specYAML)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// HandleSpec serves the OpenAPI document for the widget service.
// Conditional requests are answered with 304.
func HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", specETag)
	http.ServeContent(w, r, "openapi.yaml", time.Time{}, bytes.NewReader(specYAML))
}

// HandleDocs serves the Scalar reference page. Scalar loads from a CDN, so
// the page carries its own policy instead of the service-wide one.
func HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy",
		"default-src 'self'; "+
			"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; "+
			"font-src 'self' https://cdn.jsdelivr.net data:; "+
			"img-src 'self' data:; connect-src 'self'; frame-ancestors 'none';")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(docsHTML))
}

const docsHTML = `<!DOCTYPE html>
<html lang="en"><head>
  <title>videoconsent API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta name="robots" content="noindex">
</head><body>
  <script id="api-reference" data-url="/api/docs/openapi.yaml"
    data-configuration='{"hideDownloadButton":false,"hideClientButton":true,"defaultOpenAllTags":true}'></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`
