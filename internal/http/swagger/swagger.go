// Package swagger serves the API contract and a Swagger UI page for it.
package swagger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	apicontract "github.com/barguni/barguni-api/api-contract"
)

const (
	DocsPath     = "/docs"
	SpecYAMLPath = "/docs/openapi.yml"
	SpecJSONPath = "/docs/openapi.json"

	uiVersion = "5.29.3"
)

var page = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@{{.Version}}/swagger-ui-bundle.js" crossorigin></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: '#swagger-ui',
      deepLinking: true,
    });
  };
</script>
</body>
</html>
`))

// Register mounts the docs routes on r for doc.
func Register(r chi.Router, doc *openapi3.T) error {
	var html bytes.Buffer
	err := page.Execute(&html, struct {
		Title   string
		Version string
		SpecURL string
	}{
		Title:   doc.Info.Title,
		Version: uiVersion,
		SpecURL: SpecYAMLPath,
	})
	if err != nil {
		return fmt.Errorf("render swagger page: %w", err)
	}

	specJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal api contract: %w", err)
	}

	r.Get(DocsPath, serve("text/html; charset=utf-8", html.Bytes()))
	r.Get(SpecYAMLPath, serve("application/yaml", apicontract.GetSpecBytes()))
	r.Get(SpecJSONPath, serve("application/json", specJSON))

	return nil
}

func serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write(body)
	}
}
