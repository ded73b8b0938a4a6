package core

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.json
var openAPISpec []byte

// docsPage renders the interactive documentation UI against the embedded
// OpenAPI document.
const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>glucogate API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.onload = function () {
      window.ui = SwaggerUIBundle({ url: "` + PathOpenAPI + `", dom_id: "#swagger-ui" });
    };
  </script>
</body>
</html>
`

// ServeDocs serves the documentation UI.
func (s *Server) ServeDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsPage))
}

// ServeOpenAPISpec serves the embedded OpenAPI 3.0 document.
func (s *Server) ServeOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}
