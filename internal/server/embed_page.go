package server

import "html/template"

type embedPageData struct {
	Title  string
	Nonce  string
	Widget template.HTML
}

// embedPageTemplate is the standalone page served at /embed, meant to be
// framed by sites that cannot run the glue script themselves.
var embedPageTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <meta name="robots" content="noindex">
    <title>{{.Title}}</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        html, body { width: 100%; height: 100%; overflow: hidden; background: transparent; }
        body {
            display: flex;
            align-items: center;
            justify-content: center;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
        }
        video-provider-consent { display: block; width: 100%; }
    </style>
</head>
<body>
    {{.Widget}}
    <script src="/static/videoconsent.js" nonce="{{.Nonce}}"></script>
</body>
</html>
`))
