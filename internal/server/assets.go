package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFiles embed.FS

type assetServer struct {
	fileServer http.Handler
	fileSystem fs.FS
}

func newAssetServer() *assetServer {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return &assetServer{
		fileServer: http.FileServer(http.FS(sub)),
		fileSystem: sub,
	}
}

// ServeHTTP serves files only; directory listings and misses are 404s.
func (s *assetServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info, err := fs.Stat(s.fileSystem, r.URL.Path)
	if r.URL.Path == "" || err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	s.fileServer.ServeHTTP(w, r)
}
