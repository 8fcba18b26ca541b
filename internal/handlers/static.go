package handlers

import (
	"net/http"
	"os"
)

// AssetFileServer serves stored uploads from the filesystem store root
// without directory listings.
func AssetFileServer(root string) http.Handler {
	return http.StripPrefix("/assets/", http.FileServer(noListingFS{http.Dir(root)}))
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
