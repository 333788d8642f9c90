package webui

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"aipolish/internal/webui/handlers"
)

// IndexFile is the SPA entry document every unmatched page path falls back to.
const IndexFile = "index.html"

// ErrAssetsUnavailable is returned when the asset tree cannot serve the SPA.
var ErrAssetsUnavailable = errors.New("frontend assets unavailable")

// AssetOptions configures MountAssets.
type AssetOptions struct {
	// APIPrefix is never served by the fallback. Defaults to DefaultAPIPrefix.
	APIPrefix string
}

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".mjs":  "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".svg":  "image/svg+xml",
	".wasm": "application/wasm",
}

// MountAssets installs the SPA fallback on engine. It only fills gin's
// NoRoute slot, so registered API routes match first no matter which was
// mounted earlier.
func MountAssets(engine *gin.Engine, assets fs.FS, opts AssetOptions) error {
	if engine == nil {
		return errors.New("mount assets: nil engine")
	}
	if assets == nil {
		return fmt.Errorf("mount assets: %w", ErrAssetsUnavailable)
	}
	index, err := fs.ReadFile(assets, IndexFile)
	if err != nil {
		return fmt.Errorf("mount assets: read %s: %w: %w", IndexFile, ErrAssetsUnavailable, err)
	}

	h := &spaHandler{
		assets:    assets,
		index:     index,
		apiPrefix: normalizePrefix(opts.APIPrefix),
		files:     http.FileServer(http.FS(assets)),
		modTime:   time.Now(),
	}
	engine.NoRoute(h.serve)
	return nil
}

type spaHandler struct {
	assets    fs.FS
	index     []byte
	apiPrefix string
	files     http.Handler
	modTime   time.Time
}

func (h *spaHandler) isAPIPath(p string) bool {
	return p == h.apiPrefix || strings.HasPrefix(p, h.apiPrefix+"/")
}

func (h *spaHandler) serve(c *gin.Context) {
	reqPath := c.Request.URL.Path
	if h.isAPIPath(reqPath) {
		handlers.Fail(c, http.StatusNotFound, "not found")
		return
	}
	method := c.Request.Method
	if method != http.MethodGet && method != http.MethodHead {
		c.Header("Allow", "GET, HEAD")
		handlers.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+reqPath), "/")
	if name != "" && name != IndexFile {
		if info, err := fs.Stat(h.assets, name); err == nil && !info.IsDir() {
			if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
				c.Header("Content-Type", ct)
			}
			// NoRoute handlers start with a 404 recorded; reset it so the file
			// server's status wins.
			c.Status(http.StatusOK)
			req := c.Request.Clone(c.Request.Context())
			req.URL.Path = "/" + name
			h.files.ServeHTTP(c.Writer, req)
			c.Abort()
			return
		}
	}

	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Header("Content-Type", contentTypes[".html"])
	http.ServeContent(c.Writer, c.Request, IndexFile, h.modTime, bytes.NewReader(h.index))
	c.Abort()
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultAPIPrefix
	}
	return "/" + strings.Trim(prefix, "/")
}
