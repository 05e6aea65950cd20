package middleware

import (
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Suhaibinator/SOnion/pkg/common"
)

// StaticConfig configures the Static middleware.
type StaticConfig struct {
	// Index is served for directory requests. Defaults to "index.html".
	Index string

	// MaxAge sets Cache-Control: max-age in seconds when positive.
	MaxAge int

	// Hidden allows serving files whose name starts with a dot.
	Hidden bool

	// Defer runs the rest of the chain first and only serves a file when
	// nothing downstream set a Body.
	Defer bool
}

// Static serves files below root for GET and HEAD requests. On a hit the open file
// becomes the Context Body; the server shell streams and closes it. Misses, other
// methods and hidden files fall through to next.
func Static(root string, config StaticConfig) Middleware {
	if config.Index == "" {
		config.Index = "index.html"
	}
	dir := http.Dir(root)

	return func(c *common.Context, next common.Next) error {
		if config.Defer {
			if err := next(); err != nil {
				return err
			}
			if c.Body != nil || c.Status() != http.StatusOK {
				return nil
			}
			_, err := serveFile(c, dir, config)
			return err
		}

		served, err := serveFile(c, dir, config)
		if err != nil || served {
			return err
		}
		return next()
	}
}

// serveFile reports whether a file was attached to the Context.
func serveFile(c *common.Context, dir http.Dir, config StaticConfig) (bool, error) {
	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		return false, nil
	}

	name := c.URL()
	if strings.HasSuffix(name, "/") {
		name += config.Index
	}
	if !config.Hidden && hasHiddenSegment(name) {
		return false, nil
	}

	// Missing files, permission errors and invalid names all fall through.
	f, err := dir.Open(name)
	if err != nil {
		return false, nil
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return false, err
	}

	if info.IsDir() {
		f.Close()
		name = path.Join(name, config.Index)
		if f, err = dir.Open(name); err != nil {
			return false, nil
		}
		if info, err = f.Stat(); err != nil || info.IsDir() {
			f.Close()
			return false, err
		}
	}

	ctype := mime.TypeByExtension(filepath.Ext(info.Name()))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	c.Set("Content-Type", ctype)
	c.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	if config.MaxAge > 0 {
		c.Set("Cache-Control", "max-age="+strconv.Itoa(config.MaxAge))
	}

	// net/http discards the payload of HEAD responses
	c.Body = f
	return true, nil
}

func hasHiddenSegment(name string) bool {
	for _, seg := range strings.Split(name, "/") {
		if len(seg) > 1 && seg[0] == '.' {
			return true
		}
	}
	return false
}
