package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// page is one cached GET response together with the data version it was
// rendered from.
type page struct {
	version uint64
	status  int
	header  http.Header
	body    []byte
}

// recorder tees the response body into a buffer.
type recorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from store. A page rendered for an older
// version (a previous roster import) is treated as a miss and replaced.
func Cache(store *cache.Cache, ttl time.Duration, version func() uint64) gin.HandlerFunc {
	current := func() uint64 {
		if version == nil {
			return 0
		}
		return version()
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		v := current()
		if item, found := store.Get(key); found {
			if p := item.(page); p.version == v {
				for k, vals := range p.header {
					c.Writer.Header()[k] = vals
				}
				c.Writer.Header().Set("X-Cache", "HIT")
				c.Writer.WriteHeader(p.status)
				_, _ = c.Writer.Write(p.body)
				c.Abort()
				return
			}
			store.Delete(key)
		}

		rec := &recorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		if rec.Status() == http.StatusOK {
			store.Set(key, page{
				version: v,
				status:  rec.Status(),
				header:  rec.Header().Clone(),
				body:    rec.buf.Bytes(),
			}, ttl)
		}
	}
}
