package middleware

import (
	"compress/gzip"
	"strings"

	"github.com/gin-gonic/gin"
)

// gzipWriter decides on its first body write, once the handler has set
// the Content-Type, whether the response is compressed.
type gzipWriter struct {
	gin.ResponseWriter
	config  CompressConfig
	writer  *gzip.Writer
	decided bool
}

func (g *gzipWriter) decide() {
	if g.decided {
		return
	}
	g.decided = true

	h := g.Header()
	if h.Get("Content-Encoding") != "" || !g.config.accepts(h.Get("Content-Type")) {
		return
	}

	gz, err := gzip.NewWriterLevel(g.ResponseWriter, g.config.Level)
	if err != nil {
		return
	}
	g.writer = gz
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	g.decide()
	if g.writer == nil {
		return g.ResponseWriter.Write(data)
	}
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

func (g *gzipWriter) close() {
	if g.writer != nil {
		_ = g.writer.Close()
	}
}

// CompressConfig represents compression configuration
type CompressConfig struct {
	Level     int
	Types     []string
	Blacklist []string
}

func (c CompressConfig) accepts(contentType string) bool {
	for _, t := range c.Types {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// DefaultCompressConfig returns default compression configuration
func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		Level: gzip.DefaultCompression,
		Types: []string{
			"application/json",
			"text/plain",
		},
		Blacklist: []string{
			"/health",
			"/metrics",
		},
	}
}

// Compress gzips JSON and text responses for clients that accept it
func Compress(config CompressConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip compression for blacklisted paths
		for _, path := range config.Blacklist {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gw := &gzipWriter{ResponseWriter: c.Writer, config: config}
		c.Writer = gw
		defer gw.close()

		c.Next()
	}
}
