package gateway

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Per-session file service. Every operation is confined to the
// session's workspace directory; names are sanitized to a restricted
// character set and checked against the extension allowlist before any
// filesystem access.

const maxUploadBytes = 20 << 20 // 20MB

var allowedExtensions = map[string]bool{
	".pa9": true,
	".txt": true,
	".png": true,
	".csv": true,
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename strips directory components and replaces anything
// outside [A-Za-z0-9._-] with underscores.
func sanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(filepath.Base(name), "_")
}

func extensionAllowed(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// workspaceFor resolves the session's workspace directory, writing the
// error response itself when the session is unknown.
func (r *Router) workspaceFor(c *gin.Context) (string, bool) {
	sess, err := r.api.GetSession(c.Param("id"))
	if err != nil {
		writeClientError(c, err)
		return "", false
	}
	return sess.WorkspaceDir, true
}

type fileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

func (r *Router) handleListFiles(c *gin.Context) {
	dir, ok := r.workspaceFor(c)
	if !ok {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}
	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !extensionAllowed(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (r *Router) handleUpload(c *gin.Context) {
	dir, ok := r.workspaceFor(c)
	if !ok {
		return
	}
	// Cut oversize uploads off mid-stream instead of spooling the whole
	// body first. The small slack covers multipart framing so a file of
	// exactly the cap still goes through; the exact limit is enforced on
	// fh.Size below.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+4096)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large (20MB max)"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large (20MB max)"})
		return
	}
	name := sanitizeFilename(fh.Filename)
	if !extensionAllowed(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}
	if err := c.SaveUploadedFile(fh, filepath.Join(dir, name)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File uploaded", "filename": name, "size": fh.Size})
}

func (r *Router) handleDownload(c *gin.Context) {
	dir, ok := r.workspaceFor(c)
	if !ok {
		return
	}
	name := sanitizeFilename(c.Param("name"))
	if !extensionAllowed(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.FileAttachment(path, name)
}

func (r *Router) handleDownloadLatest(c *gin.Context) {
	dir, ok := r.workspaceFor(c)
	if !ok {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}
	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !extensionAllowed(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = e.Name()
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No files in workspace"})
		return
	}
	c.FileAttachment(filepath.Join(dir, latest), latest)
}

func (r *Router) handleDownloadZip(c *gin.Context) {
	dir, ok := r.workspaceFor(c)
	if !ok {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "workspace.zip"))
	zw := zip.NewWriter(c.Writer)
	defer func() { _ = zw.Close() }()
	for _, e := range entries {
		if e.IsDir() || !extensionAllowed(e.Name()) {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		w, err := zw.Create(e.Name())
		if err != nil {
			_ = f.Close()
			return
		}
		_, _ = io.Copy(w, f)
		_ = f.Close()
	}
}

func (r *Router) handleDeleteFile(c *gin.Context) {
	dir, ok := r.workspaceFor(c)
	if !ok {
		return
	}
	name := sanitizeFilename(c.Param("name"))
	if !extensionAllowed(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type"})
		return
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if err := os.Remove(path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
}
