package api

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/utils"
)

// serveUnderRoot serves the file at root/path, rejecting traversal outside
// root and directories. Shared by the frame and video routes, each scoped
// to its own root directory.
func serveUnderRoot(c *gin.Context, root string) {
	rel := c.Param("path")
	if rel == "" {
		respondBadRequest(c, "path is required")
		return
	}
	if strings.Contains(rel, "..") {
		respondBadRequest(c, "invalid path")
		return
	}

	fullPath := filepath.Join(root, rel)
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		respondError(c, errs.New(errs.NotFound, "file not found"))
		return
	}
	if err != nil {
		respondError(c, errs.Wrap(errs.StorageIO, "failed to stat file", err))
		return
	}
	if info.IsDir() {
		respondBadRequest(c, "cannot serve a directory")
		return
	}

	c.Header("Content-Type", utils.DetectMimeType(rel))
	c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.File(fullPath)
}

// ServeFrame handles GET /frames/*path.
func (h *Handlers) ServeFrame(c *gin.Context) {
	serveUnderRoot(c, h.framesDir)
}

// ServeVideo handles GET /videos/*path.
func (h *Handlers) ServeVideo(c *gin.Context) {
	serveUnderRoot(c, h.videosDir)
}
