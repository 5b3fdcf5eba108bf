package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"fridgemonster/internal/logging"
	"fridgemonster/internal/metrics"
	"fridgemonster/internal/pantry"
	"fridgemonster/internal/platform"
)

// AddIngredientRequest is the body of POST /pantry/ingredients.
type AddIngredientRequest struct {
	Name string `json:"name"`
}

// ScanResponse lists what a photo scan found and the pantry afterwards.
type ScanResponse struct {
	Detected []string            `json:"detected"`
	Added    []string            `json:"added"`
	Palette  []pantry.Ingredient `json:"palette"`
}

// GetPantry returns the ingredient palette with selection flags.
func (h *Handler) GetPantry(c *gin.Context) {
	c.JSON(http.StatusOK, h.Pantry.Palette())
}

// AddIngredient adds a typed-in ingredient and selects it.
func (h *Handler) AddIngredient(c *gin.Context) {
	var req AddIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %s", err.Error())})
		return
	}

	ing, added, err := h.Pantry.Add(req.Name)
	if err != nil {
		if errors.Is(err, pantry.ErrEmptyIngredient) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Ingredient name must not be empty"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredient": ing, "added": added})
}

// ToggleIngredient flips the selection of a palette ingredient.
func (h *Handler) ToggleIngredient(c *gin.Context) {
	name := c.Param("name")
	selected, err := h.Pantry.Toggle(name)
	if err != nil {
		if errors.Is(err, pantry.ErrUnknownIngredient) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "selected": selected})
}

// PantryMatches searches the catalog with the pantry selection.
func (h *Handler) PantryMatches(c *gin.Context) {
	h.search(c, h.Pantry.Selection(), metrics.SearchPantry)
}

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// multipartOverhead is the room left in a scan body for multipart framing
// around the image itself.
const multipartOverhead = 64 << 10

// Scan detects ingredients in an uploaded photo and adds each to the pantry.
func (h *Handler) Scan(c *gin.Context) {
	if h.Detector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingredient detection is not configured"})
		return
	}

	limit := h.Options.MaxUploadBytes + multipartOverhead
	if c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("get form err: %s", err.Error())})
		return
	}

	extension := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[extension] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Only JPEG, JPG, and PNG images are allowed."})
		return
	}
	if file.Size > h.Options.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open file: %w", err))
		return
	}
	defer src.Close()

	imageData, err := io.ReadAll(src)
	if err != nil {
		h.fail(c, fmt.Errorf("read image: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Options.ScanTimeout)
	defer cancel()

	detected, err := h.Detector.DetectIngredients(ctx, imageData)
	if err != nil {
		switch {
		case errors.Is(err, platform.ErrRateLimited):
			metrics.DetectorCalls.WithLabelValues(h.Options.DetectorName, "rate_limited").Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many scans, try again shortly"})
			return
		case errors.Is(err, platform.ErrDetectorUnavailable):
			metrics.DetectorCalls.WithLabelValues(h.Options.DetectorName, "unavailable").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingredient detection is temporarily unavailable"})
			return
		}
		metrics.DetectorCalls.WithLabelValues(h.Options.DetectorName, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "Ingredient detection timed out"})
			return
		}
		logging.Ctx(ctx).Error().Err(err).Str("detector", h.Options.DetectorName).Msg("ingredient detection failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("detector err: %s", err.Error())})
		return
	}
	metrics.DetectorCalls.WithLabelValues(h.Options.DetectorName, "ok").Inc()

	added := []string{}
	for _, name := range detected {
		ing, ok, err := h.Pantry.Add(name)
		if err != nil {
			continue
		}
		if ok {
			added = append(added, ing.Name)
		}
	}

	logging.Ctx(ctx).Info().
		Str("detector", h.Options.DetectorName).
		Strs("detected", detected).
		Strs("added", added).
		Msg("pantry scan")

	if detected == nil {
		detected = []string{}
	}
	c.JSON(http.StatusOK, ScanResponse{Detected: detected, Added: added, Palette: h.Pantry.Palette()})
}
