package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"sync"

	"dataset-studio/internal/filesystem"
	"dataset-studio/internal/logging"

	_ "image/gif"
	_ "image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decode support for the pure-Go path
)

const (
	// jpegQuality is the encode quality for served thumbnails.
	jpegQuality = 80

	// Decode guards for the pure-Go fallback path. A 50MP image expands to
	// roughly 200MB as RGBA; these caps keep a single hostile file from
	// taking the process down.
	maxImageDimension = 4096
	maxImagePixels    = 20_000_000
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes libvips. Call once at startup, before any rendering.
// govips is linked in at build time, so there is no runtime-absence case to
// report; per-image failures fall back to the pure-Go decode path instead.
func InitVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return
	}

	// Route vips log output through our logger at a level matching
	// LOG_LEVEL, configured before Startup() so init messages obey it too.
	vipsLevel := vips.LogLevelWarning
	if logging.GetLevel() == logging.LevelDebug {
		vipsLevel = vips.LogLevelInfo
	}
	vips.LoggingSettings(forwardVipsLog, vipsLevel)

	// Conservative memory settings: thumbnails are small and rendered one
	// at a time, a big operation cache buys nothing here.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
}

// forwardVipsLog maps glib log levels onto our logger. The levels are bit
// flags, not an ordered scale, so each one is matched explicitly.
func forwardVipsLog(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// Render produces thumbnail JPEG bytes for the image at path, fitted inside
// maxDim x maxDim.
func Render(path string, maxDim int) ([]byte, error) {
	img, err := loadResized(path, maxDim)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func loadResized(path string, maxDim int) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := loadWithVips(path, maxDim)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips load failed for %s: %v, falling back to pure-Go decode", filepath.Base(path), err)
	}
	return loadConstrained(path)
}

// loadWithVips decodes with shrink-on-load, which stays memory-flat even
// for very large source images.
func loadWithVips(path string, maxDim int) (image.Image, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(maxDim, maxDim, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

// loadConstrained is the pure-Go path: check dimensions cheaply first and
// downscale oversize images right after decoding.
func loadConstrained(path string) (image.Image, error) {
	width, height, err := imageDimensions(path)
	if err != nil {
		logging.Debug("Could not read dimensions of %s: %v", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	if width <= maxImageDimension && height <= maxImageDimension && width*height <= maxImagePixels {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height
	if width > maxImageDimension || height > maxImageDimension {
		if width > height {
			targetWidth = maxImageDimension
			targetHeight = height * maxImageDimension / width
		} else {
			targetHeight = maxImageDimension
			targetWidth = width * maxImageDimension / height
		}
	}
	if targetWidth*targetHeight > maxImagePixels {
		scale := float64(maxImagePixels) / float64(targetWidth*targetHeight)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// imageDimensions reads width and height without decoding pixel data.
func imageDimensions(path string) (int, int, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}
