package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/detector"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"

	// Storage backends register themselves.
	_ "github.com/kozaktomas/face-auth/internal/database/file"
	_ "github.com/kozaktomas/face-auth/internal/database/mariadb"
	_ "github.com/kozaktomas/face-auth/internal/database/postgres"
	_ "github.com/kozaktomas/face-auth/internal/database/sqlite"
)

// app bundles what every command needs.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	repo *identity.Repository
}

// openApp loads configuration, builds the logger and opens the identity repository.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := database.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, err
	}

	repo, _, err := identity.Open(ctx, store, identity.Options{
		DescriptorSize: cfg.Descriptor.Size,
		Logger:         log,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading identities: %w", err)
	}

	return &app{cfg: cfg, log: log, repo: repo}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.log.Warn("closing storage failed", "error", err)
	}
	a.log.Sync()
}

// newDetector returns the configured detector client, or nil when no URL is set.
func newDetector(cfg *config.Config) detector.Detector {
	if cfg.Detector.URL == "" {
		return nil
	}
	return detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxImageSize, cfg.Detector.Timeout)
}

// readFaceFlags returns the descriptor given by exactly one of --image,
// --descriptor or --descriptor-file. A nil descriptor means no face was detected.
func readFaceFlags(ctx context.Context, cmd *cobra.Command, a *app) (descriptor.Descriptor, error) {
	imagePath := mustGetString(cmd, "image")
	values := mustGetString(cmd, "descriptor")
	descriptorFile := mustGetString(cmd, "descriptor-file")

	set := 0
	for _, v := range []string{imagePath, values, descriptorFile} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("provide exactly one of --image, --descriptor or --descriptor-file")
	}

	switch {
	case values != "":
		return parseDescriptor(values)
	case descriptorFile != "":
		data, err := os.ReadFile(descriptorFile) //nolint:gosec // user-supplied path
		if err != nil {
			return nil, fmt.Errorf("reading descriptor file: %w", err)
		}
		return parseDescriptorJSON(data)
	default:
		det := newDetector(a.cfg)
		if det == nil {
			return nil, errors.New("DETECTOR_URL is not configured")
		}
		data, err := os.ReadFile(imagePath) //nolint:gosec // user-supplied path
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		return det.Detect(ctx, data)
	}
}

// parseDescriptor parses comma-separated float values.
func parseDescriptor(s string) (descriptor.Descriptor, error) {
	parts := strings.Split(s, ",")
	d := make(descriptor.Descriptor, 0, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("descriptor value %d: %w", i, err)
		}
		d = append(d, float32(v))
	}
	return d, nil
}

// parseDescriptorJSON parses a JSON array of numbers. JSON null means no face.
func parseDescriptorJSON(data []byte) (descriptor.Descriptor, error) {
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", descriptor.ErrInvalidDescriptor, err)
	}
	if values == nil {
		return nil, nil
	}
	return descriptor.Descriptor(values), nil
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
