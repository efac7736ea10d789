// Package processor turns a scanner.Candidate path into a fully hashed
// media.Media record plus the auxiliary descriptors each index backend
// needs (§4.G). Grounded on the reference's Media::makeDctHash/
// makeKeyPointHashes/makeVideoIndex pipeline order (original_source/src/media.cpp).
package processor

import (
	"context"
	"fmt"
	"path/filepath"

	"gocv.io/x/gocv"

	"cbird/pkg/colordesc"
	"cbird/pkg/media"
)

// Options bundles the still/video extraction knobs plus where .vdx
// sidecars are written.
type Options struct {
	Image    ImageOptions
	Video    VideoOptions
	VideoDir string // directory for .vdx sidecars, e.g. Store.VideoPath()
}

// DefaultOptions mirrors scanner.DefaultParams' processing-relevant
// fields.
func DefaultOptions(videoDir string) Options {
	return Options{Image: DefaultImageOptions(), Video: DefaultVideoOptions(), VideoDir: videoDir}
}

// Processor decodes scanner candidates into Media records.
type Processor struct {
	opts Options
}

// New returns a Processor configured with opts.
func New(opts Options) *Processor {
	return &Processor{opts: opts}
}

// Options returns the Processor's configuration, for callers (Engine's
// query path) that need to re-derive a descriptor the same way the
// original decode pass did (e.g. ImageOptions.ColorSeed/NumFeatures).
func (p *Processor) Options() Options { return p.opts }

// FullResult holds everything extracted from one file: the Media record
// plus the descriptors the D3/D4 index backends need. Only stills
// populate ColorDescriptor/CVDescriptors, since the reference only
// computes keypoint/color descriptors for images (original_source/src/media.cpp).
// CVDescriptors must be Closed by the caller once consumed.
type FullResult struct {
	Media           media.Media
	ColorDescriptor colordesc.Descriptor
	CVDescriptors   gocv.Mat
	HasDescriptors  bool
}

// ProcessFull decodes path according to mediaType and returns every
// artifact the index backends need. Video processing writes a .vdx
// sidecar under opts.VideoDir named after the source file, so repeated
// re-index runs of an unchanged file overwrite the same sidecar.
func (p *Processor) ProcessFull(ctx context.Context, path string, mediaType media.Type) (FullResult, error) {
	select {
	case <-ctx.Done():
		return FullResult{}, ctx.Err()
	default:
	}

	switch mediaType {
	case media.TypeImage:
		r, err := ProcessImage(path, p.opts.Image)
		if err != nil {
			return FullResult{}, err
		}
		return FullResult{
			Media:           r.Media,
			ColorDescriptor: r.ColorDescriptor,
			CVDescriptors:   r.CVDescriptors,
			HasDescriptors:  true,
		}, nil
	case media.TypeVideo:
		vdxPath := ""
		if p.opts.VideoDir != "" {
			vdxPath = filepath.Join(p.opts.VideoDir, filepath.Base(path)+".vdx")
		}
		m, err := ProcessVideo(path, vdxPath, p.opts.Video)
		if err != nil {
			return FullResult{}, err
		}
		return FullResult{Media: m}, nil
	default:
		return FullResult{}, fmt.Errorf("processor: unsupported media type %v", mediaType)
	}
}
