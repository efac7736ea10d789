package engine

import (
	"fmt"
	"path/filepath"

	"cbird/pkg/media"
	"cbird/pkg/processor"
	"cbird/pkg/vdx"
)

// VerifyReport summarizes one Verify pass.
type VerifyReport struct {
	Checked        int
	DigestMismatch []string // media paths whose on-disk content no longer matches the stored digest
	VdxInvalid     []string // video paths whose .vdx sidecar failed Verify
	Missing        []string // media paths no longer present on disk
}

// Verify re-reads every stored file's content digest and, for videos,
// validates the .vdx sidecar, reporting any divergence without touching
// the store or indices. Grounded on original_source's Commands::verify,
// which re-hashes every selected file and flags stored/current digest
// mismatches (a file replaced without going through the indexer) rather
// than trusting the cached digest forever.
func (e *Engine) Verify() (VerifyReport, error) {
	all, err := e.store.All()
	if err != nil {
		return VerifyReport{}, fmt.Errorf("engine: load store: %w", err)
	}

	var report VerifyReport
	for _, m := range all {
		report.Checked++

		absPath := filepath.Join(e.root, m.Path)
		digest, err := processor.Digest(absPath)
		if err != nil {
			report.Missing = append(report.Missing, m.Path)
			continue
		}
		if digest != m.Digest {
			report.DigestMismatch = append(report.DigestMismatch, m.Path)
		}

		if m.Type != media.TypeVideo {
			continue
		}
		vdxPath := filepath.Join(e.store.VideoPath(), filepath.Base(m.Path)+".vdx")
		ok, err := vdx.Verify(vdxPath)
		if err != nil || !ok {
			report.VdxInvalid = append(report.VdxInvalid, m.Path)
		}
	}

	return report, nil
}
