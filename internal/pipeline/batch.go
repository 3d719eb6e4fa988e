package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ugckit/ugckit/internal/config"
	"github.com/ugckit/ugckit/internal/script"
)

// ListAvatarClips returns the .mp4 files in dir, sorted by name.
func ListAvatarClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading avatar directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// matchByScriptID keeps the clips whose file stem starts with the
// script ID, ignoring case. Clip naming like A1_seg1.mp4 pairs files
// with script A1.
func matchByScriptID(paths []string, scriptID string) []string {
	want := strings.ToUpper(scriptID)
	var matched []string
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if strings.HasPrefix(strings.ToUpper(stem), want) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Batch composes every script against clips from avatarDir, matched by
// script-ID prefix. A single unmatched or failing script never stops
// the batch; each outcome lands in its BatchResult slot. When only one
// script is given, unmatched clips fall back to the whole directory.
func (p *Pipeline) Batch(ctx context.Context, scripts []*script.Script, avatarDir, outputDir string, opts BatchOptions) ([]BatchResult, error) {
	if len(scripts) == 0 {
		return nil, config.Errorf("scripts", "no scripts to compose")
	}

	all, err := ListAvatarClips(avatarDir)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, config.Errorf("avatars", "no .mp4 files in %s", avatarDir)
	}

	if outputDir == "" {
		outputDir = p.cfg.Paths.Output
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	results := make([]BatchResult, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, sc := range scripts {
		i, sc := i, sc

		matched := matchByScriptID(all, sc.ID)
		if len(matched) == 0 && len(scripts) == 1 {
			matched = all
		}
		if len(matched) == 0 {
			p.logger.Warn().Str("script", sc.ID).Msg("no matching avatar clips, skipping")
			results[i] = BatchResult{ScriptID: sc.ID, Skipped: true}
			continue
		}

		g.Go(func() error {
			res, err := p.Compose(gctx, sc, ComposeOptions{
				AvatarClips: matched,
				OutputPath:  filepath.Join(outputDir, sc.ID+".mp4"),
				Sync:        opts.Sync,
				DryRun:      opts.DryRun,
				KeepWork:    opts.KeepWork,
			})
			if err != nil {
				p.logger.Error().Err(err).Str("script", sc.ID).Msg("composition failed")
				results[i] = BatchResult{ScriptID: sc.ID, Err: err}
				return nil
			}
			results[i] = BatchResult{ScriptID: sc.ID, Output: res.OutputPath, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
