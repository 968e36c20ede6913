package steps

import (
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// CleanVocalsV1Params is job.params_json for job_type "clean_vocals_v1".
type CleanVocalsV1Params struct {
	ItemID            string `json:"item_id"`
	SeparationBackend string `json:"separation_backend"`
}

// CleanVocalsV1 returns the FFmpeg denoise/gate filter chain step applied
// to the separated vocals stem (spec §4.5).
func CleanVocalsV1(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "filter_vocals",
			Weight: 1,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				var p CleanVocalsV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return false, err
				}
				dir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "cleanup")
				if err != nil {
					return false, err
				}
				return fileExistsNonEmpty(filepath.Join(dir, "vocals_clean.wav"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p CleanVocalsV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				backend := p.SeparationBackend
				if backend == "" {
					backend = "demucs_v1"
				}

				srcDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "separation/"+backend)
				if err != nil {
					return err
				}
				dstDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "cleanup")
				if err != nil {
					return err
				}

				_, err = run(ec, cfg, "ffmpeg",
					"-y", "-i", filepath.Join(srcDir, "vocals.wav"),
					"-af", "highpass=f=80,afftdn=nf=-25,agate=threshold=0.02:ratio=4",
					filepath.Join(dstDir, "vocals_clean.wav"))
				ec.ReportProgress(1)
				return err
			},
		},
	}
}
