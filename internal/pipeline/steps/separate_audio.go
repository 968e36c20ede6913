package steps

import (
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// SeparateAudioParams is job.params_json for job_type
// "separate_audio_spleeter" and "separate_audio_demucs_v1".
type SeparateAudioParams struct {
	ItemID string `json:"item_id"`
}

// SeparateAudioSpleeter returns the separation step list backed by the
// spleeter_2stems pack (spec §4.5).
func SeparateAudioSpleeter(cfg *config.Config) []runner.Step {
	return separateAudio(cfg, "separation/spleeter_2stems", "spleeter")
}

// SeparateAudioDemucsV1 returns the separation step list backed by the
// demucs_v1 pack (spec §4.5).
func SeparateAudioDemucsV1(cfg *config.Config) []runner.Step {
	return separateAudio(cfg, "separation/demucs_v1", "demucs_v1")
}

func separateAudio(cfg *config.Config, subsystem, backend string) []runner.Step {
	return []runner.Step{
		{
			Name:   "extract_wav",
			Weight: 1,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				return fileExistsNonEmpty(filepath.Join(ec.ScratchDir, "audio.wav"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p SeparateAudioParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				item, err := ec.Store.GetItem(ec.Ctx, p.ItemID)
				if err != nil {
					return err
				}
				return extractWAV16kMono(ec, cfg, item.MediaPath, filepath.Join(ec.ScratchDir, "audio.wav"))
			},
		},
		{
			Name:   "run_backend",
			Weight: 4,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				var p SeparateAudioParams
				if err := unmarshalParams(ec, &p); err != nil {
					return false, err
				}
				dir, err := ec.Tree.ItemSubsystemDir(p.ItemID, subsystem)
				if err != nil {
					return false, err
				}
				return allFilesExistNonEmpty(
					filepath.Join(dir, "vocals.wav"),
					filepath.Join(dir, "background.wav"),
				)
			},
			Run: func(ec *runner.ExecContext) error {
				var p SeparateAudioParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				dir, err := ec.Tree.ItemSubsystemDir(p.ItemID, subsystem)
				if err != nil {
					return err
				}
				if _, err := run(ec, cfg, "separate-cli",
					"--backend", backend,
					"--input", filepath.Join(ec.ScratchDir, "audio.wav"),
					"--vocals-out", filepath.Join(dir, "vocals.wav"),
					"--background-out", filepath.Join(dir, "background.wav")); err != nil {
					return err
				}
				ok, err := allFilesExistNonEmpty(
					filepath.Join(dir, "vocals.wav"),
					filepath.Join(dir, "background.wav"),
				)
				if err != nil {
					return err
				}
				if !ok {
					return engerr.Logic("separate-cli %s did not produce vocals/background stems", backend)
				}
				return nil
			},
		},
	}
}
