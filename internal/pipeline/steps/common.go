// Package steps implements the §4.5 step lists for every job_type the
// engine ships: one file per row of the job_type table, each built on
// internal/pipeline/procexec for external-tool invocation and on
// internal/subtitle for reading/writing subtitle documents.
package steps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/pipeline/procexec"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// unmarshalParams decodes a job's params_json into a typed params struct.
func unmarshalParams(ec *runner.ExecContext, v any) error {
	if ec.Job.ParamsJSON == "" {
		return engerr.Input("job %s has empty params_json", ec.Job.ID)
	}
	if err := json.Unmarshal([]byte(ec.Job.ParamsJSON), v); err != nil {
		return engerr.Input("decode params for job %s: %v", ec.Job.ID, err)
	}
	return nil
}

// run invokes an external tool resolved by its logical name through
// internal/config.ToolPath, honoring the job's cancel flag.
func run(ec *runner.ExecContext, cfg *config.Config, logicalName string, args ...string) (*procexec.Result, error) {
	bin := cfg.ToolPath(logicalName)
	return procexec.Run(ec.Ctx, ec.IsCanceled, ec.ScratchDir, bin, args...)
}

// extractWAV16kMono extracts a 16kHz mono PCM WAV from mediaPath to outPath,
// the input format most local ASR/diarize/separate models expect.
func extractWAV16kMono(ec *runner.ExecContext, cfg *config.Config, mediaPath, outPath string) error {
	_, err := procexec.Run(ec.Ctx, ec.IsCanceled, ec.ScratchDir, cfg.ToolPath("ffmpeg"),
		"-y", "-i", mediaPath, "-ac", "1", "-ar", "16000", "-vn", outPath)
	return err
}

// writeJSONArtifact marshals v and writes it atomically to path.
func writeJSONArtifact(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return writeAtomicMkdir(path, data)
}

func writeAtomicMkdir(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy+remove across
// filesystem boundaries (scratch dirs may live on a different volume than
// the derived tree).
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s for move: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s for move: %w", dst, err)
	}
	return os.Remove(src)
}

func jsonUnmarshalOrWrap(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return engerr.Wrap(engerr.CategorySubprocess, err, "parse json artifact")
	}
	return nil
}

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func newID() string { return uuid.NewString() }

func nowMs() int64 { return time.Now().UnixMilli() }

// fileExistsNonEmpty is the OutputsExist check shared by most steps: a
// step is resumable-skippable once its declared output file is present and
// non-empty (spec §4.5 step 1).
func fileExistsNonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

// probeResult holds the subset of ffprobe's output the library cares about.
type probeResult struct {
	DurationMs int64
	Width      int
	Height     int
	Container  string
	VideoCodec string
	AudioCodec string
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// probeMedia shells out to ffprobe and extracts duration/dimensions/codecs.
func probeMedia(ec *runner.ExecContext, cfg *config.Config, mediaPath string) (*probeResult, error) {
	res, err := procexec.Run(ec.Ctx, ec.IsCanceled, ec.ScratchDir, cfg.ToolPath("ffprobe"),
		"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", mediaPath)
	if err != nil {
		return nil, err
	}

	var out ffprobeOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return nil, engerr.Wrap(engerr.CategorySubprocess, err, "parse ffprobe output for %s", mediaPath)
	}

	pr := &probeResult{Container: out.Format.FormatName}
	if out.Format.Duration != "" {
		var seconds float64
		if _, err := fmt.Sscanf(out.Format.Duration, "%f", &seconds); err == nil {
			pr.DurationMs = int64(seconds * 1000)
		}
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if pr.VideoCodec == "" {
				pr.VideoCodec = s.CodecName
				pr.Width = s.Width
				pr.Height = s.Height
			}
		case "audio":
			if pr.AudioCodec == "" {
				pr.AudioCodec = s.CodecName
			}
		}
	}
	return pr, nil
}

func allFilesExistNonEmpty(paths ...string) (bool, error) {
	for _, p := range paths {
		ok, err := fileExistsNonEmpty(p)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}
