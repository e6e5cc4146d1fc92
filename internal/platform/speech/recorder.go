package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRecordCommand records one mono 16 kHz clip with SoX.
const DefaultRecordCommand = "rec -q -c 1 -r 16000 {file} trim 0 {seconds}"

// Recorder captures one clip from the microphone by running an external
// command. {file} and {seconds} in the command template are substituted.
type Recorder struct {
	template []string
	seconds  int
}

// NewRecorder parses command, which must reference {file}.
func NewRecorder(command string, seconds int) (*Recorder, error) {
	if command == "" {
		command = DefaultRecordCommand
	}
	fields := strings.Fields(command)
	if !strings.Contains(command, "{file}") {
		return nil, errors.New("speech: record command must contain {file}")
	}
	if seconds <= 0 {
		seconds = 10
	}
	return &Recorder{template: fields, seconds: seconds}, nil
}

// Args returns the command line for recording into path.
func (r *Recorder) Args(path string) []string {
	args := make([]string, len(r.template))
	for i, f := range r.template {
		f = strings.ReplaceAll(f, "{file}", path)
		f = strings.ReplaceAll(f, "{seconds}", strconv.Itoa(r.seconds))
		args[i] = f
	}
	return args
}

// Record blocks until the command exits.
func (r *Recorder) Record(ctx context.Context, path string) error {
	args := r.Args(path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("record audio with %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Listener records one segment and transcribes it.
type Listener struct {
	recorder    *Recorder
	transcriber Transcriber
	dir         string
	logger      zerolog.Logger
}

func NewListener(recorder *Recorder, transcriber Transcriber, dir string, logger zerolog.Logger) *Listener {
	return &Listener{
		recorder:    recorder,
		transcriber: transcriber,
		dir:         dir,
		logger:      logger.With().Str("component", "listener").Logger(),
	}
}

// ListenOnce records one segment into the recordings directory and returns
// its transcript. Silence yields "" with a nil error.
func (l *Listener) ListenOnce(ctx context.Context) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	name := fmt.Sprintf("segment_%s_%s.wav", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(l.dir, name)

	if err := l.recorder.Record(ctx, path); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil && info.Size() == 0 {
		l.logger.Debug().Str("file", name).Msg("empty recording")
		return "", nil
	}

	text, err := l.transcriber.Transcribe(ctx, name, f)
	if err != nil {
		return "", err
	}
	l.logger.Debug().Str("file", name).Int("chars", len([]rune(text))).Msg("segment transcribed")
	return text, nil
}
