package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// SoundChannel plays a local audio file per cue through an external player
// command (mpg123, aplay, afplay...). Recipients are ignored.
type SoundChannel struct {
	player []string
	files  map[string]string
	run    func(ctx context.Context, name string, args ...string) error
}

func NewSound(player []string, files map[string]string) (*SoundChannel, error) {
	if len(player) == 0 || player[0] == "" {
		return nil, fmt.Errorf("sound player command is required")
	}
	return &SoundChannel{
		player: player,
		files:  files,
		run: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w: %s", name, err, out)
			}
			return nil
		},
	}, nil
}

func (s *SoundChannel) Name() string {
	return Sound
}

func (s *SoundChannel) Send(ctx context.Context, _ []string, msg Message) error {
	file, ok := s.files[msg.Cue]
	if !ok || file == "" {
		return fmt.Errorf("no audio file for cue %q", msg.Cue)
	}
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("audio file for cue %q: %w", msg.Cue, err)
	}

	args := append(append([]string{}, s.player[1:]...), file)
	return s.run(ctx, s.player[0], args...)
}

func (s *SoundChannel) Close() error {
	return nil
}
