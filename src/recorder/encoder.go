package recorder

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os/exec"

	"screen-capture-upload/src/payload"
)

// GIFEncoder encodes the frame buffer as an animated GIF.
type GIFEncoder struct{}

func (GIFEncoder) Encode(frames []*image.RGBA, fps int) (payload.Payload, error) {
	if len(frames) == 0 {
		return payload.Payload{}, ErrEmpty
	}
	if fps <= 0 {
		fps = 10
	}

	// GIF delays are in hundredths of a second.
	delay := 100 / fps
	if delay < 1 {
		delay = 1
	}

	anim := &gif.GIF{}
	for _, frame := range frames {
		paletted := image.NewPaletted(frame.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, frame.Bounds(), frame, frame.Bounds().Min)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return payload.Payload{}, fmt.Errorf("failed to encode GIF: %w", err)
	}
	return payload.New(buf.Bytes(), payload.KindAnimation, ".gif"), nil
}

// MP4Encoder pipes raw frames to an ffmpeg child process and collects a
// fragmented MP4 from its stdout. Codec internals stay ffmpeg's problem.
type MP4Encoder struct {
	// FFmpegPath overrides the binary looked up on PATH.
	FFmpegPath string
}

func (e MP4Encoder) Encode(frames []*image.RGBA, fps int) (payload.Payload, error) {
	if len(frames) == 0 {
		return payload.Payload{}, ErrEmpty
	}
	if fps <= 0 {
		fps = 10
	}

	bin := e.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	bounds := frames[0].Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	cmd := exec.Command(bin,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%d", fps),
		"-i", "-",
		// yuv420p needs even dimensions; pad by one pixel when odd.
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"-",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return payload.Payload{}, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Start(); err != nil {
		return payload.Payload{}, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	writeErr := func() error {
		defer stdin.Close()
		for _, frame := range frames {
			if frame.Bounds().Dx() != width || frame.Bounds().Dy() != height {
				return fmt.Errorf("frame size changed mid-recording")
			}
			if _, err := stdin.Write(frame.Pix); err != nil {
				return fmt.Errorf("writing frame to ffmpeg: %w", err)
			}
		}
		return nil
	}()

	if err := cmd.Wait(); err != nil {
		return payload.Payload{}, fmt.Errorf("ffmpeg failed: %v: %s", err, truncate(errBuf.String(), 300))
	}
	if writeErr != nil {
		return payload.Payload{}, writeErr
	}
	if out.Len() == 0 {
		return payload.Payload{}, fmt.Errorf("ffmpeg produced no output")
	}

	return payload.New(out.Bytes(), payload.KindVideo, ".mp4"), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
