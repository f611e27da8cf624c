package module

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"iocgo/internal/port"
)

// runCamera owns the child process's full lifecycle: start with the
// current quality/framerate/enable settings, scan its stdout for complete
// JPEG frames, and restart whenever a setting changes or the process
// exits on its own while still enabled.
func runCamera(
	ctx context.Context,
	cfg CameraConfig,
	restartDelay time.Duration,
	frames *port.Channel[[]byte],
	qualityIn, fpsIn *port.Channel[float64],
	enableIn *port.Channel[bool],
	log *logrus.Entry,
) {
	var (
		mu       sync.Mutex
		cancel   context.CancelFunc
		procDone chan struct{}
	)

	stop := func() {
		mu.Lock()
		c, d := cancel, procDone
		cancel, procDone = nil, nil
		mu.Unlock()
		if c != nil {
			c()
		}
		if d != nil {
			<-d
		}
	}

	start := func(quality, fps float64, enabled bool) {
		if !enabled {
			return
		}
		procCtx, c := context.WithCancel(ctx)
		d := make(chan struct{})
		mu.Lock()
		cancel, procDone = c, d
		mu.Unlock()
		go supervise(procCtx, cfg, quality, fps, frames, log, d)
	}

	quality, fps, enabled := qualityIn.Latest(), fpsIn.Latest(), enableIn.Latest()
	start(quality, fps, enabled)

	qualitySub := qualityIn.Source()
	fpsSub := fpsIn.Source()
	enableSub := enableIn.Source()
	defer qualitySub.Close()
	defer fpsSub.Close()
	defer enableSub.Close()

	restart := func() {
		stop()
		time.Sleep(restartDelay)
		if ctx.Err() != nil {
			return
		}
		start(quality, fps, enabled)
	}

	for {
		mu.Lock()
		exited := procDone
		mu.Unlock()

		select {
		case <-ctx.Done():
			stop()
			frames.Close()
			return
		case <-exited:
			// The child exited on its own; restart only starts it again
			// while still enabled.
			restart()
		case v, ok := <-qualitySub.Updates:
			if !ok {
				return
			}
			quality = v
			restart()
		case v, ok := <-fpsSub.Updates:
			if !ok {
				return
			}
			fps = v
			restart()
		case v, ok := <-enableSub.Updates:
			if !ok {
				return
			}
			enabled = v
			if enabled {
				restart()
			} else {
				stop()
			}
		}
	}
}

// supervise runs a single invocation of the capture command until it
// exits or ctx is cancelled, publishing every complete JPEG frame scanned
// from its stdout.
func supervise(
	ctx context.Context,
	cfg CameraConfig,
	quality, fps float64,
	frames *port.Channel[[]byte],
	log *logrus.Entry,
	done chan<- struct{},
) {
	defer close(done)

	args := append([]string(nil), cfg.Command[1:]...)
	if cfg.QualityFlag != "" {
		args = append(args, cfg.QualityFlag, strconv.FormatFloat(quality, 'f', -1, 64))
	}
	if cfg.FramerateFlag != "" {
		args = append(args, cfg.FramerateFlag, strconv.FormatFloat(fps, 'f', -1, 64))
	}

	cmd := exec.CommandContext(ctx, cfg.Command[0], args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.WithError(err).Error("camera: stdout pipe")
		return
	}
	if err := cmd.Start(); err != nil {
		log.WithError(err).Error("camera: start")
		return
	}
	defer cmd.Wait()

	scanJPEGFrames(bufio.NewReaderSize(stdout, 64*1024), func(frame []byte) {
		frames.Publish(frame)
	})
}

// scanJPEGFrames reads r until EOF, invoking emit once per complete frame
// delimited by the JPEG SOI (FFD8) / EOI (FFD9) marker pair. Bytes outside
// a marker pair (framing noise) are discarded.
func scanJPEGFrames(r *bufio.Reader, emit func([]byte)) {
	var buf []byte
	inFrame := false
	var prev byte

	for {
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				return
			}
			return
		}
		if !inFrame {
			if prev == jpegSOI0 && b == jpegSOI1 {
				inFrame = true
				buf = append(buf[:0], jpegSOI0, jpegSOI1)
			}
			prev = b
			continue
		}
		buf = append(buf, b)
		if prev == jpegEOI0 && b == jpegEOI1 {
			out := make([]byte, len(buf))
			copy(out, buf)
			emit(out)
			inFrame = false
			buf = buf[:0]
		}
		prev = b
	}
}
