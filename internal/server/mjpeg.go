package server

import (
	"context"
	"fmt"
	"net/http"

	"iocgo/internal/ioclog"
	"iocgo/internal/port"
)

const mjpegBoundary = "ioc_frame_boundary"

// mjpegHandler streams one Binary output as a multipart/x-mixed-replace
// sequence of JPEG parts. Empty frames are skipped; the stream ends when
// the output closes, the client disconnects, or the server shuts down.
func mjpegHandler(srvCtx context.Context, state *State, cfg MJPEGConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := ioclog.For("server").WithField("path", cfg.Path)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		initial, sub, release := state.Subscribe(srvCtx, nil, []string{cfg.Output})
		defer release()

		w.Header().Set("Content-Type",
			fmt.Sprintf("multipart/x-mixed-replace; boundary=%q", mjpegBoundary))
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		writeFrame := func(frame []byte) bool {
			if len(frame) == 0 {
				return true
			}
			header := fmt.Sprintf("\r\n--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				mjpegBoundary, len(frame))
			if _, err := w.Write([]byte(header)); err != nil {
				return false
			}
			if _, err := w.Write(frame); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}

		if v, ok := initial.Outputs[cfg.Output]; ok && v.Kind == port.KindBinary {
			if !writeFrame(v.Bin) {
				return
			}
		}

		for {
			select {
			case upd, ok := <-sub.Updates:
				if !ok {
					log.Debug("mjpeg output closed")
					return
				}
				v, ok := upd.Outputs[cfg.Output]
				if !ok || v.Kind != port.KindBinary {
					continue
				}
				if !writeFrame(v.Bin) {
					return
				}
			case <-r.Context().Done():
				return
			case <-srvCtx.Done():
				return
			}
		}
	}
}
