package display

import (
	"fmt"
	"log/slog"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/vidwall/vidwall/compose"
	"github.com/vidwall/vidwall/media"
)

// SDLWindow presents frames into an SDL2 window through a streaming
// texture sized to the window surface. Composition runs through the shared
// compositor; SDL textures are top-down, so no vertical flip is requested.
type SDLWindow struct {
	log      *slog.Logger
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	texW     int
	texH     int
	comp     compose.Compositor
}

// NewSDLWindow creates a window of the given size. If log is nil,
// slog.Default() is used.
func NewSDLWindow(title string, width, height int, log *slog.Logger) (*SDLWindow, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("display: initializing SDL: %w", err)
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("display: creating window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("display: creating renderer: %w", err)
	}

	w := &SDLWindow{
		log:      log.With("component", "display", "backend", "sdl"),
		window:   window,
		renderer: renderer,
	}
	w.log.Info("window created", "size", fmt.Sprintf("%dx%d", width, height))
	return w, nil
}

// SurfaceSize returns the window's current drawable size.
func (w *SDLWindow) SurfaceSize() (int, int) {
	width, height := w.window.GetSize()
	return int(width), int(height)
}

// Convention reports SDL's top-left origin.
func (w *SDLWindow) Convention() media.CoordConvention {
	return media.OriginTopLeft
}

// PresentFrame composes a video frame into the window and presents it.
func (w *SDLWindow) PresentFrame(pix []byte, width, height int, mode media.ScalingMode) error {
	return w.present(pix, width, height, mode)
}

// PresentImage presents a static image; same upload path as video for this
// backend.
func (w *SDLWindow) PresentImage(pix []byte, width, height int, mode media.ScalingMode) error {
	return w.present(pix, width, height, mode)
}

func (w *SDLWindow) present(pix []byte, width, height int, mode media.ScalingMode) error {
	dstW, dstH := w.SurfaceSize()

	_, buf, err := w.comp.Compose(pix, width, height, dstW, dstH, mode, w.Convention())
	if err != nil {
		return fmt.Errorf("display: composing frame: %w", err)
	}

	if err := w.ensureTexture(dstW, dstH); err != nil {
		return err
	}
	if err := w.texture.Update(nil, buf, dstW*4); err != nil {
		return fmt.Errorf("display: uploading frame: %w", err)
	}
	if err := w.renderer.Clear(); err != nil {
		return fmt.Errorf("display: clearing renderer: %w", err)
	}
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return fmt.Errorf("display: copying texture: %w", err)
	}
	w.renderer.Present()
	return nil
}

// ensureTexture recreates the streaming texture when the surface size
// changes. RGBA bytes map to ABGR8888 on little-endian hosts.
func (w *SDLWindow) ensureTexture(width, height int) error {
	if w.texture != nil && w.texW == width && w.texH == height {
		return nil
	}
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	tex, err := w.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(width), int32(height),
	)
	if err != nil {
		return fmt.Errorf("display: creating texture: %w", err)
	}
	w.texture = tex
	w.texW, w.texH = width, height
	return nil
}

// Pump drains pending window events; ErrClosed signals a quit request.
func (w *SDLWindow) Pump() error {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return ErrClosed
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_CLOSE {
				return ErrClosed
			}
		}
	}
	return nil
}

// Close destroys the window and shuts SDL down.
func (w *SDLWindow) Close() error {
	if w.texture != nil {
		w.texture.Destroy()
		w.texture = nil
	}
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
	return nil
}
