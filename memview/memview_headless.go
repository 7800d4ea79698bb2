//go:build headless

package memview

// Start runs the event loop without a window, so SetWidth, SetScale and
// Stop behave as they do on screen.
func (v *MemViz) Start(title string) error {
	go func() {
		defer v.finish()
		for ev := range v.events {
			if v.apply(ev) {
				return
			}
		}
	}()
	return nil
}
