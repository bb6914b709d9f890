package ui

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"liveview/processing/overlay"
)

// detectionList shows the ranked label list. Replace may be called from any
// goroutine.
type detectionList struct {
	mu    sync.RWMutex
	items []overlay.ListItem

	list *widget.List
}

func newDetectionList() *detectionList {
	d := &detectionList{}
	d.list = widget.NewList(
		d.length,
		func() fyne.CanvasObject {
			conf := widget.NewLabel("100.0%")
			conf.TextStyle = fyne.TextStyle{Monospace: true}
			return container.NewBorder(nil, nil, nil, conf, widget.NewLabel("label"))
		},
		func(id widget.ListItemID, o fyne.CanvasObject) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if id < 0 || id >= len(d.items) {
				return
			}
			row := o.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(d.items[id].Label)
			row.Objects[1].(*widget.Label).SetText(d.items[id].Confidence)
		},
	)
	return d
}

func (d *detectionList) length() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// Replace swaps the whole list content.
func (d *detectionList) Replace(items []overlay.ListItem) {
	d.mu.Lock()
	d.items = items
	d.mu.Unlock()

	fyne.Do(d.list.Refresh)
}
