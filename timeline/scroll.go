package timeline

// ScrollAnchor is the viewport state captured right before rows are
// prepended. After layout, Restore gives the offset that keeps the
// previously visible rows where they were on screen.
type ScrollAnchor struct {
	ContentHeight float64 `json:"content_height"`
	ScrollTop     float64 `json:"scroll_top"`
}

func (a ScrollAnchor) Restore(newContentHeight float64) float64 {
	return a.ScrollTop + (newContentHeight - a.ContentHeight)
}

// Sentinel watches the topmost rendered row. When the first visible row
// index is within Threshold rows of the top, the window should extend.
type Sentinel struct {
	Threshold int `json:"threshold"`
}

func (s Sentinel) NearTop(firstVisibleRow int) bool {
	return firstVisibleRow >= 0 && firstVisibleRow <= s.Threshold
}
