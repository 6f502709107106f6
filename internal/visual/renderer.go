package visual

// Image is one rendered view of a document page, PNG-encoded.
type Image struct {
	// Label says which view this is: "overview" or a slice name.
	Label string
	PNG   []byte
}

// Renderer rasterizes document pages. Implementations return nil
// images (and no error) when the page is out of range, so callers can
// degrade without special-casing.
type Renderer interface {
	// RenderPage produces a low-zoom overview plus high-zoom slices of
	// the given 1-based page.
	RenderPage(path string, page int) ([]Image, error)
}
